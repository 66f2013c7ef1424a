package goSession

// SecurityReport returns the engine's effective security posture. It contains no key material.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	verifyKeys := len(e.config.Signing.VerifyKeys)
	if verifyKeys == 0 {
		verifyKeys = 1
	}

	return SecurityReport{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: e.config.Signing.Method,
		KeyID:            e.config.Signing.KeyID,
		VerifyKeyCount:   verifyKeys,
		CanSign:          e.jwtManager != nil && e.jwtManager.CanSign(),
		SessionTTL:       e.config.Session.TTL,
		Leeway:           e.config.Session.Leeway,
		Issuer:           e.config.Session.Issuer,
		Audience:         e.config.Session.Audience,
		XSRFHeader:       e.config.XSRF.HeaderName,
		Argon2: PasswordConfigReport{
			Memory:           e.config.Password.Memory,
			Time:             e.config.Password.Time,
			Parallelism:      e.config.Password.Parallelism,
			SaltLength:       uint32(len(e.config.Password.Salt)),
			KeyLength:        e.config.Password.KeyLength,
			MaxPasswordBytes: e.config.Password.MaxPasswordBytes,
		},
		RateLimitingActive: e.rateLimiter != nil,
		IPThrottleActive:   e.rateLimiter != nil && e.config.Security.EnableIPThrottle,
		AuditEnabled:       e.audit != nil,
		MetricsEnabled:     e.metrics.Enabled(),
	}
}
