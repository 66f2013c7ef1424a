package goSession

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal/rate"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginRateLimited    = "login_rate_limited"
	auditEventSessionIssued       = "session_issued"
	auditEventIssueFailure        = "session_issue_failure"
	auditEventVerifyFailure       = "session_verify_failure"
	auditEventAccountStoreDown    = "account_store_unavailable"
	auditEventThrottleResetFailed = "login_throttle_reset_failure"
)

// AuditErrorCode defines a public type used by goSession APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrBadSignature       AuditErrorCode = "bad_signature"
	auditErrExpired            AuditErrorCode = "expired"
	auditErrBadAudience        AuditErrorCode = "bad_audience"
	auditErrXSRFMismatch       AuditErrorCode = "xsrf_mismatch"
	auditErrAccountNotFound    AuditErrorCode = "account_not_found"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrSessionCreation    AuditErrorCode = "session_creation_failed"
	auditErrEntropy            AuditErrorCode = "entropy_unavailable"
	auditErrSigningKey         AuditErrorCode = "signing_key_unavailable"
	auditErrUnavailable        AuditErrorCode = "unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Subject:   subject,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrBadSignature):
		return auditErrBadSignature
	case errors.Is(err, ErrExpired):
		return auditErrExpired
	case errors.Is(err, ErrBadAudience):
		return auditErrBadAudience
	case errors.Is(err, ErrXSRFMismatch):
		return auditErrXSRFMismatch
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrEntropyUnavailable):
		return auditErrEntropy
	case errors.Is(err, ErrSigningKeyUnavailable):
		return auditErrSigningKey
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreation
	case errors.Is(err, ErrAccountStoreUnavailable), errors.Is(err, rate.ErrRedisUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
