package goSession

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

// Config defines a public type used by goSession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session  SessionConfig
	Signing  SigningConfig
	Password PasswordConfig
	XSRF     XSRFConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the claims stamped on every issued session.
type SessionConfig struct {
	TTL      time.Duration
	Issuer   string
	Audience string
	// Leeway is added to exp when checking expiry. Capped at two minutes.
	Leeway time.Duration
}

/*
====================================
SIGNING CONFIG
====================================
*/

// SigningConfig defines a public type used by goSession APIs.
//
// SigningConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningConfig struct {
	Method     string // "hs256" (default) or "ed25519"
	PrivateKey []byte
	PublicKey  []byte
	// KeyID is written to the kid header of new sessions.
	KeyID string
	// VerifyKeys holds every key still accepted for verification, by kid.
	// Dropping an entry revokes all sessions signed with it.
	VerifyKeys map[string][]byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by goSession APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	// Salt is deployment-wide so digests are reproducible for store lookup.
	Salt             []byte
	KeyLength        uint32
	MaxPasswordBytes int
}

// XSRFConfig names the request header that carries the XSRF token.
type XSRFConfig struct {
	HeaderName string
}

// AuditConfig defines a public type used by goSession APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goSession APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by goSession APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	ProductionMode bool
	// MaxLoginAttempts of zero disables the login throttle.
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableIPThrottle      bool
	RedisPrefix           string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a development-safe configuration. Callers must still
// supply a signing key and a password salt.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:      3600 * time.Second,
			Issuer:   "sessiond",
			Audience: "sessiond",
			Leeway:   0,
		},
		Signing: SigningConfig{
			Method: "hs256",
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
		},
		XSRF: XSRFConfig{
			HeaderName: "X-XSRF-Token",
		},
		Security: SecurityConfig{
			ProductionMode:        false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			EnableIPThrottle:      false,
			RedisPrefix:           "gs",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Signing.PrivateKey = cloneBytes(cfg.Signing.PrivateKey)
	out.Signing.PublicKey = cloneBytes(cfg.Signing.PublicKey)
	out.Password.Salt = cloneBytes(cfg.Password.Salt)
	if cfg.Signing.VerifyKeys != nil {
		out.Signing.VerifyKeys = make(map[string][]byte, len(cfg.Signing.VerifyKeys))
		for kid, key := range cfg.Signing.VerifyKeys {
			out.Signing.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found, or nil.
func (c *Config) Validate() error {
	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.Leeway < 0 || c.Session.Leeway > 2*time.Minute {
		return errors.New("Session Leeway must be between 0 and 2m")
	}
	if c.Session.Issuer != "" && strings.TrimSpace(c.Session.Issuer) == "" {
		return errors.New("Session Issuer must not be blank")
	}
	if c.Session.Audience != "" && strings.TrimSpace(c.Session.Audience) == "" {
		return errors.New("Session Audience must not be blank")
	}

	// Signing
	switch c.Signing.Method {
	case "hs256":
		if len(c.Signing.PrivateKey) == 0 && len(c.Signing.VerifyKeys) == 0 {
			return errors.New("hs256 requires PrivateKey or VerifyKeys")
		}
		if len(c.Signing.PrivateKey) > 0 && len(c.Signing.PrivateKey) < 32 {
			return errors.New("hs256 PrivateKey must be >= 32 bytes")
		}
	case "ed25519":
		if len(c.Signing.PublicKey) == 0 && len(c.Signing.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey or VerifyKeys")
		}
	default:
		return errors.New("unsupported signing method")
	}
	if c.Signing.KeyID != "" && len(c.Signing.VerifyKeys) > 0 {
		if _, ok := c.Signing.VerifyKeys[c.Signing.KeyID]; !ok {
			return fmt.Errorf("Signing KeyID %q is missing from VerifyKeys", c.Signing.KeyID)
		}
	}
	if c.Signing.KeyID == "" && len(c.Signing.VerifyKeys) > 0 && len(c.Signing.PrivateKey) > 0 {
		return errors.New("Signing KeyID is required when VerifyKeys is set")
	}
	if len(c.Signing.PrivateKey) > 0 && len(c.Signing.VerifyKeys) > 0 {
		method := jwt.SigningMethod(c.Signing.Method)
		if !jwt.SigningKeyMatches(method, c.Signing.PrivateKey, c.Signing.VerifyKeys[c.Signing.KeyID]) {
			return fmt.Errorf("Signing VerifyKeys[%q] does not match the signing key", c.Signing.KeyID)
		}
	}

	// Password
	if c.Password.Memory < 8192 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if len(c.Password.Salt) < 16 {
		return errors.New("Password Salt must be >= 16 bytes")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	// XSRF
	name := strings.TrimSpace(c.XSRF.HeaderName)
	if name == "" || http.CanonicalHeaderKey(name) == "Authorization" {
		return errors.New("XSRF HeaderName must be set and distinct from Authorization")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 {
		return errors.New("MaxLoginAttempts must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("LoginCooldownDuration must be > 0 when MaxLoginAttempts is set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.Session.TTL > 24*time.Hour {
			return errors.New("ProductionMode requires Session TTL <= 24h")
		}
		if c.Session.Issuer == "" || c.Session.Audience == "" {
			return errors.New("ProductionMode requires Session Issuer and Audience")
		}
		if c.Password.Memory < 65536 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
		if c.Security.MaxLoginAttempts == 0 {
			return errors.New("ProductionMode requires the login throttle")
		}
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a non-fatal configuration finding.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the ordered list of findings returned by Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that are valid but risky. It never fails.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if c.Session.Leeway > 30*time.Second {
		add("leeway_large", "Session Leeway above 30s widens the replay window after expiry")
	}
	if c.Session.TTL > 12*time.Hour {
		add("ttl_long", "Session TTL above 12h; stateless sessions cannot be revoked individually")
	}
	if c.Security.MaxLoginAttempts == 0 {
		add("rate_limits_disabled", "login throttle is disabled")
	} else if !c.Security.EnableIPThrottle {
		add("ip_throttle_disabled", "login throttle is per-username only")
	}
	if c.Signing.KeyID == "" {
		add("no_key_id", "sessions carry no kid; key rotation will invalidate every live session at once")
	}
	if c.Audit.Enabled && c.Audit.DropIfFull {
		add("audit_may_drop", "audit events are dropped when the buffer is full")
	}
	return ws
}
