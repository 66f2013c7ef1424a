package goSession

import (
	"context"
	"time"
)

// Account is the record an AccountStore resolves credentials to.
// The digest never leaves the process in JSON form.
type Account struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	PasswordDigest string `json:"-"`
}

// AccountStore is the lookup contract the Engine needs from the caller's account database.
//
// Both methods return (nil, nil) when no account matches. A non-nil error means the
// store itself failed; the Engine reports it as [ErrAccountStoreUnavailable].
type AccountStore interface {
	FindByCredentials(ctx context.Context, username, passwordDigest string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
}

// Identity is the authenticated principal carried by a verified session.
type Identity struct {
	Subject string
}

// IssuedSession is returned by [Engine.IssueSession] and [Engine.Login].
// Credential and XSRF are delivered to the client separately; both are needed to verify.
type IssuedSession struct {
	Credential string
	XSRF       string
	ExpiresIn  int
}

// SessionInfo is returned by [Engine.Verify] once every check has passed.
type SessionInfo struct {
	Identity  Identity
	XSRF      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
	Audience  []string
	SessionID string
}

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport struct {
	ProductionMode     bool
	SigningAlgorithm   string
	KeyID              string
	VerifyKeyCount     int
	CanSign            bool
	SessionTTL         time.Duration
	Leeway             time.Duration
	Issuer             string
	Audience           string
	XSRFHeader         string
	Argon2             PasswordConfigReport
	RateLimitingActive bool
	IPThrottleActive   bool
	AuditEnabled       bool
	MetricsEnabled     bool
}

// PasswordConfigReport contains the Argon2 parameters active in the engine.
type PasswordConfigReport struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}
