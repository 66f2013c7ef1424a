package goSession

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is the parent of every error that must surface as a bare 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by Login for unknown usernames and digest mismatches alike.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	// ErrBadSignature covers malformed credentials, unknown key ids, wrong algorithms and bad signatures.
	ErrBadSignature = fmt.Errorf("%w: bad signature", ErrUnauthorized)
	// ErrExpired is returned for credentials past exp plus leeway, or with no exp at all.
	ErrExpired = fmt.Errorf("%w: session expired", ErrUnauthorized)
	// ErrBadAudience is returned when iss or aud do not match the configured values.
	ErrBadAudience = fmt.Errorf("%w: bad issuer or audience", ErrUnauthorized)
	// ErrXSRFMismatch is returned when the presented XSRF token does not match the bound one.
	ErrXSRFMismatch = fmt.Errorf("%w: xsrf mismatch", ErrUnauthorized)
	// ErrAccountNotFound is returned by LookupAccount when the subject no longer resolves.
	ErrAccountNotFound = fmt.Errorf("%w: account not found", ErrUnauthorized)

	// ErrLoginRateLimited is returned once a username or client IP exhausts its login budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrSessionCreationFailed is returned when a session cannot be signed or has no subject.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrAccountStoreUnavailable wraps AccountStore failures.
	ErrAccountStoreUnavailable = errors.New("account store unavailable")
	// ErrAccountStoreMissing is returned by Login when the engine was built without an AccountStore.
	ErrAccountStoreMissing = errors.New("account store not configured")

	// ErrEntropyUnavailable is fatal: the system random source failed.
	ErrEntropyUnavailable = errors.New("entropy source unavailable")
	// ErrSigningKeyUnavailable is fatal: the engine holds no key able to sign sessions.
	ErrSigningKeyUnavailable = errors.New("signing key unavailable")

	// ErrEngineNotReady is returned when a nil or partially built Engine is used.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Error codes returned by ErrorCode. They are stable and safe to log.
const (
	CodeBadSignature       = "E_BAD_SIGNATURE"
	CodeExpired            = "E_EXPIRED"
	CodeBadAudience        = "E_BAD_AUDIENCE"
	CodeXSRFMismatch       = "E_XSRF_MISMATCH"
	CodeInvalidCredentials = "E_INVALID_CREDENTIALS"
	CodeAccountNotFound    = "E_ACCOUNT_NOT_FOUND"
	CodeUnauthorized       = "E_UNAUTHORIZED"
	CodeRateLimited        = "E_RATE_LIMITED"
	CodeFatal              = "E_FATAL"
	CodeInternal           = "E_INTERNAL"
)

// ErrorCode maps an engine error to its stable code. Nil maps to the empty string.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBadSignature):
		return CodeBadSignature
	case errors.Is(err, ErrExpired):
		return CodeExpired
	case errors.Is(err, ErrBadAudience):
		return CodeBadAudience
	case errors.Is(err, ErrXSRFMismatch):
		return CodeXSRFMismatch
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrAccountNotFound):
		return CodeAccountNotFound
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrLoginRateLimited):
		return CodeRateLimited
	case IsFatal(err):
		return CodeFatal
	default:
		return CodeInternal
	}
}

// IsFatal reports whether err means the process cannot issue sessions at all.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEntropyUnavailable) || errors.Is(err, ErrSigningKeyUnavailable)
}
