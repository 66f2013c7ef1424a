// Package jwt signs and parses session credentials: compact JWS tokens carrying the
// subject, the anti-forgery value, and the issued/expiry/issuer/audience claims.
//
// [Manager.ParseSession] checks the signature first and the time and audience claims
// afterwards, returning [ErrSignature], [ErrExpired], [ErrIssuer] or [ErrAudience]
// so callers can tell which gate rejected the credential.
package jwt
