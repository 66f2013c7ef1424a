package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const (
	// XSRFTokenBytes is the raw entropy of an anti-forgery token (256 bits).
	XSRFTokenBytes = 32
	// MinSecretBytes is the smallest signing secret NewSecret will produce.
	MinSecretBytes = 32
)

// NewXSRFToken returns a base64url (unpadded) token drawn from crypto/rand.
// An error means the entropy source failed and the caller must not continue
// issuing sessions.
func NewXSRFToken() (string, error) {
	var raw [XSRFTokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// XSRFEqual compares a presented token with the expected one in constant time.
// Empty values never match.
func XSRFEqual(presented, expected string) bool {
	if presented == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// NewSecret returns n random bytes for use as a signing secret or password salt.
func NewSecret(n int) ([]byte, error) {
	if n < MinSecretBytes {
		return nil, errors.New("secret size below minimum")
	}
	secret := make([]byte, n)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// HashKeyPart hashes a caller-supplied value (username, IP) before it is used
// in a storage key so raw identifiers never appear in Redis.
func HashKeyPart(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:16])
}
