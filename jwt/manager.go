package jwt

import (
	"crypto/ed25519"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod defines a public type used by goSession APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret. It is the default for single-service deployments.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key and verifies with the public half.
	MethodEd25519 SigningMethod = "ed25519"

	minHMACKeyBytes = 32
)

var (
	// ErrSignature covers malformed encodings, wrong algorithms, unknown key ids and bad signatures.
	ErrSignature = errors.New("invalid session signature")
	// ErrExpired is returned when the credential is past its exp claim (or has none).
	ErrExpired = errors.New("session expired")
	// ErrIssuer is returned when the iss claim does not match the configured issuer.
	ErrIssuer = errors.New("session issuer mismatch")
	// ErrAudience is returned when the aud claim does not contain the configured audience.
	ErrAudience = errors.New("session audience mismatch")
)

// Config defines a public type used by goSession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	// VerifyKeys maps key ids to verification keys (HS256 secrets or Ed25519
	// public keys). When set, every token must carry a kid present here.
	VerifyKeys map[string][]byte
	Now        func() time.Time
}

// Manager defines a public type used by goSession APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
}

// SessionClaims is the signed payload of a session credential.
type SessionClaims struct {
	XSRF string `json:"xsrf"`
	jwt.RegisteredClaims
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 && len(cfg.VerifyKeys) == 0 {
			return nil, errors.New("hs256 requires a signing secret")
		}
		if len(cfg.PrivateKey) > 0 && len(cfg.PrivateKey) < minHMACKeyBytes {
			return nil, fmt.Errorf("hs256 secret must be at least %d bytes", minHMACKeyBytes)
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if len(key) < minHMACKeyBytes {
				return nil, fmt.Errorf("hs256 verify key for kid %q is shorter than %d bytes", kid, minHMACKeyBytes)
			}
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}
	if len(cfg.VerifyKeys) > 0 && len(cfg.PrivateKey) > 0 && cfg.KeyID == "" {
		return nil, errors.New("KeyID is required when VerifyKeys is set")
	}
	if len(cfg.PrivateKey) > 0 {
		switch {
		case len(cfg.VerifyKeys) > 0:
			if !SigningKeyMatches(cfg.SigningMethod, cfg.PrivateKey, cfg.VerifyKeys[cfg.KeyID]) {
				return nil, fmt.Errorf("verify key for kid %q does not match the signing key", cfg.KeyID)
			}
		case cfg.SigningMethod == MethodEd25519:
			if !SigningKeyMatches(cfg.SigningMethod, cfg.PrivateKey, cfg.PublicKey) {
				return nil, errors.New("ed25519 public key does not match the private key")
			}
		}
	}

	return &Manager{config: cfg}, nil
}

// CanSign reports whether the manager holds a signing key.
func (j *Manager) CanSign() bool {
	return j != nil && len(j.config.PrivateKey) > 0
}

// CreateSession signs a credential for subject embedding xsrf. It returns the
// compact token together with the claims that were signed.
//
// CreateSession may return an error when input validation, dependency calls, or security checks fail.
func (j *Manager) CreateSession(subject, xsrf string) (string, *SessionClaims, error) {
	if subject == "" {
		return "", nil, errors.New("empty subject")
	}
	if xsrf == "" {
		return "", nil, errors.New("empty xsrf value")
	}

	now := j.config.Now()
	claims := &SessionClaims{
		XSRF: xsrf,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
			ID:        uuid.NewString(),
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.getMethod(), claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return "", nil, err
	}

	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseSession describes the parsesession operation and its observable behavior.
//
// ParseSession verifies the signature, then expiry, then issuer and audience, and
// stops at the first failure. The returned error wraps one of the package sentinels.
func (j *Manager) ParseSession(tokenStr string) (*SessionClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &SessionClaims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, j.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	if !token.Valid {
		return nil, ErrSignature
	}

	now := j.config.Now()
	if claims.ExpiresAt == nil || now.After(claims.ExpiresAt.Time.Add(j.config.Leeway)) {
		return nil, ErrExpired
	}

	if j.config.Issuer != "" && claims.Issuer != j.config.Issuer {
		return nil, ErrIssuer
	}
	if j.config.Audience != "" && !containsAudience(claims.Audience, j.config.Audience) {
		return nil, ErrAudience
	}

	return claims, nil
}

// TTL returns the configured session validity window.
func (j *Manager) TTL() time.Duration {
	return j.config.TTL
}

func (j *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != j.getMethod().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(j.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := j.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return j.keyBytesToVerifyKey(key)
	}

	if j.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != j.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return j.getVerifyKey()
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	if len(j.config.PrivateKey) == 0 {
		return nil, errors.New("signing key unavailable")
	}
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(j.config.PrivateKey)
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		return parseEdPublicKey(j.config.PublicKey)
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

// SigningKeyMatches reports whether verifyKey accepts credentials signed with
// privateKey. For Ed25519 the public half is derived and compared. Malformed keys
// never match.
func SigningKeyMatches(method SigningMethod, privateKey, verifyKey []byte) bool {
	switch method {
	case MethodHS256:
		return len(privateKey) > 0 && subtle.ConstantTimeCompare(privateKey, verifyKey) == 1
	case MethodEd25519:
		priv, err := parseEdPrivateKey(privateKey)
		if err != nil {
			return false
		}
		pub, err := parseEdPublicKey(verifyKey)
		if err != nil {
			return false
		}
		return pub.Equal(priv.Public())
	default:
		return false
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
