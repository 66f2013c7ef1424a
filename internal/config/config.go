package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
)

// EnvPrefix is prepended to every environment key, e.g. SESSIOND_SIGNING_KEY.
const EnvPrefix = "SESSIOND"

// Error codes attached to load failures.
const (
	CodeEnvFile           = "CONFIG_ENV_FILE"
	CodeInvalid           = "CONFIG_INVALID"
	CodeSigningKeyMissing = "CONFIG_SIGNING_KEY_MISSING"
	CodeSigningKeyInvalid = "CONFIG_SIGNING_KEY_INVALID"
	CodeVerifyKeysInvalid = "CONFIG_VERIFY_KEYS_INVALID"
	CodeSaltMissing       = "CONFIG_SALT_MISSING"
)

// Keys shared by flags, environment and defaults.
const (
	KeyListen           = "listen"
	KeyRedisAddr        = "redis-addr"
	KeyRedisPrefix      = "redis-prefix"
	KeyLogFormat        = "log-format"
	KeyIssuer           = "issuer"
	KeyAudience         = "audience"
	KeyTTL              = "ttl"
	KeyLeeway           = "leeway"
	KeySigningMethod    = "signing-method"
	KeySigningKey       = "signing-key"
	KeyPublicKey        = "public-key"
	KeyKeyID            = "key-id"
	KeyVerifyKeys       = "verify-keys"
	KeyEphemeralKey     = "ephemeral-key"
	KeyPasswordSalt     = "password-salt"
	KeyArgon2Memory     = "argon2-memory"
	KeyArgon2Time       = "argon2-time"
	KeyArgon2Threads    = "argon2-parallelism"
	KeyMaxPasswordBytes = "max-password-bytes"
	KeyMaxLoginAttempts = "max-login-attempts"
	KeyLoginCooldown    = "login-cooldown"
	KeyIPThrottle       = "ip-throttle"
	KeyAudit            = "audit"
	KeyMetrics          = "metrics"
	KeyProduction       = "production"
)

const methodEd25519 = "ed25519"

// Config is the resolved process configuration. Key material is decoded.
type Config struct {
	Listen      string
	RedisAddr   string
	RedisPrefix string
	LogFormat   string

	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration

	SigningMethod string
	SigningKey    []byte
	PublicKey     []byte
	KeyID         string
	VerifyKeys    map[string][]byte
	EphemeralKey  bool

	PasswordSalt      []byte
	Argon2Memory      uint32
	Argon2Time        uint32
	Argon2Parallelism uint8
	MaxPasswordBytes  int

	MaxLoginAttempts int
	LoginCooldown    time.Duration
	IPThrottle       bool

	AuditEnabled   bool
	MetricsEnabled bool
	Production     bool
}

// RegisterFlags adds every configuration flag to fs. Flag defaults are the
// lowest-precedence source; environment variables override them and flags set
// on the command line override both.
func RegisterFlags(fs *pflag.FlagSet) {
	d := goSession.DefaultConfig()
	fs.String(KeyListen, ":8080", "HTTP listen address")
	fs.String(KeyRedisAddr, "", "Redis address for accounts and login throttling")
	fs.String(KeyRedisPrefix, d.Security.RedisPrefix, "Redis key prefix")
	fs.String(KeyIssuer, d.Session.Issuer, "session issuer (iss)")
	fs.String(KeyAudience, d.Session.Audience, "session audience (aud)")
	fs.Duration(KeyTTL, d.Session.TTL, "session lifetime")
	fs.Duration(KeyLeeway, d.Session.Leeway, "clock skew tolerated on expiry")
	fs.String(KeySigningMethod, d.Signing.Method, "signing method: hs256 or ed25519")
	fs.String(KeySigningKey, "", "signing key, base64 or hex:<hex>")
	fs.String(KeyPublicKey, "", "ed25519 public key, base64 or hex:<hex>")
	fs.String(KeyKeyID, "", "key id written to the kid header")
	fs.String(KeyVerifyKeys, "", "extra verify keys as kid=key,kid=key")
	fs.Bool(KeyEphemeralKey, false, "generate a throwaway signing key (development only)")
	fs.String(KeyPasswordSalt, "", "deployment-wide password salt (>= 16 bytes)")
	fs.Uint32(KeyArgon2Memory, d.Password.Memory, "argon2id memory in KiB")
	fs.Uint32(KeyArgon2Time, d.Password.Time, "argon2id iterations")
	fs.Uint8(KeyArgon2Threads, d.Password.Parallelism, "argon2id parallelism")
	fs.Int(KeyMaxPasswordBytes, d.Password.MaxPasswordBytes, "longest accepted password in bytes")
	fs.Int(KeyMaxLoginAttempts, d.Security.MaxLoginAttempts, "failed logins allowed per window, 0 disables")
	fs.Duration(KeyLoginCooldown, d.Security.LoginCooldownDuration, "login throttle window")
	fs.Bool(KeyIPThrottle, d.Security.EnableIPThrottle, "also throttle by client IP")
	fs.Bool(KeyAudit, false, "write audit events to the log")
	fs.Bool(KeyMetrics, true, "record metrics and serve /metrics")
	fs.Bool(KeyProduction, false, "enforce production hardening rules")
}

func setDefaults(v *viper.Viper) {
	fs := pflag.NewFlagSet("defaults", pflag.ContinueOnError)
	RegisterFlags(fs)
	fs.VisitAll(func(f *pflag.Flag) {
		v.SetDefault(f.Name, f.DefValue)
	})
	v.SetDefault(KeyLogFormat, "json")
}

// Load reads envFile when it exists, then resolves every key from flags and
// SESSIOND_* variables. flags may be nil.
func Load(flags *pflag.FlagSet, envFile string) (*Config, error) {
	return load(flags, envFile, true)
}

// LoadPassword is Load for commands that only hash passwords and therefore
// need no signing key.
func LoadPassword(flags *pflag.FlagSet, envFile string) (*Config, error) {
	return load(flags, envFile, false)
}

func load(flags *pflag.FlagSet, envFile string, requireKey bool) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, oops.Code(CodeEnvFile).With("path", envFile).Wrap(err)
			}
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, oops.Code(CodeInvalid).Wrap(err)
		}
	}

	return fromViper(v, requireKey)
}

func fromViper(v *viper.Viper, requireKey bool) (*Config, error) {
	cfg := &Config{
		Listen:            v.GetString(KeyListen),
		RedisAddr:         v.GetString(KeyRedisAddr),
		RedisPrefix:       v.GetString(KeyRedisPrefix),
		LogFormat:         v.GetString(KeyLogFormat),
		Issuer:            v.GetString(KeyIssuer),
		Audience:          v.GetString(KeyAudience),
		TTL:               v.GetDuration(KeyTTL),
		Leeway:            v.GetDuration(KeyLeeway),
		SigningMethod:     strings.ToLower(v.GetString(KeySigningMethod)),
		KeyID:             v.GetString(KeyKeyID),
		EphemeralKey:      v.GetBool(KeyEphemeralKey),
		PasswordSalt:      []byte(v.GetString(KeyPasswordSalt)),
		Argon2Memory:      v.GetUint32(KeyArgon2Memory),
		Argon2Time:        v.GetUint32(KeyArgon2Time),
		Argon2Parallelism: uint8(v.GetUint(KeyArgon2Threads)),
		MaxPasswordBytes:  v.GetInt(KeyMaxPasswordBytes),
		MaxLoginAttempts:  v.GetInt(KeyMaxLoginAttempts),
		LoginCooldown:     v.GetDuration(KeyLoginCooldown),
		IPThrottle:        v.GetBool(KeyIPThrottle),
		AuditEnabled:      v.GetBool(KeyAudit),
		MetricsEnabled:    v.GetBool(KeyMetrics),
		Production:        v.GetBool(KeyProduction),
	}

	var err error
	if raw := v.GetString(KeySigningKey); raw != "" {
		if cfg.SigningKey, err = DecodeKey(raw); err != nil {
			return nil, oops.Code(CodeSigningKeyInvalid).With("key", KeySigningKey).Wrap(err)
		}
	}
	if raw := v.GetString(KeyPublicKey); raw != "" {
		if cfg.PublicKey, err = DecodeKey(raw); err != nil {
			return nil, oops.Code(CodeSigningKeyInvalid).With("key", KeyPublicKey).Wrap(err)
		}
	}
	if cfg.VerifyKeys, err = parseVerifyKeys(v.GetString(KeyVerifyKeys)); err != nil {
		return nil, err
	}

	if requireKey && len(cfg.SigningKey) == 0 && len(cfg.PublicKey) == 0 && len(cfg.VerifyKeys) == 0 && !cfg.EphemeralKey {
		return nil, oops.Code(CodeSigningKeyMissing).
			Hint("set SESSIOND_SIGNING_KEY, or pass --ephemeral-key for local development").
			Errorf("no signing key configured")
	}
	if len(cfg.PasswordSalt) == 0 {
		return nil, oops.Code(CodeSaltMissing).
			Hint("set SESSIOND_PASSWORD_SALT to a stable value of at least 16 bytes").
			Errorf("no password salt configured")
	}
	return cfg, nil
}

var errEmptyKey = errors.New("empty key")

// DecodeKey accepts standard base64, unpadded base64url, or hex behind a
// "hex:" prefix.
func DecodeKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errEmptyKey
	}
	if rest, ok := strings.CutPrefix(raw, "hex:"); ok {
		return hex.DecodeString(rest)
	}
	if key, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return key, nil
	}
	return base64.RawURLEncoding.DecodeString(raw)
}

func parseVerifyKeys(raw string) (map[string][]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := make(map[string][]byte)
	for _, part := range strings.Split(raw, ",") {
		kid, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || kid == "" {
			return nil, oops.Code(CodeVerifyKeysInvalid).With("entry", kid).Errorf("verify key entries must look like kid=key")
		}
		// base64 padding contains '=', so only the first one separates kid from key.
		key, err := DecodeKey(value)
		if err != nil {
			return nil, oops.Code(CodeVerifyKeysInvalid).With("kid", kid).Wrap(err)
		}
		if _, dup := out[kid]; dup {
			return nil, oops.Code(CodeVerifyKeysInvalid).With("kid", kid).Errorf("duplicate kid %q", kid)
		}
		out[kid] = key
	}
	return out, nil
}

// KeyIDs returns the configured verify key ids in sorted order.
func (c *Config) KeyIDs() []string {
	ids := make([]string, 0, len(c.VerifyKeys))
	for kid := range c.VerifyKeys {
		ids = append(ids, kid)
	}
	sort.Strings(ids)
	return ids
}

// EngineConfig maps the process settings onto a validated goSession.Config.
func (c *Config) EngineConfig() (goSession.Config, error) {
	out := goSession.DefaultConfig()

	out.Session.TTL = c.TTL
	out.Session.Issuer = c.Issuer
	out.Session.Audience = c.Audience
	out.Session.Leeway = c.Leeway

	out.Signing.Method = c.SigningMethod
	out.Signing.KeyID = c.KeyID
	out.Signing.VerifyKeys = c.VerifyKeys
	switch out.Signing.Method {
	case methodEd25519:
		out.Signing.PrivateKey = c.SigningKey
		out.Signing.PublicKey = c.PublicKey
		if len(out.Signing.PublicKey) == 0 && len(c.SigningKey) == ed25519.PrivateKeySize {
			out.Signing.PublicKey = ed25519.PrivateKey(c.SigningKey).Public().(ed25519.PublicKey)
		}
	default:
		out.Signing.PrivateKey = c.SigningKey
	}
	if c.KeyID != "" && len(c.VerifyKeys) > 0 {
		if _, ok := c.VerifyKeys[c.KeyID]; !ok {
			verify := make(map[string][]byte, len(c.VerifyKeys)+1)
			for kid, key := range c.VerifyKeys {
				verify[kid] = key
			}
			verify[c.KeyID] = currentVerifyKey(out.Signing)
			out.Signing.VerifyKeys = verify
		}
	}
	if key, ok := out.Signing.VerifyKeys[c.KeyID]; ok && len(out.Signing.PrivateKey) > 0 &&
		!jwt.SigningKeyMatches(jwt.SigningMethod(out.Signing.Method), out.Signing.PrivateKey, key) {
		return goSession.Config{}, oops.Code(CodeVerifyKeysInvalid).
			With("kid", c.KeyID).
			Hint("drop the entry for the current key id from verify-keys or set it to the current key").
			Errorf("verify key for the current key id does not match the signing key")
	}

	out.Password.Salt = c.PasswordSalt
	out.Password.Memory = c.Argon2Memory
	out.Password.Time = c.Argon2Time
	out.Password.Parallelism = c.Argon2Parallelism
	out.Password.MaxPasswordBytes = c.MaxPasswordBytes

	out.Security.ProductionMode = c.Production
	out.Security.MaxLoginAttempts = c.MaxLoginAttempts
	out.Security.LoginCooldownDuration = c.LoginCooldown
	out.Security.EnableIPThrottle = c.IPThrottle
	out.Security.RedisPrefix = c.RedisPrefix

	out.Audit.Enabled = c.AuditEnabled
	out.Metrics.Enabled = c.MetricsEnabled
	out.Metrics.EnableLatencyHistograms = c.MetricsEnabled

	if err := out.Validate(); err != nil {
		return goSession.Config{}, oops.Code(CodeInvalid).Wrap(err)
	}
	return out, nil
}

// PasswordConfig returns the argon2id settings alone.
func (c *Config) PasswordConfig() password.Config {
	d := goSession.DefaultConfig().Password
	return password.Config{
		Memory:           c.Argon2Memory,
		Time:             c.Argon2Time,
		Parallelism:      c.Argon2Parallelism,
		Salt:             c.PasswordSalt,
		KeyLength:        d.KeyLength,
		MaxPasswordBytes: c.MaxPasswordBytes,
	}
}

func currentVerifyKey(s goSession.SigningConfig) []byte {
	if s.Method == methodEd25519 {
		return s.PublicKey
	}
	return s.PrivateKey
}
