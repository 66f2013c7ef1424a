package goSession

import (
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by goSession APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	accounts  AccountStore
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration with a deep copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the login throttle. When no AccountStore is set, the
// engine also resolves accounts from this client via [RedisAccountStore].
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the store that Login and LookupAccount consult.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the time source used for iat, exp and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and assembles an Engine. A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Security.ProductionMode && b.redis == nil {
		return nil, errors.New("ProductionMode requires redis client for the login throttle")
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		Salt:             cloneBytes(cfg.Password.Salt),
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Session.TTL,
		SigningMethod: jwt.SigningMethod(cfg.Signing.Method),
		PrivateKey:    cloneBytes(cfg.Signing.PrivateKey),
		PublicKey:     cloneBytes(cfg.Signing.PublicKey),
		Issuer:        cfg.Session.Issuer,
		Audience:      cfg.Session.Audience,
		Leeway:        cfg.Session.Leeway,
		KeyID:         cfg.Signing.KeyID,
		VerifyKeys:    cfg.Signing.VerifyKeys,
		Now:           b.now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		jwtManager:   jm,
		passwordHash: ph,
		accounts:     b.accounts,
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
		newXSRF:      internal.NewXSRFToken,
	}

	if b.redis != nil {
		if engine.accounts == nil {
			engine.accounts = NewRedisAccountStore(b.redis, cfg.Security.RedisPrefix)
		}
		if cfg.Security.MaxLoginAttempts > 0 {
			engine.rateLimiter = rate.New(b.redis, rate.Config{
				Prefix:                cfg.Security.RedisPrefix,
				EnableIPThrottle:      cfg.Security.EnableIPThrottle,
				MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
				LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
			})
		}
	}

	b.built = true

	return engine, nil
}
