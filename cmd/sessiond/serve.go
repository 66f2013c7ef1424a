package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/httpapi"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
)

const defaultShutdownTimeout = 10 * time.Second

// serveConfig holds flags that only make sense for the serve command.
type serveConfig struct {
	devRedis        bool
	shutdownTimeout time.Duration
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	opts := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP session service",
		Long: `Serves POST /session (login), GET /session (verify), GET / (route manifest),
GET /healthz and GET /metrics. Settings come from flags, SESSIOND_* variables
and the --env-file, in that order of precedence.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&opts.devRedis, "dev-redis", false, "run against an in-process miniredis (development only)")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", defaultShutdownTimeout, "grace period for in-flight requests on shutdown")

	return cmd
}

func runServe(cmd *cobra.Command, opts *serveConfig) error {
	cfg, err := config.Load(cmd.Flags(), envFile)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rt, err := newRuntime(cmd.Context(), cfg, opts, logger)
	if err != nil {
		logError(logger, "startup failed", err)
		return err
	}
	defer rt.Close()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		err = oops.Code("LISTEN_FAILED").With("addr", cfg.Listen).Wrap(err)
		logError(logger, "startup failed", err)
		return err
	}
	logger.Info("listening", zap.String("addr", ln.Addr().String()))

	srv := &http.Server{
		Handler:           rt.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return serveUntilDone(cmd.Context(), srv, ln, opts.shutdownTimeout, logger)
}

// runtime is everything serve builds before it accepts connections.
type runtime struct {
	engine   *goSession.Engine
	accounts *goSession.RedisAccountStore
	handler  http.Handler
	closers  []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func newRuntime(ctx context.Context, cfg *config.Config, opts *serveConfig, logger *zap.Logger) (*runtime, error) {
	rt := &runtime{}
	built, err := rt.build(ctx, cfg, opts, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return built, nil
}

func (rt *runtime) build(ctx context.Context, cfg *config.Config, opts *serveConfig, logger *zap.Logger) (*runtime, error) {
	if len(cfg.SigningKey) == 0 && cfg.EphemeralKey {
		if err := useEphemeralKey(cfg); err != nil {
			return nil, err
		}
		logger.Warn("using an ephemeral signing key; sessions will not survive a restart",
			zap.String("signing_method", cfg.SigningMethod))
	}

	redisAddr := cfg.RedisAddr
	if opts.devRedis {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, oops.Code("REDIS_UNAVAILABLE").With("operation", "start miniredis").Wrap(err)
		}
		rt.closers = append(rt.closers, mr.Close)
		redisAddr = mr.Addr()
		logger.Warn("using in-process miniredis; accounts are lost on exit", zap.String("addr", redisAddr))
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	for _, w := range engineCfg.Lint() {
		logger.Warn("configuration warning", zap.String("code", w.Code), zap.String("detail", w.Message))
	}

	builder := goSession.New().WithConfig(engineCfg)
	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, oops.Code("REDIS_UNAVAILABLE").With("addr", redisAddr).Wrap(err)
		}
		builder = builder.WithRedis(client)
		rt.accounts = goSession.NewRedisAccountStore(client, engineCfg.Security.RedisPrefix)
	} else {
		logger.Warn("no redis configured; logins fail until an account store is available")
	}
	if cfg.AuditEnabled {
		builder = builder.WithAuditSink(zapAuditSink{logger: logger.Named("audit")})
	}

	engine, err := builder.Build()
	if err != nil {
		return nil, oops.Code("ENGINE_BUILD_FAILED").Wrap(err)
	}
	rt.engine = engine
	rt.closers = append(rt.closers, engine.Close)

	if err := engine.Probe(ctx); err != nil {
		return nil, oops.Code("STARTUP_PROBE_FAILED").With("error_code", goSession.ErrorCode(err)).Wrap(err)
	}

	report := engine.SecurityReport()
	logger.Info("engine ready",
		zap.String("signing_algorithm", report.SigningAlgorithm),
		zap.String("key_id", report.KeyID),
		zap.Int("verify_keys", report.VerifyKeyCount),
		zap.Duration("session_ttl", report.SessionTTL),
		zap.Bool("rate_limiting", report.RateLimitingActive),
		zap.Bool("production", report.ProductionMode),
	)

	opt := httpapi.Options{
		Info: httpapi.Info{
			Name:        "sessiond",
			Version:     version,
			Description: "Stateless session issuance and verification",
		},
	}
	if cfg.MetricsEnabled {
		opt.Metrics = prometheus.NewExporter(engine).Handler()
	}
	rt.handler = httpapi.New(engine, logger, opt).Handler()
	return rt, nil
}

func useEphemeralKey(cfg *config.Config) error {
	if cfg.SigningMethod == "ed25519" {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return oops.Code("ENTROPY_UNAVAILABLE").Wrap(err)
		}
		cfg.SigningKey, cfg.PublicKey = priv, pub
		return nil
	}
	key, err := internal.NewSecret(internal.MinSecretBytes)
	if err != nil {
		return oops.Code("ENTROPY_UNAVAILABLE").Wrap(err)
	}
	cfg.SigningKey = key
	return nil
}

func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return oops.Code("SERVE_FAILED").Wrap(err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("grace", grace))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}
	<-errCh
	return nil
}
