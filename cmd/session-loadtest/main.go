package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
)

type options struct {
	accounts     int
	sessions     int
	concurrency  int
	verifyOps    int
	loginOps     int
	redisAddr    string
	prefix       string
	argonMemory  uint32
	printMetrics bool
}

func main() {
	var opts options
	fs := pflag.NewFlagSet("session-loadtest", pflag.ExitOnError)
	fs.IntVar(&opts.accounts, "accounts", 1000, "number of accounts to seed")
	fs.IntVar(&opts.sessions, "sessions", 10000, "number of sessions to issue before the verify phase")
	fs.IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	fs.IntVar(&opts.verifyOps, "verify-ops", 200000, "verify operations")
	fs.IntVar(&opts.loginOps, "login-ops", 2000, "login operations")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	fs.StringVar(&opts.prefix, "prefix", "lt", "redis key prefix")
	fs.Uint32Var(&opts.argonMemory, "argon2-memory", 8*1024, "argon2id memory in KiB for the run")
	fs.BoolVar(&opts.printMetrics, "print-metrics", false, "print engine metrics after the run")
	_ = fs.Parse(os.Args[1:])

	if opts.accounts <= 0 || opts.sessions <= 0 || opts.concurrency <= 0 || opts.verifyOps <= 0 || opts.loginOps <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, sessions, concurrency and ops must be > 0")
		os.Exit(2)
	}

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	addr := opts.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, err := newEngine(client, opts)
	if err != nil {
		return err
	}
	defer engine.Close()

	store := goSession.NewRedisAccountStore(client, opts.prefix)
	fmt.Printf("seeding %d accounts...\n", opts.accounts)
	startSeed := time.Now()
	for i := 0; i < opts.accounts; i++ {
		if err := store.Put(ctx, goSession.Account{
			ID:             accountID(i),
			Username:       username(i),
			PasswordDigest: engine.Hash(password(i)),
		}); err != nil {
			return fmt.Errorf("seed account: %w", err)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	issued := make([]*goSession.IssuedSession, opts.sessions)
	issueStats := runPhase(opts.sessions, opts.concurrency, func(i int, _ *rand.Rand) error {
		s, err := engine.IssueSession(ctx, accountID(i%opts.accounts))
		issued[i] = s
		return err
	})
	for _, s := range issued {
		if s == nil {
			return fmt.Errorf("issue phase produced failures; aborting")
		}
	}

	verifyStats := runPhase(opts.verifyOps, opts.concurrency, func(_ int, r *rand.Rand) error {
		s := issued[r.Intn(len(issued))]
		_, err := engine.Verify(ctx, s.Credential, s.XSRF)
		return err
	})

	loginStats := runPhase(opts.loginOps, opts.concurrency, func(_ int, r *rand.Rand) error {
		n := r.Intn(opts.accounts)
		_, err := engine.Login(ctx, username(n), password(n))
		return err
	})

	fmt.Println("---- results ----")
	printStats("issue", issueStats)
	printStats("verify", verifyStats)
	printStats("login", loginStats)

	if opts.printMetrics {
		fmt.Print(prometheus.NewExporter(engine).Render())
	}
	return nil
}

func newEngine(client redis.UniversalClient, opts options) (*goSession.Engine, error) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i*7 + 3)
	}

	cfg := goSession.DefaultConfig()
	cfg.Signing.PrivateKey = key
	cfg.Password.Salt = []byte("session-loadtest-salt")
	cfg.Password.Memory = opts.argonMemory
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.RedisPrefix = opts.prefix
	cfg.Security.MaxLoginAttempts = 0
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := goSession.New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return engine, nil
}

func accountID(i int) string { return fmt.Sprintf("acct-%d", i) }
func username(i int) string  { return fmt.Sprintf("user-%d", i) }
func password(i int) string  { return fmt.Sprintf("password-%d", i) }

func runPhase(ops, concurrency int, op func(i int, r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(i, r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
