// Command credstore-loadtest measures engine throughput against a Redis
// backed store (miniredis unless -redis-addr or REDIS_ADDR is set).
//
// It seeds users, logs each in once, then runs three phases concurrently:
// access-token verification, refresh, and login.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/credstore"
	"github.com/MrEthical07/credstore/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type account struct {
	username string
	access   string
	refresh  string
}

func main() {
	var (
		users       = flag.Int("users", 200, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per verify/refresh phase")
		loginOps    = flag.Int("login-ops", 500, "operations in the login phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		key         = flag.String("key", "credstore:loadtest", "redis key for the document")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *loginOps <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, ops and login-ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	engine, err := newEngine(ctx, client, *key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d accounts...\n", *users)
	startSeed := time.Now()
	accounts, err := seed(ctx, engine, *users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	verifyStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		if _, ok := engine.VerifyAccessToken(accounts[r.Intn(len(accounts))].access); !ok {
			return fmt.Errorf("access token rejected")
		}
		return nil
	})
	refreshStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		_, err := engine.RefreshAccessToken(ctx, accounts[r.Intn(len(accounts))].refresh)
		return err
	})
	loginStats := runPhase(*loginOps, *concurrency, 4093, func(r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, accounts[r.Intn(len(accounts))].username, password)
		return err
	})

	fmt.Println("---- results ----")
	printStats(os.Stdout, "verify", verifyStats)
	printStats(os.Stdout, "refresh", refreshStats)
	printStats(os.Stdout, "login", loginStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("store latency buckets: %v\n", snap.Histograms[credstore.MetricStoreLatency])
}

const password = "loadtest-password"

func newEngine(ctx context.Context, client redis.UniversalClient, key string) (*credstore.Engine, error) {
	cfg := credstore.DefaultConfig()
	// Minimum Argon2 cost; the login phase measures the store, not the KDF.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	return credstore.New().
		WithConfig(cfg).
		WithBackend(store.NewRedisBackend(client, key)).
		WithSecret([]byte("credstore-loadtest-secret-0123456789")).
		WithLogger(log).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		BuildContext(ctx)
}

func seed(ctx context.Context, engine *credstore.Engine, n int) ([]account, error) {
	suffix := time.Now().UnixNano()
	accounts := make([]account, n)
	for i := range accounts {
		username := fmt.Sprintf("load-%d-%d", suffix, i)
		if _, err := engine.Register(ctx, username, username+"@loadtest.invalid", password); err != nil {
			return nil, err
		}
		res, err := engine.Authenticate(ctx, username, password)
		if err != nil {
			return nil, err
		}
		accounts[i] = account{username: username, access: res.AccessToken, refresh: res.RefreshToken}
	}
	return accounts, nil
}

// runPhase runs op ops times across concurrency workers and records each
// call's latency.
func runPhase(ops, concurrency int, seedSalt int64, op func(r *rand.Rand) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seedSalt))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r)
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
		return phaseStats{total: total, failures: failures}
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

// percentile expects sorted samples.
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
