package main

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/credstore"
	"github.com/MrEthical07/credstore/httpapi"
	"github.com/MrEthical07/credstore/metrics/export/prometheus"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) serve(ctx context.Context, args []string) error {
	fs, common := c.newFlagSet("serve")
	addr := fs.String("addr", "", "listen address (overrides http.addr)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := common.load()
	if err != nil {
		return err
	}
	if *addr != "" {
		s.HTTP.Addr = *addr
	}

	rt, err := c.open(ctx, s)
	if err != nil {
		return err
	}
	defer rt.close()
	engine, log := rt.engine, rt.log

	throttle, releaseThrottle, err := newThrottle(s.Throttle, rt.redis)
	if err != nil {
		return err
	}
	defer releaseThrottle()

	app := newServerApp(engine, s, log, throttle)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go cleanupLoop(ctx, engine, s.CleanupInterval, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(s.HTTP.Addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	log.WithFields(logrus.Fields{
		"addr":      s.HTTP.Addr,
		"base_path": s.HTTP.BasePath,
		"metrics":   s.Metrics,
	}).Info("credctl: serving")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("credctl: shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return app.ShutdownWithContext(shutdownCtx)
}

func newServerApp(engine *credstore.Engine, s settings, log logrus.FieldLogger, throttle httpapi.Throttle) *fiber.App {
	opts := []httpapi.Option{
		httpapi.WithBasePath(s.HTTP.BasePath),
		httpapi.WithLogger(log),
	}
	if throttle != nil {
		opts = append(opts, httpapi.WithThrottle(throttle))
	}
	if s.LogResetTokens {
		opts = append(opts, httpapi.WithNotifier(httpapi.LogNotifier{Log: log}))
	} else {
		log.Warn("credctl: no reset notifier configured, reset tokens are not delivered")
	}

	app := httpapi.NewApp(engine, opts...)
	if s.Metrics {
		app.Get("/metrics", prometheus.NewPrometheusExporter(engine).FiberHandler())
	}
	return app
}

// newThrottle builds the Redis throttle when enabled. It uses its own
// client when throttle.redis_addr is set, and the store's client otherwise.
func newThrottle(s throttleSettings, storeClient redis.UniversalClient) (httpapi.Throttle, func(), error) {
	noop := func() {}
	if !s.Enabled {
		return nil, noop, nil
	}

	client, release := storeClient, noop
	if s.RedisAddr != "" {
		own := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{s.RedisAddr}})
		client, release = own, func() { _ = own.Close() }
	}
	if client == nil {
		return nil, noop, errors.New("throttle.enabled needs redis: use a redis store or set throttle.redis_addr")
	}

	cfg := httpapi.ThrottleConfig{
		MaxLoginAttempts: s.MaxLoginAttempts,
		LoginWindow:      s.LoginWindow,
		PerIP:            s.PerIP,
		MaxResetRequests: s.MaxResetRequests,
		ResetWindow:      s.ResetWindow,
	}
	return httpapi.NewRedisThrottle(client, cfg), release, nil
}

type cleaner interface {
	CleanupExpired(ctx context.Context) (*credstore.CleanupResult, error)
}

// cleanupLoop sweeps expired records every interval until ctx is done.
// A non-positive interval disables the loop.
func cleanupLoop(ctx context.Context, engine cleaner, interval time.Duration, log logrus.FieldLogger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.CleanupExpired(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("credctl: cleanup failed")
			}
		}
	}
}
