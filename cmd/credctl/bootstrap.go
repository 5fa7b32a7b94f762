package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/MrEthical07/credstore"
	"github.com/MrEthical07/credstore/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func newLogger(s logSettings, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(s.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	switch strings.ToLower(s.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", s.Format)
	}
	return log, nil
}

// backendHandle is an opened backend plus the Redis client behind it, if
// any. release frees the client; the engine closes the backend itself.
type backendHandle struct {
	backend store.Backend
	redis   redis.UniversalClient
	release func()
}

func openBackend(ctx context.Context, s storeSettings, log logrus.FieldLogger) (*backendHandle, error) {
	noop := func() {}

	switch s.Driver {
	case driverMemory:
		log.Warn("credctl: using the in-memory store, data is lost on exit")
		return &backendHandle{backend: store.NewMemoryBackend(), release: noop}, nil

	case driverFile:
		log.WithField("path", s.Path).Info("credctl: using the file store")
		return &backendHandle{backend: store.NewFileBackend(s.Path), release: noop}, nil

	case driverRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{s.RedisAddr}})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", s.RedisAddr, err)
		}
		log.WithFields(logrus.Fields{"addr": s.RedisAddr, "key": s.RedisKey}).Info("credctl: using the redis store")
		return &backendHandle{
			backend: store.NewRedisBackend(client, s.RedisKey),
			redis:   client,
			release: func() { _ = client.Close() },
		}, nil

	case driverMiniredis:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		log.WithField("addr", mr.Addr()).Warn("credctl: using an in-process miniredis, data is lost on exit")
		release := func() {
			_ = client.Close()
			mr.Close()
		}
		return &backendHandle{backend: store.NewRedisBackend(client, s.RedisKey), redis: client, release: release}, nil

	case driverPostgres:
		backend, err := store.OpenPostgres(ctx, s.PostgresDSN, s.Document)
		if err != nil {
			return nil, err
		}
		log.WithField("document", s.Document).Info("credctl: using the postgres store")
		return &backendHandle{backend: backend, release: noop}, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", s.Driver)
}

func engineConfig(s settings) credstore.Config {
	cfg := credstore.DefaultConfig()
	cfg.Token.Secret = []byte(s.Secret)
	cfg.Token.AccessTTL = s.AccessTTL
	cfg.Token.RefreshTTL = s.RefreshTTL
	cfg.PasswordReset.ResetTTL = s.ResetTTL
	cfg.Password.Memory = s.PasswordMemoryKiB
	cfg.Password.Time = s.PasswordTime
	cfg.Metrics.Enabled = s.Metrics
	cfg.Metrics.EnableLatencyHistograms = s.Metrics
	return cfg
}

// runtime is everything a command needs from an opened store.
type runtime struct {
	engine *credstore.Engine
	log    *logrus.Logger
	// redis is the store's client; nil unless the store is Redis backed.
	redis redis.UniversalClient
	close func()
}

// openEngine wires a backend, logger and audit sink into a ready engine.
// runtime.close closes the engine and then releases the backend's client.
func openEngine(ctx context.Context, s settings, log *logrus.Logger) (*runtime, error) {
	h, err := openBackend(ctx, s.Store, log)
	if err != nil {
		return nil, err
	}

	engine, err := credstore.New().
		WithConfig(engineConfig(s)).
		WithBackend(h.backend).
		WithLogger(log).
		WithAuditSink(credstore.NewLogrusSink(log)).
		BuildContext(ctx)
	if err != nil {
		_ = h.backend.Close()
		h.release()
		return nil, fmt.Errorf("build engine: %w", err)
	}

	return &runtime{
		engine: engine,
		log:    log,
		redis:  h.redis,
		close: func() {
			if err := engine.Close(); err != nil {
				log.WithError(err).Warn("credctl: engine close failed")
			}
			h.release()
		},
	}, nil
}
