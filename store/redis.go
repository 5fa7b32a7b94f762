package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKey is the key holding the document when none is configured.
	DefaultRedisKey     = "credstore:document"
	defaultRedisRetries = 8
)

var errRedisUnavailable = errors.New("store: redis unavailable")

// ErrConflict is returned when an optimistic Apply keeps losing to
// concurrent writers.
var ErrConflict = errors.New("store: too many concurrent writers")

// RedisBackend stores the document as one JSON string value. Apply uses
// WATCH/MULTI so writers in other processes cannot overwrite each other.
type RedisBackend struct {
	client     redis.UniversalClient
	key        string
	maxRetries int
}

// NewRedisBackend returns a backend bound to key. The caller owns client.
func NewRedisBackend(client redis.UniversalClient, key string) *RedisBackend {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisBackend{
		client:     client,
		key:        key,
		maxRetries: defaultRedisRetries,
	}
}

func (r *RedisBackend) Init(ctx context.Context) error {
	data, err := NewDocument().Encode()
	if err != nil {
		return err
	}
	if err := r.client.SetNX(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return nil
}

func (r *RedisBackend) Load(ctx context.Context) (*Document, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return Decode(data)
}

func (r *RedisBackend) Apply(ctx context.Context, fn ApplyFunc) error {
	for i := 0; i < r.maxRetries; i++ {
		var fnErr error

		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, r.key).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			doc, err := Decode(data)
			if err != nil {
				return err
			}

			changed, err := fn(doc)
			fnErr = err
			if !changed {
				return nil
			}

			encoded, err := doc.Encode()
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, r.key, encoded, 0)
				return nil
			})
			return err
		}, r.key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrCorruptDocument) {
				return err
			}
			return fmt.Errorf("%w: %v", errRedisUnavailable, err)
		}

		return fnErr
	}

	return ErrConflict
}

func (r *RedisBackend) Close() error { return nil }
