package cache

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore is the distributed cache tier backed by go-redis. All errors
// are absorbed: reads degrade to full misses and writes are fire-and-forget,
// so an unreachable backend slows the service down without failing it.
type RedisStore struct {
	client *goredis.Client
	logger *slog.Logger
}

// RedisOptions carries the connection parameters injected by the deployment
// layer.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// NewRedisStore creates a Redis-backed store. The connection is established
// lazily; a backend that is down at construction time only costs misses.
func NewRedisStore(opts RedisOptions, logger *slog.Logger) *RedisStore {
	ropts := &goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.TLS {
		ropts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &RedisStore{
		client: goredis.NewClient(ropts),
		logger: logger,
	}
}

func (s *RedisStore) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		s.logger.Warn("cache read failed, treating as miss",
			slog.Int("keys", len(keys)),
			slog.String("error", err.Error()))
		return map[string][]byte{}, nil
	}

	found := make(map[string][]byte, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok {
			found[keys[i]] = []byte(str)
		}
	}
	return found, nil
}

func (s *RedisStore) PutMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for k, v := range entries {
		pipe.Set(ctx, k, v, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("cache write failed, dropping entries",
			slog.Int("entries", len(entries)),
			slog.String("error", err.Error()))
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
