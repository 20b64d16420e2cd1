package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/ocean-contour-service/internal/config"
	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// keyPrefix versions the stored encoding; bump it when ContourSet changes shape.
const keyPrefix = "ocean_contour:v1:"

type client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// Mirror shares computed sets between service instances with a TTL.
// It implements pipeline.Mirror.
type Mirror struct {
	client client
	ttl    time.Duration
	logger *slog.Logger
}

// NewMirror creates a mirror for the configured Redis server.
func NewMirror(cfg *config.Config, logger *slog.Logger) *Mirror {
	c := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &Mirror{client: c, ttl: cfg.RedisTTL, logger: logger}
}

// StorageKey is the Redis key holding the set for key.
func StorageKey(key domain.Key) string {
	return keyPrefix + key.String()
}

// Ping checks connectivity.
func (m *Mirror) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Get returns the mirrored set for key, or nil without error on a miss.
// Entries that no longer decode are treated as misses.
func (m *Mirror) Get(ctx context.Context, key domain.Key) (*domain.ContourSet, error) {
	data, err := m.client.Get(ctx, StorageKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	set, err := domain.DecodeContourSet(data)
	if err != nil {
		m.logger.Warn("discarding undecodable mirror entry", "key", key.String(), "error", err)
		return nil, nil
	}
	return set, nil
}

// Put stores the set under its key with the configured TTL.
func (m *Mirror) Put(ctx context.Context, set *domain.ContourSet) error {
	data, err := domain.EncodeContourSet(set)
	if err != nil {
		return err
	}
	if err := m.client.Set(ctx, StorageKey(set.Key), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", set.Key, err)
	}
	return nil
}

func (m *Mirror) Close() error {
	return m.client.Close()
}
