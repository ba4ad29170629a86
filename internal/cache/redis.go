package cache

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MaTriXy/stagehand/api/schemas"
	"github.com/MaTriXy/stagehand/internal/config"
)

var entryJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisStore keeps each namespace in one Redis hash, field = cache key,
// value = JSON-encoded entry. A Write is acknowledged once the server has
// applied it; whether that survives a server crash depends on the server's
// persistence settings (AOF or RDB), which this store cannot control.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore dials the server and verifies it answers.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, logger: logger.Named("cache.redis")}, nil
}

// hashKeyFor resolves a namespace to its Redis hash key.
func hashKeyFor(ns schemas.Namespace) (string, error) {
	if !ns.Valid() {
		return "", fmt.Errorf("unknown cache namespace %q", string(ns))
	}
	return "stagehand:cache:" + string(ns), nil
}

func encodeEntry(entry schemas.CacheEntry) (string, error) {
	raw, err := entryJSON.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encode cache entry: %w", err)
	}
	return string(raw), nil
}

func decodeEntry(raw string) (schemas.CacheEntry, error) {
	var entry schemas.CacheEntry
	if err := entryJSON.UnmarshalFromString(raw, &entry); err != nil {
		return schemas.CacheEntry{}, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, nil
}

// Load reads every entry in one namespace.
func (s *RedisStore) Load(ctx context.Context, ns schemas.Namespace) (map[schemas.CacheKey]schemas.CacheEntry, error) {
	hashKey, err := hashKeyFor(ns)
	if err != nil {
		return nil, err
	}

	fields, err := s.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ns, err)
	}

	entries := make(map[schemas.CacheKey]schemas.CacheEntry, len(fields))
	for key, raw := range fields {
		entry, err := decodeEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("namespace %s key %s: %w", ns, key, err)
		}
		entries[schemas.CacheKey(key)] = entry
	}
	return entries, nil
}

// Write upserts one entry.
func (s *RedisStore) Write(ctx context.Context, ns schemas.Namespace, key schemas.CacheKey, entry schemas.CacheEntry) error {
	hashKey, err := hashKeyFor(ns)
	if err != nil {
		return err
	}
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, hashKey, string(key), raw).Err(); err != nil {
		return fmt.Errorf("upsert %s entry: %w", ns, err)
	}
	return nil
}

// Clear drops every entry in one namespace.
func (s *RedisStore) Clear(ctx context.Context, ns schemas.Namespace) error {
	hashKey, err := hashKeyFor(ns)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, hashKey).Err(); err != nil {
		return fmt.Errorf("clear %s: %w", ns, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
