package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	datasetVersionKey = "receivables:dataset:version"
	// InvalidateChannel carries the new dataset version after a refresh.
	InvalidateChannel = "receivables.dataset.invalidate"
)

// Cache stores raw datasets in Redis under versioned keys. Bumping the version
// orphans every cached dataset; orphans expire with their TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache builds a Cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current dataset version, initialising it to 1.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, datasetVersionKey).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		ver = 1
		if err := c.client.SetNX(ctx, datasetVersionKey, ver, 0).Err(); err != nil {
			return 0, fmt.Errorf("ingest: init version: %w", err)
		}
		return ver, nil
	case err != nil:
		return 0, fmt.Errorf("ingest: read version: %w", err)
	case ver <= 0:
		ver = 1
		if err := c.client.Set(ctx, datasetVersionKey, ver, 0).Err(); err != nil {
			return 0, fmt.Errorf("ingest: reset version: %w", err)
		}
	}
	return ver, nil
}

// Key joins parts and appends the current version.
func (c *Cache) Key(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if !c.enabled() {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return joined + ":v" + strconv.FormatInt(ver, 10), nil
}

// Get decodes the value at key into dest. It reports false on a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ingest: cache get: %w", err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("ingest: cache decode: %w", err)
	}
	return true, nil
}

// Set stores value at key for the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if !c.enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ingest: cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("ingest: cache set: %w", err)
	}
	return nil
}

// Invalidate bumps the version and announces it on InvalidateChannel.
func (c *Cache) Invalidate(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Incr(ctx, datasetVersionKey).Result()
	if err != nil {
		return 0, fmt.Errorf("ingest: bump version: %w", err)
	}
	if err := c.client.Publish(ctx, InvalidateChannel, strconv.FormatInt(ver, 10)).Err(); err != nil {
		return ver, fmt.Errorf("ingest: publish invalidation: %w", err)
	}
	return ver, nil
}

// Listen subscribes to invalidations and calls onBump with each announced
// version until ctx is done.
func (c *Cache) Listen(ctx context.Context, onBump func(version int64)) error {
	if !c.enabled() {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, InvalidateChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("ingest: subscribe: %w", err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				if onBump != nil {
					onBump(ver)
				}
			}
		}
	}()
	return nil
}
