// Package cache is a redis read-through layer in front of the snapshot table.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	models "folio/internal/domain/models/content"
)

// PrefixSnapshot is the key prefix for cached snapshots
const PrefixSnapshot = "snapshot:"

// TTLDefault applies when no TTL is configured
const TTLDefault = 10 * time.Minute

// SnapshotCache caches rendered snapshots by node id. A nil client disables caching: reads miss
// and writes are ignored.
type SnapshotCache interface {
	Get(ctx context.Context, nodeID int64) (*models.Snapshot, bool)
	Set(ctx context.Context, snapshot *models.Snapshot) error
	Invalidate(ctx context.Context, nodeIDs ...int64) error
	InvalidateAll(ctx context.Context) error
	IsAvailable() bool
}

type redisSnapshotCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSnapshotCache creates a snapshot cache. keyPrefix separates environments sharing a server.
func NewSnapshotCache(client *redis.Client, keyPrefix string, ttl time.Duration) SnapshotCache {
	if ttl <= 0 {
		ttl = TTLDefault
	}
	return &redisSnapshotCache{
		client: client,
		prefix: keyPrefix + PrefixSnapshot,
		ttl:    ttl,
	}
}

// NewClient parses a redis:// URL and verifies the connection
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (c *redisSnapshotCache) key(nodeID int64) string {
	return c.prefix + strconv.FormatInt(nodeID, 10)
}

func (c *redisSnapshotCache) IsAvailable() bool {
	return c.client != nil
}

// Get reports a miss on any error, including an unreachable server
func (c *redisSnapshotCache) Get(ctx context.Context, nodeID int64) (*models.Snapshot, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, c.key(nodeID)).Bytes()
	if err != nil {
		return nil, false
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

func (c *redisSnapshotCache) Set(ctx context.Context, snapshot *models.Snapshot) error {
	if c.client == nil {
		return nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(snapshot.NodeID), data, c.ttl).Err()
}

func (c *redisSnapshotCache) Invalidate(ctx context.Context, nodeIDs ...int64) error {
	if c.client == nil || len(nodeIDs) == 0 {
		return nil
	}
	keys := make([]string, len(nodeIDs))
	for i, id := range nodeIDs {
		keys[i] = c.key(id)
	}
	err := c.client.Del(ctx, keys...).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (c *redisSnapshotCache) InvalidateAll(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
