// Package cache holds projected grunnlag snapshots in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
)

const keyPrefix = "grunnlag:snapshot"

// DefaultTTL bounds how long an unread snapshot is kept.
const DefaultTTL = 10 * time.Minute

// RedisSnapshotCache stores projections as JSON under a key that includes the
// ledger version, so a new append simply misses instead of invalidating.
type RedisSnapshotCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisSnapshotCache creates a cache. A non-positive ttl uses DefaultTTL.
func NewRedisSnapshotCache(client redis.Cmdable, ttl time.Duration) (*RedisSnapshotCache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSnapshotCache{client: client, ttl: ttl}, nil
}

// Key returns the cache key of a snapshot.
func Key(caseID domain.CaseID, applicant domain.PersonID, version int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", keyPrefix, caseID, applicant, version)
}

// Get returns the snapshot for the exact version, if present.
func (c *RedisSnapshotCache) Get(ctx context.Context, caseID domain.CaseID, applicant domain.PersonID, version int64) (models.Grunnlag, bool, error) {
	data, err := c.client.Get(ctx, Key(caseID, applicant, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Grunnlag{}, false, nil
	}
	if err != nil {
		return models.Grunnlag{}, false, fmt.Errorf("%w: get snapshot: %w", sentinel.ErrUnavailable, err)
	}
	var g models.Grunnlag
	if err := json.Unmarshal(data, &g); err != nil {
		return models.Grunnlag{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return g, true, nil
}

// Put stores g under its own case id and version.
func (c *RedisSnapshotCache) Put(ctx context.Context, applicant domain.PersonID, g models.Grunnlag) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	key := Key(g.Metadata.CaseID, applicant, g.Metadata.LatestVersion)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: put snapshot: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}
