package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	id "civreg/pkg/domain"
)

// DefaultCacheTTL bounds staleness of cached locations. Office hierarchy
// changes are rare administrative events, so an hour is conservative.
const DefaultCacheTTL = time.Hour

// Cache decorates a Resolver with a Redis lookaside cache. Cache failures
// degrade to the inner resolver; they never fail a lookup. Unknown offices
// are not cached so a newly provisioned office appears immediately.
type Cache struct {
	inner  Resolver
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(inner Resolver, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *Cache) Resolve(ctx context.Context, officeID id.OfficeID) (Location, error) {
	key := cacheKey(officeID)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var loc Location
		if err := json.Unmarshal(payload, &loc); err == nil {
			return loc, nil
		}
		// Corrupt entry: drop it and fall through to the source of truth.
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "directory cache read failed", "office_id", officeID, "error", err)
	}

	loc, err := c.inner.Resolve(ctx, officeID)
	if err != nil {
		return Location{}, err
	}

	if payload, err := json.Marshal(loc); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "directory cache write failed", "office_id", officeID, "error", err)
		}
	}
	return loc, nil
}

// Invalidate drops a cached office, for use by reference-data admin tooling.
func (c *Cache) Invalidate(ctx context.Context, officeID id.OfficeID) error {
	return c.client.Del(ctx, cacheKey(officeID)).Err()
}

func cacheKey(officeID id.OfficeID) string {
	return "directory:office:" + string(officeID)
}
