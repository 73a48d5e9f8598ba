// Package cache provides a read-through Redis cache for the department list,
// the hottest reference-data read (consulted on every report creation and
// entry authorization).
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"qualitrack/internal/refdata/models"
)

const departmentsKey = "refdata:departments"

// DepartmentCache caches the full department list with a TTL. A nil *DepartmentCache
// is valid and bypasses caching entirely, so callers never branch on Redis
// availability.
type DepartmentCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDepartmentCache(client *redis.Client, ttl time.Duration) *DepartmentCache {
	if client == nil {
		return nil
	}
	return &DepartmentCache{client: client, ttl: ttl}
}

// Get returns the cached department list, or nil on miss or any Redis error.
// Cache failures are never surfaced; the caller falls through to the store.
func (c *DepartmentCache) Get(ctx context.Context) []*models.Department {
	if c == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, departmentsKey).Bytes()
	if err != nil {
		return nil
	}
	var departments []*models.Department
	if err := json.Unmarshal(raw, &departments); err != nil {
		return nil
	}
	return departments
}

// Set stores the department list, best-effort.
func (c *DepartmentCache) Set(ctx context.Context, departments []*models.Department) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(departments)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, departmentsKey, raw, c.ttl).Err()
}

// Invalidate drops the cached list. Called on every department mutation.
func (c *DepartmentCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	_ = c.client.Del(ctx, departmentsKey).Err()
}
