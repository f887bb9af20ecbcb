// Package memcache is the in-process read-model cache used when Redis is
// disabled. Values are stored JSON-encoded so readers get their own copy.
package memcache

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"

	"github.com/DeclineZ/brain-train-sub002/internal/application/query"
)

// Cache implements query.Cache and messaging.CacheInvalidator with go-cache.
type Cache struct {
	c *cache.Cache
}

// New creates a cache whose entries default to ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{c: cache.New(ttl, 10*time.Minute)}
}

// Get decodes the entry for key into dest.
func (m *Cache) Get(_ context.Context, key string, dest any) (bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		m.c.Delete(key)
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key. A zero ttl uses the cache default.
func (m *Cache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	m.c.Set(key, data, ttl)
	return nil
}

// InvalidateUser deletes every entry under the user's prefix.
func (m *Cache) InvalidateUser(_ context.Context, userID string) error {
	prefix := query.UserCachePrefix(userID)
	for key := range m.c.Items() {
		if strings.HasPrefix(key, prefix) {
			m.c.Delete(key)
		}
	}
	return nil
}

// Len reports the number of live entries.
func (m *Cache) Len() int {
	return m.c.ItemCount()
}
