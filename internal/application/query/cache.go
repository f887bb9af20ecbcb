// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Cache is a read-through cache for query results. Keys built with
// UserCacheKey share the "user:{id}:" prefix so a cache can drop everything
// it holds for a user at once.
type Cache interface {
	// Get decodes the cached value into dest and reports whether it existed.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// UserCachePrefix is the key prefix for everything cached for a user.
func UserCachePrefix(userID string) string {
	return "user:" + userID + ":"
}

// UserCacheKey builds a per-user cache key.
func UserCacheKey(userID string, parts ...string) string {
	key := UserCachePrefix(userID)
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}
