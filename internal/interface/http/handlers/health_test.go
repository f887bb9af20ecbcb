package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCompositeHealthChecker_NoChecksIsReady(t *testing.T) {
	status := NewCompositeHealthChecker("v1").Check(context.Background())

	assert.True(t, status.Ready)
	assert.Equal(t, StatusOK, status.Status)
	assert.Equal(t, "v1", status.Version)
}

func TestCompositeHealthChecker_OptionalFailureDegrades(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("database", NewDatabaseCheck(pingFunc(func(context.Context) error { return nil })))
	c.AddOptionalCheck("cache", NewCacheCheck(pingFunc(func(context.Context) error { return errors.New("connection refused") })))

	status := c.Check(context.Background())

	assert.True(t, status.Ready)
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Contains(t, status.Message, "cache")
	require.Contains(t, status.Checks, "cache")
	assert.False(t, status.Checks["cache"].Healthy)
	assert.False(t, status.Checks["cache"].Required)
	assert.Equal(t, "connection refused", status.Checks["cache"].Message)
}

func TestCompositeHealthChecker_RequiredFailureIsDown(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("migrations", NewMigrationCheck(func(context.Context) (int, error) { return 2, nil }))
	c.AddOptionalCheck("cache", NewCacheCheck(pingFunc(func(context.Context) error { return errors.New("down") })))

	status := c.Check(context.Background())

	assert.False(t, status.Ready)
	assert.Equal(t, StatusDown, status.Status)
	assert.Equal(t, "required checks failed: migrations", status.Message)
	assert.Equal(t, "2 migrations pending", status.Checks["migrations"].Message)
}

func TestCompositeHealthChecker_TimesOutSlowChecks(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.SetTimeout(10 * time.Millisecond)
	c.AddCheck("database", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())

	assert.False(t, status.Ready)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["database"].Message)
}

func TestMigrationCheck_PropagatesError(t *testing.T) {
	check := NewMigrationCheck(func(context.Context) (int, error) { return 0, errors.New("no table") })
	assert.EqualError(t, check(context.Background()), "no table")
}

func TestRateLimiter_CountsPerKey(t *testing.T) {
	l := NewRateLimiter(2, time.Minute)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.Equal(t, "60", l.RetryAfter())
}
