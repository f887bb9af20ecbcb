package memcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeclineZ/brain-train-sub002/internal/application/query"
)

type payload struct {
	Streak int    `json:"streak"`
	Day    string `json:"day"`
}

func TestCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := New(time.Minute)

	var got payload
	hit, err := c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "k", payload{Streak: 3, Day: "2026-05-01"}, 0))

	hit, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, payload{Streak: 3, Day: "2026-05-01"}, got)
}

func TestCache_ReadersGetCopies(t *testing.T) {
	ctx := context.Background()
	c := New(time.Minute)

	in := &payload{Streak: 1}
	require.NoError(t, c.Set(ctx, "k", in, time.Minute))
	in.Streak = 99

	var got payload
	_, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Streak)
}

func TestCache_InvalidateUser(t *testing.T) {
	ctx := context.Background()
	c := New(time.Minute)

	alice := "11111111-1111-1111-1111-111111111111"
	bob := "22222222-2222-2222-2222-222222222222"

	require.NoError(t, c.Set(ctx, query.UserCacheKey(alice, "profile"), payload{}, 0))
	require.NoError(t, c.Set(ctx, query.UserCacheKey(alice, "checkin_status", "2026-05-01"), payload{}, 0))
	require.NoError(t, c.Set(ctx, query.UserCacheKey(bob, "profile"), payload{}, 0))

	require.NoError(t, c.InvalidateUser(ctx, alice))

	assert.Equal(t, 1, c.Len())
	var got payload
	hit, err := c.Get(ctx, query.UserCacheKey(bob, "profile"), &got)
	require.NoError(t, err)
	assert.True(t, hit)
}
