package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := cache.NewMemory(100)
	ctx := context.Background()

	err := c.Set(ctx, "membership:u1:o1", []byte(`{"role":"org_owner"}`), time.Minute)
	require.NoError(t, err)

	val, ok, err := c.Get(ctx, "membership:u1:o1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"role":"org_owner"}`), val)
}

func TestMemoryCache_Miss(t *testing.T) {
	c := cache.NewMemory(100)

	_, ok, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := cache.NewMemory(100)
	ctx := context.Background()

	err := c.Set(ctx, "short", []byte("v"), 5*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, ok, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_Delete(t *testing.T) {
	c := cache.NewMemory(100)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_Bounded(t *testing.T) {
	c := cache.NewMemory(3)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 2*time.Minute))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 3*time.Minute))
	// "a" expires soonest, so inserting a fourth entry evicts it
	require.NoError(t, c.Set(ctx, "d", []byte("4"), 4*time.Minute))

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Get(ctx, "d")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_ValueIsolation(t *testing.T) {
	c := cache.NewMemory(10)
	ctx := context.Background()

	original := []byte("immutable")
	require.NoError(t, c.Set(ctx, "k", original, time.Minute))
	original[0] = 'X'

	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("immutable"), val)
}
