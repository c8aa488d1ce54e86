package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("t", time.Minute)
	defer c.Close()

	_, err := c.Get(ctx, "k")
	require.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	require.True(t, IsNotFound(err))
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", time.Minute)

	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	time.Sleep(50 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	require.True(t, IsNotFound(err), "expected expired key, got %v", err)
}

func TestNew_Kinds(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, Config{Kind: "none"})
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "k", "v", 0))
	_, err = c.Get(ctx, "k")
	require.True(t, IsNotFound(err))

	c, err = New(ctx, Config{})
	require.NoError(t, err)
	require.NoError(t, c.Ping(ctx))

	_, err = New(ctx, Config{Kind: "memcached"})
	require.Error(t, err)

	_, err = New(ctx, Config{Kind: "redis"})
	require.Error(t, err)
}

func TestRedis_SetGet(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedis(ctx, Config{Addr: addr, Prefix: "fleetconsole-test", DefaultTTL: time.Minute})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", got)
	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	require.True(t, IsNotFound(err))
}
