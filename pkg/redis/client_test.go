package redis

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestClient_GetReportsMissingKeys(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), got)

	mr.FastForward(2 * time.Minute)
	_, found, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_GetFailsWhenServerGone(t *testing.T) {
	c, mr := newTestClient(t)
	mr.Close()

	_, found, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, found)
}

func TestClient_DeleteMatching(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	for _, k := range []string{"search:old:1", "search:old:2", "search:new:1", "other"} {
		require.NoError(t, mr.Set(k, "x"))
	}

	deleted, err := c.DeleteMatching(ctx, "search:*", func(key string) bool {
		return strings.HasPrefix(key, "search:new:")
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.True(t, mr.Exists("search:new:1"))
	assert.True(t, mr.Exists("other"))
	assert.False(t, mr.Exists("search:old:1"))
}

func TestClient_DeleteMatchingSpansScanPages(t *testing.T) {
	c, mr := newTestClient(t)
	for i := 0; i < 3*scanBatch+7; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("search:%d", i), "x"))
	}

	deleted, err := c.DeleteMatching(context.Background(), "search:*", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3*scanBatch+7), deleted)
	assert.Empty(t, mr.Keys())
}

func TestClient_DeleteMatchingKeepsAcrossPages(t *testing.T) {
	c, mr := newTestClient(t)
	for i := 0; i < 2*scanBatch+50; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("search:old:%03d", i), "x"))
		require.NoError(t, mr.Set(fmt.Sprintf("search:new:%03d", i), "x"))
	}

	deleted, err := c.DeleteMatching(context.Background(), "search:*", func(key string) bool {
		return strings.HasPrefix(key, "search:new:")
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2*scanBatch+50), deleted)
	for _, k := range mr.Keys() {
		assert.True(t, strings.HasPrefix(k, "search:new:"), k)
	}
	assert.Len(t, mr.Keys(), 2*scanBatch+50)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewClient(config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}
