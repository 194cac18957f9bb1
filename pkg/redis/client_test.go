package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
)

type cached struct {
	Name string `json:"name"`
	Done bool   `json:"done"`
}

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestJSONHelpers(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, found, err := GetJSON[cached](ctx, c, "op:missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, c, "op:1", cached{Name: "op1", Done: true}, time.Minute))
	got, found, err := GetJSON[cached](ctx, c, "op:1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, cached{Name: "op1", Done: true}, got)

	mr.FastForward(2 * time.Minute)
	_, found, err = GetJSON[cached](ctx, c, "op:1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFlushByPattern(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	for _, k := range []string{"op:a:1", "op:a:2", "op:b:1"} {
		require.NoError(t, c.Set(ctx, k, "x", 0))
	}
	n, err := c.FlushByPattern(ctx, "op:a:*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = c.Get(ctx, "op:a:1")
	assert.True(t, IsNilError(err))
	v, err := c.Get(ctx, "op:b:1")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
	require.NoError(t, c.Ping(ctx))
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	_, err := NewClient(config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
