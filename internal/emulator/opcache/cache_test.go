package opcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/redis"
)

const opName = "projects/p/databases/(default)/operations/01"

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis, *metrics.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return New(client, time.Minute, m), mr, m
}

func doneOp(t *testing.T) *proto.Operation {
	op := &proto.Operation{Name: opName}
	require.NoError(t, op.SetResponse(&proto.Empty{}))
	return op
}

func TestPutOnlyCachesDoneOperations(t *testing.T) {
	c, mr, m := newCache(t)
	ctx := context.Background()

	c.Put(ctx, &proto.Operation{Name: opName})
	_, ok := c.Get(ctx, opName)
	assert.False(t, ok)

	c.Put(ctx, doneOp(t))
	got, ok := c.Get(ctx, opName)
	require.True(t, ok)
	assert.True(t, got.Done)
	assert.True(t, got.Response.Is(&proto.Empty{}))

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, opName)
	assert.False(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationCacheHits))
}

func TestGetOrLoadSharesConcurrentLoads(t *testing.T) {
	c, _, _ := newCache(t)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (*proto.Operation, error) {
		calls.Add(1)
		<-release
		return doneOp(t), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			op, _, err := c.GetOrLoad(ctx, opName, load)
			assert.NoError(t, err)
			assert.Equal(t, opName, op.Name)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(5))

	_, hit, err := c.GetOrLoad(ctx, opName, func(context.Context) (*proto.Operation, error) {
		t.Fatal("load called for a cached operation")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestGetOrLoadError(t *testing.T) {
	c, _, _ := newCache(t)
	boom := errors.New("boom")
	_, _, err := c.GetOrLoad(context.Background(), opName, func(context.Context) (*proto.Operation, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestInvalidate(t *testing.T) {
	c, _, _ := newCache(t)
	ctx := context.Background()
	c.Put(ctx, doneOp(t))
	other := doneOp(t)
	other.Name = "projects/p/databases/other/operations/02"
	c.Put(ctx, other)

	require.NoError(t, c.InvalidateDatabase(ctx, "projects/p/databases/(default)"))
	_, ok := c.Get(ctx, opName)
	assert.False(t, ok)
	_, ok = c.Get(ctx, other.Name)
	assert.True(t, ok)

	require.NoError(t, c.Invalidate(ctx, other.Name))
	_, ok = c.Get(ctx, other.Name)
	assert.False(t, ok)
}
