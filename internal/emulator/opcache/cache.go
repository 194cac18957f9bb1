// Package opcache caches finished long-running operations in Redis. A
// finished operation never changes again, so polls for it can skip the
// store; concurrent polls for the same operation share one store read.
package opcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/redis"
)

const keyPrefix = "op:"

type Cache struct {
	client  *pkgredis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache whose entries live for ttl. m may be nil.
func New(client *pkgredis.Client, ttl time.Duration, m *metrics.Metrics) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "operation-cache"),
	}
}

func (c *Cache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.OperationCacheHits.Inc()
	}
}

func (c *Cache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.OperationCacheMisses.Inc()
	}
}

// Get returns the cached operation called name.
func (c *Cache) Get(ctx context.Context, name string) (*proto.Operation, bool) {
	op, found, err := pkgredis.GetJSON[proto.Operation](ctx, c.client, keyPrefix+name)
	if err != nil {
		c.logger.Error("cache get failed", "operation", name, "error", err)
		c.miss()
		return nil, false
	}
	if !found {
		c.miss()
		return nil, false
	}
	c.hit()
	return &op, true
}

// Put caches op if it is done. Unfinished operations are ignored.
func (c *Cache) Put(ctx context.Context, op *proto.Operation) {
	if op == nil || !op.Done {
		return
	}
	if err := pkgredis.SetJSON(ctx, c.client, keyPrefix+op.Name, op, c.ttl); err != nil {
		c.logger.Error("cache set failed", "operation", op.Name, "error", err)
	}
}

// GetOrLoad returns the operation from the cache or from load. Concurrent
// misses for one name call load once. The boolean reports a cache hit.
func (c *Cache) GetOrLoad(
	ctx context.Context,
	name string,
	load func(ctx context.Context) (*proto.Operation, error),
) (*proto.Operation, bool, error) {
	if op, ok := c.Get(ctx, name); ok {
		return op, true, nil
	}
	val, err, _ := c.group.Do(name, func() (any, error) {
		op, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(ctx, op)
		return op, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*proto.Operation).Clone(), false, nil
}

// Invalidate drops the entry for one operation.
func (c *Cache) Invalidate(ctx context.Context, name string) error {
	if err := c.client.Del(ctx, keyPrefix+name); err != nil {
		return fmt.Errorf("invalidating %s: %w", name, err)
	}
	return nil
}

// InvalidateDatabase drops every cached operation of database.
func (c *Cache) InvalidateDatabase(ctx context.Context, database string) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+database+"/operations/*")
	if err != nil {
		return fmt.Errorf("invalidating operations of %s: %w", database, err)
	}
	c.logger.Debug("cache invalidate", "database", database, "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
