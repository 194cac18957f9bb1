// Package collector buffers operation events in memory and publishes them to
// Kafka in batches.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/metrics"
)

// BatchCollector accumulates events and flushes them to Kafka when the
// buffer reaches batchSize or every flushInterval, whichever comes first.
// After a failed flush the events are requeued; at most 3×batchSize events
// are held and the oldest overflow is dropped.
type BatchCollector struct {
	producer      *kafka.Producer
	metrics       *metrics.Metrics
	mu            sync.Mutex
	flushMu       sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
}

// NewBatchCollector creates a collector. m may be nil.
func NewBatchCollector(producer *kafka.Producer, batchSize int, flushInterval time.Duration, m *metrics.Metrics) *BatchCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchCollector{
		producer:      producer,
		metrics:       m,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "batch-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop, which runs until ctx is
// cancelled and then flushes once more.
func (bc *BatchCollector) Start(ctx context.Context) {
	go func() {
		defer close(bc.done)
		ticker := time.NewTicker(bc.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				bc.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				bc.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	bc.logger.Info("batch collector started",
		"batch_size", bc.batchSize,
		"flush_interval", bc.flushInterval,
	)
}

// Track buffers event, keyed by database so events of one database stay
// ordered within a partition.
func (bc *BatchCollector) Track(event analytics.OperationEvent) {
	bc.mu.Lock()
	bc.buffer = append(bc.buffer, kafka.Event{
		Key:   event.Database,
		Type:  string(event.Type),
		Value: event,
	})
	shouldFlush := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()

	if shouldFlush {
		go bc.flush(context.Background())
	}
}

// Close waits for the flush loop started by Start to finish.
func (bc *BatchCollector) Close() {
	<-bc.done
}

// BufferLen returns the number of buffered events.
func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

func (bc *BatchCollector) flush(ctx context.Context) {
	bc.flushMu.Lock()
	defer bc.flushMu.Unlock()

	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return
	}
	batch := bc.buffer
	bc.buffer = make([]kafka.Event, 0, bc.batchSize)
	bc.mu.Unlock()

	if err := bc.producer.PublishBatch(ctx, batch); err != nil {
		bc.logger.Error("batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		bc.mu.Lock()
		bc.buffer = append(batch, bc.buffer...)
		if limit := bc.batchSize * 3; len(bc.buffer) > limit {
			dropped := len(bc.buffer) - limit
			bc.buffer = bc.buffer[dropped:]
			if bc.metrics != nil {
				bc.metrics.EventsDroppedTotal.Add(float64(dropped))
			}
			bc.logger.Warn("buffer overflow, events dropped", "dropped", dropped)
		}
		bc.mu.Unlock()
		return
	}

	bc.logger.Debug("batch flushed", "events", len(batch))
}
