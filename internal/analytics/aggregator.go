package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/kafka"
)

// maxSamples bounds the duration samples kept for percentiles.
const maxSamples = 10000

type AggregatedStats struct {
	OperationsStarted  int64            `json:"operations_started"`
	OperationsFinished int64            `json:"operations_finished"`
	Running            int64            `json:"running"`
	ByState            map[string]int64 `json:"by_state"`
	ByKind             map[string]int64 `json:"by_kind"`
	ByErrorCode        map[string]int64 `json:"by_error_code,omitempty"`
	DocumentsProcessed int64            `json:"documents_processed"`
	BytesProcessed     int64            `json:"bytes_processed"`
	AvgDurationMs      float64          `json:"avg_duration_ms"`
	P50DurationMs      int64            `json:"p50_duration_ms"`
	P95DurationMs      int64            `json:"p95_duration_ms"`
	P99DurationMs      int64            `json:"p99_duration_ms"`
	TopDatabases       []DatabaseCount  `json:"top_databases"`
	OperationsPerMin   float64          `json:"operations_per_minute"`
}

type DatabaseCount struct {
	Database string `json:"database"`
	Count    int64  `json:"count"`
}

// Aggregator folds operation events into AggregatedStats. It is safe for
// concurrent use.
type Aggregator struct {
	mu          sync.RWMutex
	started     atomic.Int64
	finished    atomic.Int64
	documents   atomic.Int64
	bytes       atomic.Int64
	durations   []int64
	byState     map[string]int64
	byKind      map[string]int64
	byErrorCode map[string]int64
	byDatabase  map[string]int64
	startTime   time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		durations:   make([]int64, 0, 1024),
		byState:     make(map[string]int64),
		byKind:      make(map[string]int64),
		byErrorCode: make(map[string]int64),
		byDatabase:  make(map[string]int64),
		startTime:   time.Now(),
		logger:      slog.Default().With("component", "operation-aggregator"),
	}
}

// Start consumes events from consumer until ctx is cancelled. The consumer
// must have been created with HandleEvent(a) as its handler.
func (a *Aggregator) Start(ctx context.Context, consumer *kafka.Consumer) error {
	a.logger.Info("operation aggregator starting")
	return consumer.Start(ctx)
}

// HandleEvent returns a Kafka handler feeding agg. Undecodable messages are
// logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		event, err := kafka.DecodeJSON[OperationEvent](msg.Value)
		if err != nil {
			agg.logger.Error("failed to decode operation event",
				"offset", msg.Offset,
				"error", err,
			)
			return nil
		}
		agg.Track(event)
		return nil
	}
}

// Track records one event.
func (a *Aggregator) Track(event OperationEvent) {
	switch event.Type {
	case EventOperationStarted:
		a.started.Add(1)
		a.mu.Lock()
		a.byKind[event.Kind]++
		a.byDatabase[event.Database]++
		a.mu.Unlock()
	case EventOperationFinished:
		a.finished.Add(1)
		a.documents.Add(event.CompletedWork)
		a.bytes.Add(event.CompletedSize)
		a.mu.Lock()
		a.byState[event.State]++
		if event.ErrorCode != "" {
			a.byErrorCode[event.ErrorCode]++
		}
		if len(a.durations) >= maxSamples {
			a.durations = a.durations[1:]
		}
		a.durations = append(a.durations, event.DurationMs)
		a.mu.Unlock()
	default:
		a.logger.Debug("ignoring event", "type", event.Type)
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		OperationsStarted:  a.started.Load(),
		OperationsFinished: a.finished.Load(),
		DocumentsProcessed: a.documents.Load(),
		BytesProcessed:     a.bytes.Load(),
		ByState:            copyCounts(a.byState),
		ByKind:             copyCounts(a.byKind),
		ByErrorCode:        copyCounts(a.byErrorCode),
	}
	stats.Running = max(stats.OperationsStarted-stats.OperationsFinished, 0)
	if len(a.durations) > 0 {
		sorted := make([]int64, len(a.durations))
		copy(sorted, a.durations)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, d := range sorted {
			sum += d
		}
		stats.AvgDurationMs = float64(sum) / float64(len(sorted))
		stats.P50DurationMs = percentile(sorted, 50)
		stats.P95DurationMs = percentile(sorted, 95)
		stats.P99DurationMs = percentile(sorted, 99)
	}
	stats.TopDatabases = topN(a.byDatabase, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.OperationsPerMin = float64(stats.OperationsStarted) / elapsed
	}

	return stats
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []DatabaseCount {
	result := make([]DatabaseCount, 0, len(counts))
	for db, count := range counts {
		result = append(result, DatabaseCount{Database: db, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Database < result[j].Database
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
