// Package aggregator persists periodic snapshots of aggregated operation
// stats in the emulator's SQL database.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/sqldb"
)

// Store reads and writes the operation_stats_snapshots table created by the
// emulator store migrations.
type Store struct {
	db     *sqldb.DB
	logger *slog.Logger
}

func NewStore(db *sqldb.DB) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "stats-store"),
	}
}

// SaveSnapshot persists a stats snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	_, err = s.db.DB.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO operation_stats_snapshots (data, captured_at) VALUES (?, ?)`),
		string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving stats snapshot: %w", err)
	}

	s.logger.Debug("stats snapshot saved",
		"operations_started", stats.OperationsStarted,
		"operations_finished", stats.OperationsFinished,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot, or nil when there is none.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data string
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM operation_stats_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	var stats analytics.AggregatedStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// ListSnapshots returns the last limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	rows, err := s.db.DB.QueryContext(ctx, s.db.Rebind(
		`SELECT data FROM operation_stats_snapshots ORDER BY id DESC LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.AggregatedStats
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats analytics.AggregatedStats
		if err := json.Unmarshal([]byte(data), &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}

	return snapshots, rows.Err()
}

// StartPeriodicSave snapshots agg every interval until ctx is cancelled,
// then takes a final snapshot.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
