package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/kafka"
)

// eventWatcher prints operation events and folds them into running stats.
type eventWatcher struct {
	out      *printer
	agg      *analytics.Aggregator
	database string // empty matches every database
	max      int
	stop     context.CancelFunc

	mu   sync.Mutex
	seen int
}

func (w *eventWatcher) handle(ctx context.Context, msg kafka.Message) error {
	event, err := kafka.DecodeJSON[analytics.OperationEvent](msg.Value)
	if err != nil {
		// Undecodable records are skipped.
		return nil
	}
	if w.database != "" && event.Database != w.database {
		return nil
	}
	w.agg.Track(event)
	if err := w.print(event); err != nil {
		return err
	}
	w.mu.Lock()
	w.seen++
	reached := w.max > 0 && w.seen >= w.max
	w.mu.Unlock()
	if reached {
		w.stop()
	}
	return nil
}

func (w *eventWatcher) print(e analytics.OperationEvent) error {
	if w.out.format == outputJSON {
		return w.out.json(e)
	}
	line := fmt.Sprintf("%s  %-18s %-20s %-10s %s", e.Timestamp.UTC().Format(time.RFC3339), e.Type, e.Kind, e.State, e.Operation)
	if e.Type == analytics.EventOperationFinished {
		line += fmt.Sprintf("  docs=%d duration=%dms", e.CompletedWork, e.DurationMs)
		if e.ErrorCode != "" {
			line += " error=" + e.ErrorCode
		}
	}
	_, err := fmt.Fprintln(w.out.out, line)
	return err
}

func (w *eventWatcher) printStats() error {
	stats := w.agg.Stats()
	if w.out.format == outputJSON {
		return w.out.json(stats)
	}
	rows := [][]string{
		{"started", strconv.FormatInt(stats.OperationsStarted, 10)},
		{"finished", strconv.FormatInt(stats.OperationsFinished, 10)},
		{"running", strconv.FormatInt(stats.Running, 10)},
		{"documents", strconv.FormatInt(stats.DocumentsProcessed, 10)},
		{"p50 ms", strconv.FormatInt(stats.P50DurationMs, 10)},
		{"p95 ms", strconv.FormatInt(stats.P95DurationMs, 10)},
	}
	kinds := make([]string, 0, len(stats.ByKind))
	for k := range stats.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		rows = append(rows, []string{"kind " + k, strconv.FormatInt(stats.ByKind[k], 10)})
	}
	return w.out.table(stats, []string{"STAT", "VALUE"}, rows)
}

func (c *cli) operationsWatchCommand() *cobra.Command {
	var (
		brokers       []string
		topic         string
		fromBeginning bool
		allDatabases  bool
		statsEvery    time.Duration
		maxEvents     int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream operation events from the emulator's Kafka topic",
		Long: `watch follows the operation event topic the emulator publishes to when
Kafka is enabled, printing each start and finish, and prints aggregate
statistics periodically and on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.g.ConfigPath)
			if err != nil {
				return err
			}
			kcfg := cfg.Kafka
			if len(brokers) > 0 {
				kcfg.Brokers = brokers
			}
			if topic == "" {
				topic = kcfg.Topics.OperationEvents
			}
			w := &eventWatcher{
				out: &printer{out: &lockedWriter{w: c.deps.Out}, format: c.g.Output},
				agg: analytics.NewAggregator(),
				max: maxEvents,
			}
			if !allDatabases {
				if w.database, err = c.databaseName(); err != nil {
					return err
				}
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			w.stop = cancel

			var consumer *kafka.Consumer
			if c.deps.EventReader != nil {
				consumer = kafka.NewConsumerWithReader(c.deps.EventReader, topic, w.handle)
			} else {
				opts := []kafka.ConsumerOption{kafka.WithGroup("docadmin-watch-" + uuid.NewString())}
				if fromBeginning {
					opts = append(opts, kafka.FromBeginning())
				}
				consumer = kafka.NewConsumer(kcfg, topic, w.handle, opts...)
			}
			defer consumer.Close()

			if statsEvery > 0 {
				go func() {
					t := time.NewTicker(statsEvery)
					defer t.Stop()
					for {
						select {
						case <-ctx.Done():
							return
						case <-t.C:
							_ = w.printStats()
						}
					}
				}()
			}
			if err := consumer.Start(ctx); err != nil {
				return err
			}
			return w.printStats()
		},
	}
	cmd.Flags().StringSliceVar(&brokers, "brokers", nil, "Kafka brokers (default: kafka.brokers from config)")
	cmd.Flags().StringVar(&topic, "topic", "", "event topic (default: kafka.topics.operationEvents from config)")
	cmd.Flags().BoolVar(&fromBeginning, "from-beginning", false, "replay retained events")
	cmd.Flags().BoolVar(&allDatabases, "all-databases", false, "show events of every database")
	cmd.Flags().DurationVar(&statsEvery, "stats-interval", 0, "print statistics at this interval")
	cmd.Flags().IntVar(&maxEvents, "max-events", 0, "exit after this many events")
	return cmd
}

// lockedWriter serialises writes from the event handler and the stats ticker.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
