// Command loadtest drives the admin API with concurrent read calls and,
// optionally, index create/delete cycles, then reports latency percentiles
// and status codes per method.
//
// Usage:
//
//	go run ./cmd/loadtest -endpoint localhost:8090 -project demo -concurrency 20 -duration 30s
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

type Config struct {
	Endpoint    string
	Transport   string
	APIKey      string
	Project     string
	Database    string
	Concurrency int
	Duration    time.Duration
	// Rate caps calls per second across all workers; 0 is unlimited.
	Rate float64
	// WriteRatio is the fraction of iterations that build and drop an index.
	WriteRatio float64
}

// call is one admin request issued by a worker.
type call struct {
	name string
	do   func(ctx context.Context, c *admin.Client) error
}

func main() {
	var cfg Config
	flag.StringVar(&cfg.Endpoint, "endpoint", "localhost:8090", "admin API address")
	flag.StringVar(&cfg.Transport, "transport", admin.TransportGRPC, "grpc or rest")
	flag.StringVar(&cfg.APIKey, "api-key", os.Getenv("DA_CLIENT_API_KEY"), "API key")
	flag.StringVar(&cfg.Project, "project", "loadtest", "project ID")
	flag.StringVar(&cfg.Database, "database", resource.DefaultDatabase, "database ID")
	flag.IntVar(&cfg.Concurrency, "concurrency", 10, "number of concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
	flag.Float64Var(&cfg.Rate, "rate", 0, "maximum calls per second, 0 for unlimited")
	flag.Float64Var(&cfg.WriteRatio, "write-ratio", 0, "fraction of iterations that create and delete an index")
	flag.Parse()

	client, err := admin.NewClient(
		admin.WithEndpoint(cfg.Endpoint),
		admin.WithTransportKind(cfg.Transport),
		admin.WithAPIKey(cfg.APIKey),
		admin.WithTimeout(10*time.Second),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	fmt.Println("=== Admin API Load Test ===")
	fmt.Printf("Target:      %s (%s)\n", cfg.Endpoint, cfg.Transport)
	fmt.Printf("Database:    %s\n", resource.DatabasePath(cfg.Project, cfg.Database))
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	if cfg.Rate > 0 {
		fmt.Printf("Rate limit:  %.0f/s\n", cfg.Rate)
	}
	fmt.Println()

	if err := ensureDatabase(context.Background(), client, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "preparing database: %v\n", err)
		os.Exit(1)
	}

	stats := runLoadTest(client, cfg)
	printReport(os.Stdout, stats, cfg.Duration)
	if stats.totalRequests.Load() == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the emulator running?")
		os.Exit(1)
	}
}

// ensureDatabase creates the target database unless it exists.
func ensureDatabase(ctx context.Context, client *admin.Client, cfg Config) error {
	name := resource.DatabasePath(cfg.Project, cfg.Database)
	_, err := client.GetDatabase(ctx, &proto.GetDatabaseRequest{Name: name})
	if apperrors.Code(err) != codes.NotFound {
		return err
	}
	op, err := client.CreateDatabase(ctx, &proto.CreateDatabaseRequest{
		Parent:     resource.ProjectPath(cfg.Project),
		DatabaseID: cfg.Database,
		Database:   &proto.Database{Type: proto.DatabaseTypeFirestoreNative},
	})
	if err != nil {
		return err
	}
	_, err = op.Wait(ctx)
	return err
}

// readCalls are the calls a worker cycles through.
func readCalls(cfg Config) []call {
	database := resource.DatabasePath(cfg.Project, cfg.Database)
	return []call{
		{"GetDatabase", func(ctx context.Context, c *admin.Client) error {
			_, err := c.GetDatabase(ctx, &proto.GetDatabaseRequest{Name: database})
			return err
		}},
		{"ListIndexes", func(ctx context.Context, c *admin.Client) error {
			_, err := c.ListIndexes(ctx, &proto.ListIndexesRequest{
				Parent: resource.CollectionGroupPath(cfg.Project, cfg.Database, resource.WildcardCollection),
			})
			return err
		}},
		{"ListFields", func(ctx context.Context, c *admin.Client) error {
			_, err := c.ListFields(ctx, &proto.ListFieldsRequest{
				Parent: resource.CollectionGroupPath(cfg.Project, cfg.Database, resource.WildcardCollection),
			})
			return err
		}},
		{"GetField", func(ctx context.Context, c *admin.Client) error {
			_, err := c.GetField(ctx, &proto.GetFieldRequest{
				Name: resource.FieldPath(cfg.Project, cfg.Database, resource.DefaultCollectionGroup, resource.DefaultField),
			})
			return err
		}},
		{"ListOperations", func(ctx context.Context, c *admin.Client) error {
			_, err := c.ListOperations(ctx, &proto.ListOperationsRequest{Name: database, PageSize: 50})
			return err
		}},
		{"ListLocations", func(ctx context.Context, c *admin.Client) error {
			_, err := c.ListLocations(ctx, &proto.ListLocationsRequest{Name: resource.ProjectPath(cfg.Project)})
			return err
		}},
	}
}

// indexCycle builds a uniquely named index, waits for it and drops it.
func indexCycle(cfg Config, worker int) call {
	return call{"IndexCycle", func(ctx context.Context, c *admin.Client) error {
		collection := fmt.Sprintf("load_w%d", worker)
		op, err := c.CreateIndex(ctx, &proto.CreateIndexRequest{
			Parent: resource.CollectionGroupPath(cfg.Project, cfg.Database, collection),
			Index: &proto.Index{
				QueryScope: proto.QueryScopeCollection,
				Fields: []*proto.IndexField{
					{FieldPath: "a", Order: proto.OrderAscending},
					{FieldPath: fmt.Sprintf("f%d", rand.IntN(1_000_000)), Order: proto.OrderDescending},
				},
			},
		})
		if err != nil {
			return err
		}
		idx, err := op.Wait(ctx)
		if err != nil {
			return err
		}
		return c.DeleteIndex(ctx, &proto.DeleteIndexRequest{Name: idx.Name})
	}}
}

func runLoadTest(client *admin.Client, cfg Config) *Stats {
	stats := NewStats()
	reads := readCalls(cfg)

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	limiter := rate.NewLimiter(limit, max(1, cfg.Concurrency))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			next := workerID
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				c := reads[next%len(reads)]
				next++
				if cfg.WriteRatio > 0 && rand.Float64() < cfg.WriteRatio {
					c = indexCycle(cfg, workerID)
				}

				start := time.Now()
				err := c.do(ctx, client)
				if ctx.Err() != nil {
					return
				}
				stats.RecordRequest(c.name, time.Since(start), err)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}
