// Package app assembles the emulator server from configuration: the resource
// store, the operation runner, the optional Redis operation cache and Kafka
// event pipeline, the gRPC server and the REST gateway.
//
//	a, err := app.New(ctx, cfg)
//	...
//	defer a.Close(context.Background())
//	err = a.Serve(ctx, grpcListener, httpListener)
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/opcache"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/runner"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/service"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/store"
	gwhandler "github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
	rpc "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/sqldb"
)

const (
	snapshotInterval    = time.Minute
	healthWatchInterval = 10 * time.Second
	eventBatchSize      = 100
	eventFlushInterval  = time.Second
)

// exemptMethods are gRPC method prefixes served without an API key.
var exemptMethods = []string{"/grpc.health.v1.Health/"}

// App is a fully wired emulator.
type App struct {
	cfg *config.Config

	Store      *store.Store
	Runner     *runner.Runner
	Service    *service.Service
	Aggregator *analytics.Aggregator
	Health     *health.Checker
	RPC        *rpc.Server
	HTTP       http.Handler

	metrics    *metrics.Metrics
	db         *sqldb.DB
	redis      *pkgredis.Client
	limiter    *ratelimit.Limiter
	collector  *collector.BatchCollector
	producer   *kafka.Producer
	consumer   *kafka.Consumer
	grpcHealth *grpchealth.Server

	stop   context.CancelFunc
	bg     *errgroup.Group
	logger *slog.Logger
}

type settings struct {
	registry prometheus.Registerer
}

type Option func(*settings)

// WithRegistry registers metrics with reg instead of the default registry.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(s *settings) { s.registry = reg }
}

// New builds the emulator described by cfg and starts its background work:
// operation recovery, event publishing, snapshots and health reporting. The
// background work stops when ctx is cancelled or Close is called.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	s := settings{registry: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&s)
	}

	bgCtx, stop := context.WithCancel(ctx)
	a := &App{
		cfg:    cfg,
		Health: health.NewChecker(),
		stop:   stop,
		bg:     new(errgroup.Group),
		logger: slog.Default().With("component", "app"),
	}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewWithRegistry(s.registry)
	}

	a.Store, a.db, err = store.Open(cfg)
	if err != nil {
		return nil, err
	}
	a.Health.Register("store", health.PingCheck(a.Store.Ping, true))

	runnerOpts := []runner.Option{
		runner.WithMetrics(a.metrics),
		runner.WithStepDelay(cfg.Emulator.StepDelay),
	}
	serviceOpts := []service.Option{}

	if cfg.Redis.Enabled {
		a.redis, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		cache := opcache.New(a.redis, cfg.Redis.CacheTTL, a.metrics)
		runnerOpts = append(runnerOpts, runner.WithFinishHook(cache.Put))
		serviceOpts = append(serviceOpts, service.WithCache(cache))
		a.Health.Register("redis", health.PingCheck(a.redis.Ping, false))
	}

	a.Aggregator = analytics.NewAggregator()
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.OperationEvents
		a.producer = kafka.NewProducer(cfg.Kafka, topic)
		a.collector = collector.NewBatchCollector(a.producer, eventBatchSize, eventFlushInterval, a.metrics)
		a.collector.Start(bgCtx)
		a.consumer = kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(a.Aggregator),
			kafka.WithGroup(cfg.Kafka.ConsumerGroup))
		a.bg.Go(func() error {
			if err := a.Aggregator.Start(bgCtx, a.consumer); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("operation event consumer stopped", "error", err)
			}
			return nil
		})
		runnerOpts = append(runnerOpts, runner.WithSinks(a.collector))
	} else {
		runnerOpts = append(runnerOpts, runner.WithSinks(a.Aggregator))
	}

	var history analytics.History
	if a.db != nil {
		snapshots := aggregator.NewStore(a.db)
		snapshots.StartPeriodicSave(bgCtx, a.Aggregator, snapshotInterval)
		history = snapshots
	}

	a.Runner = runner.New(a.Store, cfg.Emulator.Workers, runnerOpts...)
	if n, err := a.Runner.Recover(ctx); err != nil {
		return nil, fmt.Errorf("recovering operations: %w", err)
	} else if n > 0 {
		a.logger.Info("settled interrupted operations", "count", n)
	}
	a.Service = service.New(cfg.Emulator, a.Store, a.Runner, serviceOpts...)

	var validator *apikey.Validator
	if cfg.Auth.Enabled {
		if validator, err = a.validator(); err != nil {
			return nil, err
		}
		a.limiter = ratelimit.New(cfg.Auth.RateLimit, cfg.Auth.Burst)
	}

	a.RPC = rpc.NewServer(grpc.ChainUnaryInterceptor(a.interceptors(validator)...))
	a.Service.Register(a.RPC)
	a.grpcHealth = grpchealth.NewServer()
	healthgrpc.RegisterHealthServer(a.RPC.GRPCServer(), a.grpcHealth)
	a.bg.Go(func() error {
		a.Health.WatchGRPC(bgCtx, a.grpcHealth, healthWatchInterval)
		return nil
	})

	handlerOpts := []gwhandler.Option{gwhandler.WithStats(analytics.NewHandler(a.Aggregator, history))}
	if validator != nil {
		handlerOpts = append(handlerOpts, gwhandler.WithKeys(validator))
	}
	h, err := gwhandler.New(a.Service.Endpoints(), a.Service, handlerOpts...)
	if err != nil {
		return nil, err
	}
	a.HTTP = router.New(h, router.Options{
		Validator:      validator,
		Limiter:        a.limiter,
		Metrics:        a.metrics,
		Health:         a.Health,
		CORS:           gwmw.DefaultCORSConfig(),
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	return a, nil
}

func (a *App) validator() (*apikey.Validator, error) {
	if !a.cfg.Auth.UsePostgres {
		return apikey.NewValidator(nil, a.cfg.Auth.StaticKeys), nil
	}
	if a.db == nil {
		return nil, errors.New("auth.usePostgres requires a sqlite or postgres store")
	}
	return apikey.NewValidator(a.db, a.cfg.Auth.StaticKeys), nil
}

func (a *App) interceptors(validator *apikey.Validator) []grpc.UnaryServerInterceptor {
	chain := []grpc.UnaryServerInterceptor{
		middleware.UnaryRequestID(),
		middleware.UnaryRecovery(),
		middleware.UnaryTracing(),
		middleware.UnaryLogging(),
	}
	if a.metrics != nil {
		chain = append(chain, middleware.UnaryMetrics(a.metrics))
	}
	chain = append(chain, middleware.UnaryErrors())
	if validator != nil {
		chain = append(chain,
			gwmw.UnaryAuth(validator, exemptMethods...),
			gwmw.UnaryRateLimit(a.limiter, a.metrics, exemptMethods...),
		)
	}
	if a.cfg.Server.RequestTimeout > 0 {
		chain = append(chain, middleware.UnaryTimeout(a.cfg.Server.RequestTimeout))
	}
	return chain
}

// Serve serves gRPC on grpcLn and the REST gateway on httpLn until ctx is
// cancelled or either server fails, then shuts both down.
func (a *App) Serve(ctx context.Context, grpcLn, httpLn net.Listener) error {
	server := &http.Server{
		Handler:      a.HTTP,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.RPC.ServeListener(grpcLn)
	})
	g.Go(func() error {
		a.logger.Info("rest gateway listening", "addr", httpLn.Addr().String())
		if err := server.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down listeners")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.grpcHealth.Shutdown()
		a.RPC.Stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Close stops background work, waits for running operations to be
// interrupted and releases every connection.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Runner != nil {
		errs = append(errs, a.Runner.Shutdown(ctx))
	}
	a.stop()
	_ = a.bg.Wait()
	if a.collector != nil {
		a.collector.Close()
	}
	if a.consumer != nil {
		errs = append(errs, a.consumer.Close())
	}
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
