// Command adminserver runs the admin API emulator.
//
// It serves the admin, operations and locations services over gRPC and their
// REST bindings over HTTP, backed by an in-memory, SQLite or PostgreSQL store.
// Optional Redis caching of finished operations, Kafka operation events,
// API-key authentication, Prometheus metrics and OpenTelemetry tracing are
// enabled from the config file.
//
// Usage:
//
//	go run ./cmd/adminserver [-config adminserver.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/cli"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/app"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/tracing"
)

// main loads the config, wires the emulator and serves until SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("adminserver failed", "error", err)
		os.Exit(1)
	}
	slog.Info("adminserver stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Setup(cfg.Tracing, cli.Version)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	slog.Info("starting adminserver",
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"store", cfg.Store.Driver,
		"kafka", cfg.Kafka.Enabled,
		"redis", cfg.Redis.Enabled,
		"auth", cfg.Auth.Enabled,
	)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			slog.Error("closing emulator", "error", err)
		}
	}()

	grpcLn, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("listening for gRPC: %w", err)
	}
	httpLn, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.HTTPPort))
	if err != nil {
		grpcLn.Close()
		return fmt.Errorf("listening for HTTP: %w", err)
	}
	return a.Serve(ctx, grpcLn, httpLn)
}
