// Package main implements the entry point for the SCC yard service. It loads
// the configuration, opens the archive store, builds the yard topology and
// runs the telemetry processor until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paragnema1/scc/config"
	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/health"
	"github.com/paragnema1/scc/metric"
	"github.com/paragnema1/scc/natsclient"
	"github.com/paragnema1/scc/pkg/retry"
	"github.com/paragnema1/scc/processor/yard"
	"github.com/paragnema1/scc/storage"
	"github.com/paragnema1/scc/storage/kvstore"
	"github.com/paragnema1/scc/storage/sqlstore"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "scc-server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}
	logger = yardLogger(logger, cfg)
	slog.SetDefault(logger)
	if cliCfg.Validate {
		slog.Info("Configuration is valid", "config", cfg.String())
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := metric.NewMetricsRegistry()

	store, err := openStore(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close store", "error", err)
		}
	}()

	if cliCfg.SeedPath != "" {
		if err := seedStore(ctx, store, cliCfg.SeedPath, logger); err != nil {
			return err
		}
	}

	graph, err := yard.LoadTopology(ctx, store, cfg.Yard.Zones, retry.Startup(), logger)
	if err != nil {
		return fmt.Errorf("load topology: %w", err)
	}

	natsClient, err := connectToNATS(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(context.Background())

	yardCfg, err := yard.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	processor, err := yard.NewProcessor(yardCfg, natsClient, store, graph,
		yard.WithLogger(logger), yard.WithMetrics(registry))
	if err != nil {
		return fmt.Errorf("create processor: %w", err)
	}

	monitor := health.NewMonitor(appName)
	monitor.Register("yard", processor.Health)
	monitor.Register("nats", func() health.Status {
		if natsClient.IsHealthy() {
			return health.NewHealthy("", natsClient.Status().String())
		}
		return health.NewDegraded("", natsClient.Status().String())
	})

	var metricsServer *metric.Server
	if cfg.Metrics.Addr != "" {
		metricsServer = metric.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, registry)
		metricsServer.SetHealthCheck(monitor.Check)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info("Metrics server listening", "addr", metricsServer.Address(), "path", cfg.Metrics.Path)
	}

	if err := processor.Start(ctx); err != nil {
		return fmt.Errorf("start processor: %w", err)
	}
	slog.Info("SCC started", "scc_id", cfg.SCCID, "sections", graph.Len())

	<-ctx.Done()
	slog.Info("Received shutdown signal")

	return shutdown(processor, metricsServer, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	logger, err := newLogger(logSettings{Level: cliCfg.LogLevel, Format: cliCfg.LogFormat})
	if err != nil {
		return nil, nil, false, err
	}
	slog.SetDefault(logger)

	slog.Info("Starting SCC yard service",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// loadConfig layers the config file, if any, over the defaults
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cliCfg.MetricsAddr != "" {
		cfg.Metrics.Addr = cliCfg.MetricsAddr
	}
	return cfg, nil
}

// openStore opens the configured backend, retrying while it is unreachable
func openStore(ctx context.Context, cfg *config.Config, registry *metric.MetricsRegistry,
	logger *slog.Logger) (storage.Store, error) {
	db := cfg.Database
	logger.Info("Opening store", "provider", db.Provider)

	if db.Provider == config.ProviderMemory {
		logger.Warn("Using in-memory store; archived rows are lost on exit")
		return storage.NewMemoryStore(), nil
	}

	rc := retry.Startup()
	rc.Retryable = errors.IsTransient
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("Store not available, retrying", "provider", db.Provider, "attempt", attempt,
			"delay", delay, "error", err)
	}

	store, err := retry.DoWithResult(ctx, rc, func() (storage.Store, error) {
		switch db.Provider {
		case config.ProviderJetStream:
			return kvstore.Open(ctx, kvstore.Config{
				URL:      cfg.NATS.URL,
				Bucket:   db.Bucket,
				Username: cfg.NATS.Username,
				Password: cfg.NATS.Password,
				Token:    cfg.NATS.Token,
				Timeout:  cfg.NATS.Timeout,
			}, kvstore.WithLogger(logger), kvstore.WithMetrics(registry))
		default:
			return sqlstore.Open(ctx, sqlstore.Config{
				Provider: db.Provider,
				DSN:      db.DSN(),
				Path:     db.Path,
			}, sqlstore.WithLogger(logger), sqlstore.WithMetrics(registry))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", db.Provider, err)
	}
	return store, nil
}

// connectToNATS creates the client and waits briefly for the first
// connection. The service keeps running if the broker is late; the client
// reconnects and queues outbound messages meanwhile.
func connectToNATS(ctx context.Context, cfg *config.Config, registry *metric.MetricsRegistry,
	logger *slog.Logger) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(registry),
	}
	if cfg.NATS.ReconnectInterval > 0 {
		opts = append(opts, natsclient.WithReconnectInterval(cfg.NATS.ReconnectInterval))
	}
	if cfg.NATS.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(cfg.NATS.Timeout))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}
	if cfg.NATS.ClientName != "" {
		opts = append(opts, natsclient.WithName(cfg.NATS.ClientName))
	}

	client, err := natsclient.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		slog.Warn("NATS not connected yet, continuing with reconnect", "error", err)
	}
	return client, nil
}

// shutdown drains the processor and stops the metrics server in parallel
func shutdown(processor *yard.Processor, metricsServer *metric.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		if err := processor.Stop(timeout); err != nil {
			slog.Error("Error stopping processor", "error", err)
			return err
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Stop(ctx); err != nil {
				slog.Error("Error stopping metrics server", "error", err)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("SCC shutdown complete")
	return nil
}
