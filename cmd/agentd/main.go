package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/agent"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/config"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/llm/ollama"
	agentlogger "github.com/agmgroups/fluffy-space-garbanzo-sub000/logger"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/memory"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/migrations"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/records"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/resilience"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/runtime"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/server"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		grpcAddress = flag.String("grpc", "", "TCP address for the gRPC health service (overrides config)")
		logFile     = flag.String("logfile", "", "Path to log file. If not set, logs to stdout")
		pretty      = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		dbPath      = flag.String("db", "", "Path to SQLite database file (overrides config)")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	logger, logCloser, err := agentlogger.New(agentlogger.Options{File: *logFile, Pretty: *pretty})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logCloser.Close() //nolint:errcheck // No remedy for log close errors

	configPath := config.GetServerConfigPath()
	appConfig, err := config.LoadServerConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}
	if *grpcAddress != "" {
		appConfig.Server.GRPC = *grpcAddress
	}
	if *dbPath != "" {
		appConfig.Store.DBPath = *dbPath
	}

	logger.Info().
		Str("config", configPath).
		Str("grpc", appConfig.Server.GRPC).
		Str("db", appConfig.Store.DBPath).
		Str("ollama", appConfig.Ollama.Host).
		Msg("agentd starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, appConfig.Tracing)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer shutdownTracing(context.Background()) //nolint:errcheck // Best-effort flush on exit

	// ---------------------------
	// 1. Open SQLite + stores
	// ---------------------------

	db, err := sql.Open("sqlite3", appConfig.Store.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	if err := migrations.RunMigrations(db, appConfig.Store.MigrationsPath, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	memoryStore, err := memory.NewStore(db, logger)
	if err != nil {
		return fmt.Errorf("failed to create memory store: %w", err)
	}

	connManager := resilience.NewManager(logger, records.NewSQLStore(logger, db),
		resilience.WithBackoffUnit(appConfig.Resilience.BackoffUnit),
	)

	// ---------------------------
	// 2. Registry, transport, crew
	// ---------------------------

	registry, selector, err := appConfig.Registry()
	if err != nil {
		return fmt.Errorf("invalid model configuration: %w", err)
	}

	llmClient, err := ollama.NewClient(logger, registry, appConfig.Ollama)
	if err != nil {
		return fmt.Errorf("failed to create ollama client: %w", err)
	}

	crew, err := agent.NewCrew(logger, appConfig, llmClient, registry, selector, memoryStore)
	if err != nil {
		return fmt.Errorf("failed to initialize agents: %w", err)
	}

	report := connManager.ConnectAll(ctx, crew.Types(), appConfig.Resilience.Retries)
	if report.Live < report.Total {
		logger.Warn().
			Int("live", report.Live).
			Int("total", report.Total).
			Msg("Some agent records are running on fallbacks")
	}

	// ---------------------------
	// 3. Health service + scheduler
	// ---------------------------

	srv := server.New(server.Config{Logger: logger}, llmClient, connManager)

	scheduler, err := runtime.NewScheduler(logger,
		runtime.Job{Name: "memory-purge", Schedule: appConfig.Schedules.Purge, Run: purgeJob(memoryStore, logger)},
		runtime.Job{Name: "health-refresh", Schedule: appConfig.Schedules.Health, Run: srv.Refresh},
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	schedulerDone := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(schedulerDone)
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ServeTCP(appConfig.Server.GRPC)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Received shutdown signal")
		srv.GracefulStop()
	case err := <-serverErr:
		stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	<-schedulerDone

	logger.Info().Msg("agentd shutdown complete")
	return nil
}

func purgeJob(store *memory.Store, logger zerolog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := store.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info().Int64("purged", n).Msg("Purged expired memories")
		}
		return nil
	}
}
