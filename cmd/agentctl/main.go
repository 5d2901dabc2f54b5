package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/agent"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/client"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/config"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/llm/ollama"
	agentlogger "github.com/agmgroups/fluffy-space-garbanzo-sub000/logger"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/memory"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/migrations"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/records"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/resilience"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		agentType = flag.String("agent", "support", "Agent type to ask")
		prompt    = flag.String("prompt", "", "Message to send to the agent")
		taskType  = flag.String("task", "", "Task type override: code, creative, analysis, chat, specialized")
		note      = flag.String("note", "", "Additional context for the request")
		stream    = flag.Bool("stream", false, "Print the response in paced chunks")
		status    = flag.Bool("status", false, "Print model and record store health")
		recent    = flag.Int("recent", 0, "Print the agent's N most recent memories")
		daemon    = flag.String("daemon", "", "Query a running agentd health service at this address instead")
		logLevel  = flag.String("log-level", "warn", "Log level for stderr output")
	)
	flag.Parse()

	logger, logCloser, err := agentlogger.New(agentlogger.Options{Pretty: true, Level: *logLevel, Writer: os.Stderr})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logCloser.Close() //nolint:errcheck // Console writer

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *daemon != "" {
		return checkDaemon(ctx, *daemon)
	}

	appConfig, err := config.LoadServerConfig(config.GetServerConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := sql.Open("sqlite3", appConfig.Store.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	if err := migrations.RunMigrations(db, appConfig.Store.MigrationsPath, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	registry, selector, err := appConfig.Registry()
	if err != nil {
		return fmt.Errorf("invalid model configuration: %w", err)
	}
	llmClient, err := ollama.NewClient(logger, registry, appConfig.Ollama)
	if err != nil {
		return fmt.Errorf("failed to create ollama client: %w", err)
	}
	memoryStore, err := memory.NewStore(db, logger)
	if err != nil {
		return fmt.Errorf("failed to create memory store: %w", err)
	}

	switch {
	case *status:
		connManager := resilience.NewManager(logger, records.NewSQLStore(logger, db),
			resilience.WithBackoffUnit(appConfig.Resilience.BackoffUnit),
		)
		return printJSON(map[string]any{
			"llm":   llmClient.Status(ctx),
			"store": connManager.HealthCheck(ctx),
			"pool":  connManager.ConnectionStats(ctx),
		})

	case *recent > 0:
		entries, err := memoryStore.Recent(ctx, *agentType, memory.CategoryConversation, *recent)
		if err != nil {
			return fmt.Errorf("failed to load memories: %w", err)
		}
		return printJSON(entries)

	case *prompt == "":
		flag.Usage()
		return fmt.Errorf("one of -prompt, -status, -recent or -daemon is required")
	}

	crew, err := agent.NewCrew(logger, appConfig, llmClient, registry, selector, memoryStore)
	if err != nil {
		return fmt.Errorf("failed to initialize agents: %w", err)
	}
	engine, ok := crew.Engine(*agentType)
	if !ok {
		return fmt.Errorf("unknown agent %q (available: %v)", *agentType, crew.Types())
	}

	rc := agent.RequestContext{TaskType: *taskType, Note: *note}
	if !*stream {
		resp, err := engine.Process(ctx, *prompt, rc)
		if err != nil {
			return err
		}
		return printJSON(resp)
	}

	resp, err := engine.Stream(ctx, *prompt, rc, func(c agent.Chunk) error {
		_, err := fmt.Fprint(os.Stdout, c.Text)
		if c.Finished {
			fmt.Fprintln(os.Stdout)
		}
		return err
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("generation failed: %s", resp.Error)
	}
	return nil
}

func checkDaemon(ctx context.Context, address string) error {
	c, err := client.Connect(address)
	if err != nil {
		return err
	}
	defer c.Close() //nolint:errcheck // No remedy for grpc client close errors

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	statuses, err := c.CheckAll(ctx, server.ServiceOverall, server.ServiceLLM, server.ServiceStore)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot reach agentd at %s\n", address)
		return err
	}
	return printJSON(statuses)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
