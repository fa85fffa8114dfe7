package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"content_syncer/internal/config"
	"content_syncer/internal/orchestrator"
	"content_syncer/internal/publisher"
	"content_syncer/internal/retry"
	"content_syncer/internal/service"
	"content_syncer/internal/source"
	"content_syncer/internal/source/airtable"
	"content_syncer/internal/source/github"
	"content_syncer/internal/source/mailchimp"
	"content_syncer/internal/source/youtube"
	"content_syncer/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	runOnce := flag.Bool("once", false, "sync every enabled source once and exit")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize RabbitMQ publisher when enabled; sync runs fine without it.
	var events service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		events = rabbitMQ
	}

	// Initialize stores
	contentStore := postgres.NewContentStore(db, logger)
	statusStore := postgres.NewSyncStatusStore(db)
	txManager := postgres.NewTransactionManager(db)

	specs, enabled, err := buildJobs(cfg, contentStore, statusStore, txManager, events, logger)
	if err != nil {
		logger.Error("failed to build sync jobs", "error", err)
		os.Exit(1)
	}
	if enabled == 0 {
		logger.Error("no sources enabled")
		os.Exit(1)
	}

	orchCfg := orchestrator.Config{
		Stagger:    cfg.Sync.Stagger,
		RunTimeout: cfg.Sync.RunTimeout,
	}
	if cfg.Sync.MaxJitter > 0 {
		maxJitter := cfg.Sync.MaxJitter
		orchCfg.Jitter = func() time.Duration { return time.Duration(rand.Int63n(int64(maxJitter))) }
	}

	orch, err := orchestrator.New(orchCfg, specs, statusStore, logger)
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *runOnce {
		if failed := syncOnce(ctx, orch, logger); failed > 0 {
			os.Exit(1)
		}
		return
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting content syncer",
		"sources", enabled,
		"stagger", cfg.Sync.Stagger,
	)

	orch.Start(ctx)
	<-ctx.Done()
	orch.Stop()
}

// buildJobs registers every configured provider, disabled ones included, so
// the status surface lists them. Only enabled jobs are scheduled.
func buildJobs(
	cfg *config.Config,
	content service.ContentStore,
	status service.SyncStatusStore,
	txManager service.TransactionManager,
	events service.Publisher,
	logger *slog.Logger,
) ([]orchestrator.JobSpec, int, error) {
	sources := []struct {
		src      source.Source
		provider config.ProviderConfig
	}{
		{
			src: airtable.New(airtable.Config{
				BaseURL:  cfg.Sources.Airtable.BaseURL,
				APIKey:   cfg.Sources.Airtable.APIKey,
				BaseID:   cfg.Sources.Airtable.BaseID,
				Table:    cfg.Sources.Airtable.Table,
				PageSize: cfg.Sources.Airtable.PageSize,
				Timeout:  cfg.Sources.Airtable.Timeout,
			}, logger),
			provider: cfg.Sources.Airtable.ProviderConfig,
		},
		{
			src: youtube.New(youtube.Config{
				BaseURL:   cfg.Sources.YouTube.BaseURL,
				APIKey:    cfg.Sources.YouTube.APIKey,
				ChannelID: cfg.Sources.YouTube.ChannelID,
				PageSize:  cfg.Sources.YouTube.PageSize,
				Timeout:   cfg.Sources.YouTube.Timeout,
			}, logger),
			provider: cfg.Sources.YouTube.ProviderConfig,
		},
		{
			src: mailchimp.New(mailchimp.Config{
				BaseURL:  cfg.Sources.Mailchimp.BaseURL,
				APIKey:   cfg.Sources.Mailchimp.APIKey,
				PageSize: cfg.Sources.Mailchimp.PageSize,
				Timeout:  cfg.Sources.Mailchimp.Timeout,
			}, logger),
			provider: cfg.Sources.Mailchimp.ProviderConfig,
		},
		{
			src: github.New(github.Config{
				BaseURL:   cfg.Sources.GitHub.BaseURL,
				Token:     cfg.Sources.GitHub.Token,
				Owner:     cfg.Sources.GitHub.Owner,
				Repo:      cfg.Sources.GitHub.Repo,
				Extension: cfg.Sources.GitHub.Extension,
				PageSize:  cfg.Sources.GitHub.PageSize,
				Timeout:   cfg.Sources.GitHub.Timeout,
			}, logger),
			provider: cfg.Sources.GitHub.ProviderConfig,
		},
	}

	specs := make([]orchestrator.JobSpec, 0, len(sources))
	enabled := 0
	for _, entry := range sources {
		schedule, err := buildSchedule(entry.provider, cfg.Sync.DefaultInterval)
		if err != nil {
			return nil, 0, fmt.Errorf("schedule for %s: %w", entry.src.ID(), err)
		}

		collector := source.NewCollector(entry.src, source.CollectConfig{
			Retry: retry.Config{
				MaxAttempts:    entry.provider.Retry.MaxAttempts,
				InitialBackoff: entry.provider.Retry.InitialBackoff,
				MaxBackoff:     entry.provider.Retry.MaxBackoff,
			},
			MinRequestInterval: entry.provider.MinRequestInterval,
			MaxConcurrent:      entry.provider.MaxConcurrent,
			MaxPages:           entry.provider.MaxPages,
		}, logger)

		syncService := service.NewSyncService(
			collector,
			content,
			status,
			txManager,
			events,
			schedule.Next,
			logger,
		)

		specs = append(specs, orchestrator.JobSpec{
			Source:   entry.src.ID(),
			Schedule: schedule,
			Syncer:   syncService,
			Enabled:  entry.provider.Enabled,
		})
		if entry.provider.Enabled {
			enabled++
		}
	}

	return specs, enabled, nil
}

func buildSchedule(provider config.ProviderConfig, defaultInterval time.Duration) (orchestrator.Schedule, error) {
	if provider.Schedule != "" {
		return orchestrator.Cron(provider.Schedule)
	}
	interval := provider.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return orchestrator.Every(interval), nil
}

func syncOnce(ctx context.Context, orch *orchestrator.Orchestrator, logger *slog.Logger) int {
	results := orch.ForceSyncAll(ctx)

	failed := 0
	for name, result := range results {
		switch {
		case result.Skipped:
			logger.Warn("sync skipped", "source", name)
		case !result.Success:
			failed++
			logger.Error("sync failed", "source", name, "errors", result.Errors)
		default:
			logger.Info("sync finished",
				"source", name,
				"synced", result.Synced,
				"duration_ms", result.DurationMs,
			)
		}
	}
	return failed
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
