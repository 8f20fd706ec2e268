package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/botflowhq/botflow/internal/engine"
	"github.com/botflowhq/botflow/internal/executor"
	"github.com/botflowhq/botflow/internal/expressions"
	"github.com/botflowhq/botflow/internal/logging"
	"github.com/botflowhq/botflow/internal/scheduler"
	"github.com/botflowhq/botflow/internal/store"
	"github.com/botflowhq/botflow/internal/streaming"
	"github.com/botflowhq/botflow/internal/validation"
	"github.com/botflowhq/botflow/pkg/mcp"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		printVersion()
		return
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "botflow:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archive, err := openArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if archive != nil {
		defer archive.Close()
	}

	parser, err := validation.NewFlowParser()
	if err != nil {
		return fmt.Errorf("compile flow schema: %w", err)
	}
	cel, err := expressions.NewCELEngine()
	if err != nil {
		return fmt.Errorf("init cel engine: %w", err)
	}

	hub := streaming.NewMemoryHub()
	eng := engine.New(engine.Deps{
		Validator: validation.NewFlowValidator(),
		Executor:  executor.New(expressions.NewExprEngine(), expressions.NewJQEngine()),
		CEL:       cel,
		Archive:   archive,
		Hub:       hub,
		Logger:    logger,
	})

	janitor, err := scheduler.NewJanitor(eng, archive, scheduler.Config{
		CronExpression: cfg.CleanupCron,
		MaxRunAge:      cfg.MaxRunAge(),
		Retention:      cfg.Retention(),
	}, logger)
	if err != nil {
		return fmt.Errorf("init janitor: %w", err)
	}
	if err := janitor.Start(ctx); err != nil {
		return err
	}
	defer janitor.Stop()

	srv := mcp.NewFlowServer(mcp.FlowServerDeps{
		Engine: eng,
		Parser: parser,
		Hub:    hub,
		Logger: logger,
	})
	if err := srv.StartNotifier(ctx); err != nil {
		return fmt.Errorf("start notifier: %w", err)
	}

	logger.Info("botflow engine started", slog.String("version", version))
	return srv.Serve(ctx)
}

// openArchive initializes the libSQL run archive, or returns nil when the
// db path is explicitly disabled with "off".
func openArchive(ctx context.Context, cfg Config, logger *slog.Logger) (store.Archive, error) {
	if cfg.DBPath == "off" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	archive, err := store.NewLibSQLArchive("file:" + cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := archive.Migrate(ctx); err != nil {
		archive.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	logger.Info("run archive ready", slog.String("path", cfg.DBPath))
	return archive, nil
}

// newLogger builds the process logger: JSON to stderr, wrapped so run
// correlation ids flow from contexts into every record.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(logging.NewCorrelationHandler(inner))
	slog.SetDefault(logger)
	return logger
}
