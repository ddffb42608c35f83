package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/leobook-1/LeoBook-sub001/internal/booker/browser"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/gate"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/selectors"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/site"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/slip"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/workflow"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/alert"
	pkgconfig "github.com/leobook-1/LeoBook-sub001/internal/pkg/config"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/logging"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/performance"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/storage"
)

const (
	defaultConfigPath = "configs/booker.yaml"
	defaultTasksPath  = "configs/tasks.yaml"
)

type cliConfig struct {
	configPath string
	tasksPath  string
	runFor     time.Duration
}

func main() {
	if err := run(); err != nil {
		slog.Error("Booker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Secrets come from .env in development; ignore absence in production.
	_ = godotenv.Load()

	cfg := parseFlags()
	slog.Info("Loading config", "path", cfg.configPath)

	appConfig, err := pkgconfig.Load(cfg.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, err := logging.SetupLogger(&appConfig.Logging, "booker"); err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	}

	tasks, err := pkgconfig.LoadTasks(cfg.tasksPath)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks to book in %s", cfg.tasksPath)
	}
	slog.Info("Tasks loaded", "count", len(tasks))

	profile, err := selectors.Load(appConfig.Booker.ProfilePath)
	if err != nil {
		return fmt.Errorf("failed to load selector profile: %w", err)
	}
	slog.Info("Selector profile loaded", "site", profile.Site())

	ctx, cancel := createContext(cfg.runFor)
	defer cancel()
	setupSignalHandler(ctx, cancel)

	session, err := browser.NewChromeSession(ctx, browser.SessionOptions{
		Headless:   appConfig.Booker.Headless,
		UserAgent:  appConfig.Booker.UserAgent,
		IdleWindow: appConfig.Booker.NetworkIdleWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to start browser session: %w", err)
	}
	defer session.Close()

	sink, err := selectSink(appConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			slog.Warn("Failed to close audit sink", "error", err)
		}
	}()

	batch := buildBatch(appConfig, profile, session, sink)

	slog.Info("Starting booking batch", "tasks", len(tasks), "site", profile.Site())
	results := batch.Run(ctx, tasks)

	booked := 0
	for _, r := range results {
		if r.Succeeded() {
			booked++
		}
	}
	slog.Info("Batch finished", "booked", booked, "failed", len(results)-booked, "skipped", len(tasks)-len(results))
	performance.GetTracker().PrintSummary()

	if booked == 0 {
		return fmt.Errorf("no bets booked out of %d tasks", len(tasks))
	}
	return nil
}

func buildBatch(appConfig *pkgconfig.Config, profile *selectors.Registry, session *browser.ChromeSession, sink storage.AuditSink) *workflow.Batch {
	b := appConfig.Booker
	g := gate.Gate{Attempts: b.GateAttempts, Interval: b.GateInterval}

	identity := site.NewIdentity(session, profile, g, b.ActionTimeout, b.Username, b.Password)
	balance := site.NewBalance(session, profile, b.ActionTimeout)
	slipCtl := slip.NewController(session, profile, g, b.ActionTimeout)

	wf := workflow.New(session, profile, slipCtl, identity, balance, workflow.Config{
		Gate:              g,
		NavigationTimeout: b.NavigationTimeout,
		ActionTimeout:     b.ActionTimeout,
		PlacementTimeout:  b.PlacementTimeout,
	})

	runner := workflow.NewRunner(wf, slipCtl, session, sink, selectAlerter(appConfig), profile.Site())
	return workflow.NewBatch(runner, b.TaskInterval)
}

func selectSink(appConfig *pkgconfig.Config) (storage.AuditSink, error) {
	if appConfig.Postgres.DSN == "" {
		slog.Info("No Postgres DSN configured, audit records go to the log")
		return storage.NewLogAuditSink(appConfig.Booker.ScreenshotDir), nil
	}
	sink, err := storage.NewPostgresAuditSink(&appConfig.Postgres, appConfig.Booker.ScreenshotDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init audit storage: %w", err)
	}
	return sink, nil
}

func selectAlerter(appConfig *pkgconfig.Config) alert.Alerter {
	if appConfig.Telegram.BotToken == "" || appConfig.Telegram.ChatID == 0 {
		slog.Info("Telegram not configured, selector alerts go to the log only")
		return alert.NopAlerter{}
	}
	if a := alert.NewTelegramAlerter(appConfig.Telegram.BotToken, appConfig.Telegram.ChatID); a != nil {
		return a
	}
	return alert.NopAlerter{}
}

func parseFlags() cliConfig {
	var cfg cliConfig

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}

	flag.StringVar(&cfg.configPath, "config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var)")
	flag.StringVar(&cfg.tasksPath, "tasks", defaultTasksPath, "Path to the booking tasks file")
	flag.DurationVar(&cfg.runFor, "run-for", 0, "Auto-stop after duration (e.g. 10m). 0 = run until the batch completes or SIGINT/SIGTERM")
	flag.Parse()
	return cfg
}

func createContext(runFor time.Duration) (context.Context, context.CancelFunc) {
	if runFor > 0 {
		return context.WithTimeout(context.Background(), runFor)
	}
	return context.WithCancel(context.Background())
}

func setupSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal, stopping booker...", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			signal.Stop(sigChan)
			close(sigChan)
		}
	}()
}
