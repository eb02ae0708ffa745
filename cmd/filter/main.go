package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"freshrss_filter/internal/bot"
	"freshrss_filter/internal/classifier"
	"freshrss_filter/internal/config"
	"freshrss_filter/internal/fever"
	"freshrss_filter/internal/filter"
	"freshrss_filter/internal/greader"
	"freshrss_filter/internal/lock"
	"freshrss_filter/internal/pipeline"
	"freshrss_filter/internal/scheduler"
	"freshrss_filter/internal/status"
	"freshrss_filter/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default ./config.yaml if present)")
	dryRun := flag.Bool("dry-run", false, "classify items but never act on ads")
	once := flag.Bool("once", false, "run the pipeline once and exit")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.DryRun = true
	}
	level := cfg.LogLevel
	if *verbose {
		level = "debug"
	}
	log := newLogger(level)

	if err := run(cfg, *once, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, once bool, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Database.Driver == "sqlite" {
		if dir := filepath.Dir(cfg.Database.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("create data directory %s: %w", dir, err)
			}
		}
	}

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	rules, err := filter.Compile(cfg.Filters)
	if err != nil {
		return fmt.Errorf("compile filters: %w", err)
	}

	cls, err := classifier.New(cfg.Classifier)
	if err != nil {
		return fmt.Errorf("create classifier: %w", err)
	}

	source := fever.New(nil, cfg.FreshRSS.BaseURL, cfg.FreshRSS.FeverAPIKey, cfg.FreshRSS.UserAgent)

	deps := pipeline.Deps{
		Source:     source,
		Store:      store,
		Classifier: cls,
		Rules:      rules,
		Log:        log,
	}
	if cfg.FreshRSS.HasGReader() {
		deps.Labeler = greader.New(nil, cfg.FreshRSS.BaseURL, cfg.FreshRSS.GReaderUsername,
			cfg.FreshRSS.GReaderPassword, cfg.FreshRSS.UserAgent)
	}
	opts := pipeline.Options{
		Threshold:   cfg.Classifier.Threshold,
		Mode:        cfg.FreshRSS.Mode(),
		DryRun:      cfg.DryRun,
		Concurrency: cfg.Concurrency,
		SpamLabel:   cfg.FreshRSS.SpamLabel,
	}

	state := status.NewState()
	observers := pipeline.Observers{status.NewConsole(os.Stdout), state}

	log.Info("configured",
		"mode", opts.Mode,
		"dry_run", opts.DryRun,
		"threshold", opts.Threshold,
		"concurrency", opts.Concurrency,
		"provider", cfg.Classifier.Provider,
		"model", cfg.Classifier.Model,
		"skip_rules", rules.Len(),
		"database", cfg.Database.Driver,
	)

	if once {
		deps.Observer = observers
		return runOnce(ctx, pipeline.New(deps, opts))
	}

	var schedOpts []scheduler.Option
	if cfg.Scheduler.RedisURL != "" {
		locker := lock.NewRedis(cfg.Scheduler.RedisURL, "", cfg.Scheduler.LockTTL)
		defer func() { _ = locker.Close() }()
		if err := locker.Ping(ctx); err != nil {
			log.Warn("redis unreachable, runs will be skipped until it is back", "error", err)
		}
		schedOpts = append(schedOpts, scheduler.WithLocker(locker))
	}

	var proc *pipeline.Processor
	coord, err := scheduler.New(cfg.Scheduler.Cron, func(ctx context.Context) error {
		_, err := proc.RunOnce(ctx)
		return err
	}, log, schedOpts...)
	if err != nil {
		return err
	}

	serveCtx, stopServing := context.WithCancel(context.Background())
	defer stopServing()
	g, serveCtx := errgroup.WithContext(serveCtx)

	if cfg.Telegram.BotToken != "" {
		b, err := bot.New(cfg.Telegram.BotToken, store, coord, state, cfg, log)
		if err != nil {
			return fmt.Errorf("create bot: %w", err)
		}
		observers = append(observers, b)
		g.Go(func() error {
			b.Run(serveCtx)
			return nil
		})
	}

	if cfg.Status.Listen != "" {
		gin.SetMode(gin.ReleaseMode)
		srv := status.NewServer(state, store, coord, log)
		g.Go(func() error {
			return srv.Run(serveCtx, cfg.Status.Listen)
		})
	}

	deps.Observer = observers
	proc = pipeline.New(deps, opts)

	coord.Start(ctx)
	log.Info("started")

	select {
	case <-ctx.Done():
	case <-serveCtx.Done():
	}
	log.Info("shutting down, waiting for the running scan")

	stopServing()
	if err := coord.Shutdown(context.Background()); err != nil {
		log.Error("scheduler shutdown", "error", err)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stopped")
	return nil
}

// runOnce lets a signal end the process only after the run finishes.
func runOnce(ctx context.Context, proc *pipeline.Processor) error {
	_, err := proc.RunOnce(context.WithoutCancel(ctx))
	return err
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
