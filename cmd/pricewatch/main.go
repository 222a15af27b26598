package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/adapter/chromedp_browser"
	"github.com/user/pricewatch/internal/adapter/csvstore"
	"github.com/user/pricewatch/internal/adapter/postgres"
	redis_adapter "github.com/user/pricewatch/internal/adapter/redis"
	"github.com/user/pricewatch/internal/adapter/rod_browser"
	"github.com/user/pricewatch/internal/adapter/smtp"
	"github.com/user/pricewatch/internal/delivery/http/handler"
	"github.com/user/pricewatch/internal/delivery/http/router"
	"github.com/user/pricewatch/internal/delivery/http/server"
	"github.com/user/pricewatch/internal/repository"
	"github.com/user/pricewatch/internal/usecase"
	"github.com/user/pricewatch/pkg/config"
	"github.com/user/pricewatch/pkg/logger"
	"github.com/user/pricewatch/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to an optional config file (yaml, toml or env)")
	once := flag.Bool("once", false, "run a single check cycle and exit")
	flag.Parse()

	if err := run(*configPath, *once); err != nil {
		fmt.Fprintln(os.Stderr, "pricewatch:", err)
		os.Exit(1)
	}
}

func run(configPath string, once bool) error {
	// --- Configuration ---
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// --- Logger ---
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// --- Metrics ---
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Adapters ---
	opts := []usecase.TrackerOption{usecase.WithMetrics(m)}

	var history repository.CheckHistoryRepository
	if cfg.PostgresURL != "" {
		pool, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			log.Warn("check history disabled, postgres unavailable", zap.Error(err))
		} else {
			defer pool.Close()
			history = postgres.NewPriceCheckRepo(pool)
			opts = append(opts, usecase.WithCheckHistory(history))
			log.Info("postgres check history enabled")
		}
	}

	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("failure streaks and run lock disabled, redis unavailable", zap.Error(err))
		} else {
			opts = append(opts,
				usecase.WithFailureStreaks(redis_adapter.NewFailureStreakRepo(rdb)),
				usecase.WithRunLock(redis_adapter.NewRunLockRepo(rdb)),
			)
			log.Info("redis failure streaks and run lock enabled")
		}
	}

	if cfg.HumanBehaviorEnabled {
		opts = append(opts, usecase.WithHumanBehavior(usecase.NewHumanBehavior(nil, log)))
	}

	var notifier repository.Notifier
	if cfg.EmailEnabled() {
		notifier = smtp.NewMailNotifier(smtp.Settings{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Sender:   cfg.EmailSender,
			Password: cfg.EmailPassword,
			Receiver: cfg.EmailReceiver,
		}, log)
	} else {
		log.Warn("email credentials not configured, notifications are logged only")
		notifier = smtp.NewLogNotifier(log)
	}

	var sessions repository.SessionFactory
	switch cfg.BrowserBackend {
	case config.BackendRod:
		sessions = rod_browser.NewRodSessionFactory(cfg.BrowserBin, log)
	default:
		sessions = chromedp_browser.NewChromedpSessionFactory(log)
	}

	// --- Use Case ---
	store := csvstore.NewCSVProductStore(cfg.DatasetPath)
	tracker := usecase.NewTracker(usecase.NewTrackerConfig(cfg), store, sessions, notifier, log, opts...)

	log.Info("pricewatch starting",
		zap.String("dataset", store.Path()),
		zap.String("backend", cfg.BrowserBackend),
		zap.Int("max_workers", cfg.MaxWorkers),
		zap.Bool("email", cfg.EmailEnabled()),
	)

	if once || cfg.Schedule == "" {
		_, err := tracker.RunCycle(ctx)
		if errors.Is(err, usecase.ErrRunLocked) {
			return nil
		}
		return err
	}
	return serve(ctx, cfg, tracker, history, m, log)
}

// serve runs scheduled cycles and the HTTP API until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, tracker *usecase.Tracker, history repository.CheckHistoryRepository, m *metrics.Metrics, log *zap.Logger) error {
	cl := cronLogger{log.Sugar().Named("cron")}
	scheduler := cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl)))
	if _, err := scheduler.AddFunc(cfg.Schedule, func() {
		if !tracker.Trigger(ctx) {
			log.Warn("previous cycle still running, skipping scheduled run")
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}

	h := handler.NewHandler(ctx, tracker, history, log)
	srv := server.New(cfg.HTTPAddr, router.New(h, m, log), log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	scheduler.Start()
	log.Info("scheduler started", zap.String("schedule", cfg.Schedule))

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
		log.Error("http server stopped", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server forced to shutdown", zap.Error(err))
	}

	<-scheduler.Stop().Done()
	// In-flight tasks finish on their own timeouts; the cycle persists what completed.
	tracker.Wait()

	log.Info("pricewatch exiting")
	return serveErr
}

// cronLogger routes scheduler logs through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
