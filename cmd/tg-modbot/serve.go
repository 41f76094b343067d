package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"tg-modbot/internal/bot"
	"tg-modbot/internal/config"
	"tg-modbot/internal/crash"
	"tg-modbot/internal/gateway"
	"tg-modbot/internal/handler"
	"tg-modbot/internal/logger"
	"tg-modbot/internal/metrics"
	"tg-modbot/internal/moderation"
	"tg-modbot/internal/scheduler"
	"tg-modbot/internal/storage"
)

const (
	shutdownTimeout = 10 * time.Second
	statsInterval   = 5 * time.Minute
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot behind its webhook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return serve(cmd.Context(), configPath)
		},
	}
}

func serve(parent context.Context, configPath string) error {
	defer crash.RecoverWithStackAndExit("main")
	crash.SetupCrashHandler()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Setup(cfg); err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Infof)); err != nil {
		logger.Warningf("Failed to set GOMAXPROCS: %v", err)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(&cfg.Database, cfg.Logger.Level)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	store := storage.NewStore(db)
	if err := store.AutoMigrate(); err != nil {
		return err
	}
	logger.Infof("Database connection established (%s)", cfg.Database.Driver)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	sched := scheduler.New(store, scheduler.RealClock{}, scheduler.Options{
		SweepInterval: cfg.Scheduler.SweepInterval,
		MissedGrace:   cfg.Scheduler.MissedGrace,
	})
	m.TrackPendingJobs(reg, sched.Pending)

	tg, identity, err := bot.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	gw := gateway.New(tg)

	lc := moderation.NewLifecycle(store, gw, sched, moderation.Options{Metrics: m})
	chats := moderation.NewChats(store, gw, sched, moderation.ChatsOptions{
		DefaultExpiry: cfg.Moderation.DefaultExpiry,
		MinExpiry:     cfg.Moderation.MinExpiry,
		MaxExpiry:     cfg.Moderation.MaxExpiry,
	})
	router := handler.NewRouter(lc, chats, gw, handler.Options{
		Identity:       identity,
		OperatorChatID: cfg.Bot.OperatorChatID,
		Metrics:        m,
		PendingJobs:    sched.Pending,
	})

	botService, server, err := bot.Initialize(ctx, cfg, tg, router, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err != nil {
		return err
	}

	// recovers jobs persisted by a previous run before any update is handled
	if err := sched.Start(ctx, lc.HandleJob); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	g, gctx := errgroup.WithContext(ctx)

	crash.SafeGoroutine("processing-stats", func() {
		router.Stats().LogPeriodically(gctx, statsInterval)
	})

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting bot handler...")
		botService.Start()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		botService.Stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("Server gracefully stopped")
	return err
}
