package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hvnguyen/popmart-registrar/internal/bot"
	"github.com/hvnguyen/popmart-registrar/internal/clock/system"
	"github.com/hvnguyen/popmart-registrar/internal/config"
	"github.com/hvnguyen/popmart-registrar/internal/events"
	"github.com/hvnguyen/popmart-registrar/internal/events/sinks"
	"github.com/hvnguyen/popmart-registrar/internal/gateway"
	"github.com/hvnguyen/popmart-registrar/internal/logging"
	"github.com/hvnguyen/popmart-registrar/internal/pending"
	"github.com/hvnguyen/popmart-registrar/internal/registration"
	"github.com/hvnguyen/popmart-registrar/internal/registry"
	"github.com/hvnguyen/popmart-registrar/internal/scheduler"
	"github.com/hvnguyen/popmart-registrar/internal/solver"
	"github.com/hvnguyen/popmart-registrar/internal/web"
	"github.com/hvnguyen/popmart-registrar/internal/worker"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot and process batches until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func run(parent context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, err := gateway.New(gateway.Config{
		BaseURL:      cfg.Site.BaseURL,
		FormPath:     cfg.Site.FormPath,
		AjaxPath:     cfg.Site.AjaxPath,
		UserAgent:    cfg.Site.UserAgent,
		Timeout:      cfg.SiteTimeout(),
		MaxRetries:   cfg.HTTP.MaxRetries,
		BackoffBase:  cfg.BackoffInitial(),
		BackoffLimit: cfg.BackoffMax(),
		MaxRPS:       cfg.HTTP.MaxRPS,
		Burst:        cfg.HTTP.Burst,
	})
	if err != nil {
		return err
	}

	var solve registration.Solver
	if cfg.Solver.Enabled {
		solve, err = solver.New(solver.Config{
			APIKey:       cfg.Solver.APIKey,
			SoftTimeout:  cfg.SolverSoftTimeout(),
			PollInterval: cfg.SolverPollInterval(),
		}, logger.Named("solver"))
		if err != nil {
			return err
		}
		logger.Info("automatic captcha solving enabled")
	} else {
		logger.Info("automatic captcha solving disabled; using manual fallback")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	messenger := bot.NewClient(api)

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	hub := events.NewHub(events.Config{Logger: logger.Named("events")},
		sinks.NewLogSink(logger.Named("events")),
		promSink,
		sinks.NewTelegramSink(messenger),
	)

	reg := registry.New(cfg.Registration.RetryFailedDays)
	pendings := pending.NewStore()
	w := worker.New(gw, solve, pendings, reg, hub, messenger, system.New(),
		worker.Config{MaxAttempts: cfg.Registration.MaxCaptchaAttempts}, logger.Named("worker"))
	sched := scheduler.New(reg, w, scheduler.Config{MaxWorkers: cfg.Registration.MaxWorkers}, logger.Named("scheduler"))

	var ops *web.Server
	if cfg.Metrics.Enabled {
		ops = web.New(cfg.Metrics.Addr, reg, pendings, logger.Named("web"))
		ops.Start()
	}

	router := bot.NewRouter(api, messenger, gw, sched, pendings, w, cfg, logger.Named("bot"))
	router.Run(ctx)

	logger.Info("shutting down; waiting for running day workers")
	sched.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if ops != nil {
		if err := ops.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ops server shutdown", zap.Error(err))
		}
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("events hub close", zap.Error(err))
	}
	return nil
}
