package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-receivables/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-receivables/internal/analytics/export"
	analytichttp "github.com/odyssey-erp/odyssey-receivables/internal/analytics/http"
	"github.com/odyssey-erp/odyssey-receivables/internal/app"
	"github.com/odyssey-erp/odyssey-receivables/internal/observability"
	"github.com/odyssey-erp/odyssey-receivables/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-receivables/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "serve" {
		args = args[1:]
	}
	if len(args) > 0 {
		os.Exit(runCLI(ctx, cfg, logger, args))
	}
	if err := serve(ctx, stop, cfg, logger); err != nil {
		logger.Error("serve", slog.Any("error", err))
		os.Exit(1)
	}
}

func runCLI(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	switch args[0] {
	case "help", "-h", "--help":
		return cli.Run(ctx, args, cli.Deps{})
	}
	if !cli.IsCommand(args[0]) {
		return cli.Run(ctx, args, cli.Deps{})
	}
	rt, err := app.Bootstrap(ctx, cfg, logger, app.BootstrapOptions{})
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		return cli.ExitError
	}
	defer rt.Close()

	receivables, err := cli.NewReceivablesCLI(rt.Service, rt.Loader)
	if err != nil {
		logger.Error("init cli", slog.Any("error", err))
		return cli.ExitError
	}
	redisOpts, err := cache.Options(cfg.RedisAddr)
	if err != nil {
		logger.Error("redis options", slog.Any("error", err))
		return cli.ExitError
	}
	connOpt := asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB}
	client := jobs.NewClient(connOpt)
	defer func() { _ = client.Close() }()
	inspector := asynq.NewInspector(connOpt)
	defer func() { _ = inspector.Close() }()

	return cli.Run(ctx, args, cli.Deps{
		Receivables: receivables,
		Jobs:        cli.NewJobsCLI(client, inspector),
	})
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics(cfg.AppVersion)
	rt, err := app.Bootstrap(ctx, cfg, logger, app.BootstrapOptions{Registerer: metrics.Registerer()})
	if err != nil {
		return err
	}
	defer rt.Close()

	err = rt.Cache.Listen(ctx, func(version int64) {
		logger.Info("dataset cache invalidated", slog.Int64("version", version))
	})
	if err != nil {
		logger.Warn("dataset invalidation listener", slog.Any("error", err))
	}

	redisOpts, err := cache.Options(cfg.RedisAddr)
	if err != nil {
		return err
	}
	connOpt := asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB}
	jobClient := jobs.NewClient(connOpt)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(connOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	var pdf analytichttp.PDFService
	if cfg.GotenbergURL != "" {
		pdf = &export.PDFExporter{Endpoint: cfg.GotenbergURL, Client: &http.Client{Timeout: 20 * time.Second}}
	}
	receivables := analytichttp.NewHandler(logger, rt.Service, jobClient, pdf)
	receivables.WithRateLimit(cfg.RateLimitPerMin)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ReceivablesHandler: receivables,
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
