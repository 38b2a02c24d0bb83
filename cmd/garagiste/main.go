package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/garagiste-app/garagiste/internal/app"
	"github.com/garagiste-app/garagiste/internal/history"
	"github.com/garagiste-app/garagiste/internal/invoices"
	"github.com/garagiste-app/garagiste/internal/masterdata/customers"
	"github.com/garagiste-app/garagiste/internal/masterdata/vehicles"
	"github.com/garagiste-app/garagiste/internal/observability"
	"github.com/garagiste-app/garagiste/internal/platform/cache"
	"github.com/garagiste-app/garagiste/internal/platform/db"
	"github.com/garagiste-app/garagiste/internal/quotes"
	"github.com/garagiste-app/garagiste/internal/render"
	"github.com/garagiste-app/garagiste/internal/settings"
	"github.com/garagiste-app/garagiste/internal/shared"
	"github.com/garagiste-app/garagiste/internal/signing"
	"github.com/garagiste-app/garagiste/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "garagiste_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	enqueuer := jobs.NewEnqueuer(asynqClient)

	customerRepo := customers.NewRepository(pool)
	vehicleRepo := vehicles.NewRepository(pool)
	settingsRepo := settings.NewRepository(pool)
	ledger := history.NewPG(pool)

	quoteRepo := quotes.NewRepository(pool)
	quoteService := quotes.NewService(quoteRepo, ledger, customerRepo, vehicleRepo, settingsRepo, enqueuer, logger, cfg.PublicBaseURL)
	quoteHandler := quotes.NewHandler(quoteService, logger)

	signingService := signing.NewService(quoteRepo, customerRepo, vehicleRepo, settingsRepo, logger)
	signingHandler := signing.NewHandler(signingService, metrics, logger)

	invoiceRepo := invoices.NewRepository(pool)
	invoiceService := invoices.NewService(invoiceRepo, quoteRepo, logger)
	invoiceHandler := invoices.NewHandler(invoiceService, logger)

	pdfClient := render.NewClient(cfg.GotenbergURL)
	if err := pdfClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg ping", slog.Any("error", err))
	}
	renderService := render.NewService(signingService, pdfClient, logger)
	renderHandler := render.NewHandler(renderService, quoteService, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		QuoteHandler:   quoteHandler,
		SigningHandler: signingHandler,
		InvoiceHandler: invoiceHandler,
		RenderHandler:  renderHandler,
		Pool:           pool,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
}
