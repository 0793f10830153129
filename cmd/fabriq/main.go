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

	"github.com/fabriq-erp/fabriq/internal/app"
	"github.com/fabriq-erp/fabriq/internal/bom"
	"github.com/fabriq-erp/fabriq/internal/masterdata"
	"github.com/fabriq-erp/fabriq/internal/platform/cache"
	"github.com/fabriq-erp/fabriq/internal/platform/db"
	"github.com/fabriq-erp/fabriq/internal/procurement"
	"github.com/fabriq-erp/fabriq/internal/production"
	"github.com/fabriq-erp/fabriq/internal/shared"
	"github.com/fabriq-erp/fabriq/internal/stock"
	"github.com/fabriq-erp/fabriq/jobs"
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
		// Cost summaries degrade to direct reads without Redis.
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	masterdataRepo := masterdata.NewRepository(pool)
	masterdataService := masterdata.NewService(masterdataRepo, auditLogger, nil)
	masterdataHandler := masterdata.NewHandler(logger, masterdataService)

	bomRepo := bom.NewRepository(pool)
	bomCache := bom.NewCache(redisClient, cfg.BOMCacheTTL)
	bomService := bom.NewService(bomRepo, auditLogger, bomCache, nil)
	bomHandler := bom.NewHandler(logger, bomService)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, auditLogger, idempotencyStore, nil, cfg.StockAllowNegative)
	stockHandler := stock.NewHandler(logger, stockService)

	productionRepo := production.NewRepository(pool)
	productionService := production.NewService(productionRepo, auditLogger, nil)
	productionHandler := production.NewHandler(logger, productionService)

	procurementRepo := procurement.NewRepository(pool)
	procurementService := procurement.NewService(procurementRepo, auditLogger, nil)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(asynq.NewInspector(redisOpts), jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		MasterDataHandler:  masterdataHandler,
		BOMHandler:         bomHandler,
		StockHandler:       stockHandler,
		ProductionHandler:  productionHandler,
		ProcurementHandler: procurementHandler,
		JobHandler:         jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
