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
	"golang.org/x/sync/errgroup"

	"github.com/kegline/kegline/internal/app"
	"github.com/kegline/kegline/internal/credit"
	"github.com/kegline/kegline/internal/customers"
	"github.com/kegline/kegline/internal/platform/cache"
	"github.com/kegline/kegline/internal/platform/db"
	"github.com/kegline/kegline/internal/products"
	"github.com/kegline/kegline/internal/returns"
	"github.com/kegline/kegline/internal/sales"
	"github.com/kegline/kegline/internal/shared"
	"github.com/kegline/kegline/internal/stock"
	"github.com/kegline/kegline/jobs"
)

func main() {
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
		// Stock levels fall back to the database when the cache is down.
		logger.Warn("redis unavailable", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	levelCache := stock.NewLevelCache(redisClient, cfg.StockCacheTTL)

	customersRepo := customers.NewRepository(pool)
	customersService := customers.NewService(customersRepo)
	customersHandler := customers.NewHandler(logger, customersService)

	productsRepo := products.NewRepository(pool)
	productsService := products.NewService(productsRepo)
	productsHandler := products.NewHandler(logger, productsService)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, auditLogger, idempotencyStore, levelCache)
	stockHandler := stock.NewHandler(logger, stockService)

	creditRepo := credit.NewRepository(pool)
	creditService := credit.NewService(creditRepo, auditLogger)
	creditHandler := credit.NewHandler(logger, creditService)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, auditLogger, idempotencyStore, levelCache)
	salesHandler := sales.NewHandler(logger, salesService)

	returnsRepo := returns.NewRepository(pool)
	returnsService := returns.NewService(returnsRepo, auditLogger, levelCache)
	returnsHandler := returns.NewHandler(logger, returnsService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
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
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		CustomersHandler: customersHandler,
		ProductsHandler:  productsHandler,
		StockHandler:     stockHandler,
		CreditHandler:    creditHandler,
		SalesHandler:     salesHandler,
		ReturnsHandler:   returnsHandler,
		JobsHandler:      jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
