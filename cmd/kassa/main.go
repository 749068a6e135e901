package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"kassa/internal/api"
	"kassa/internal/backend"
	"kassa/internal/cache"
	"kassa/internal/config"
	"kassa/internal/database"
	"kassa/internal/engine"
	"kassa/internal/events"
	"kassa/internal/export"
	"kassa/internal/logging"
	"kassa/internal/metrics"
	"kassa/internal/netmon"
	"kassa/internal/notify"
	"kassa/internal/service"
	"kassa/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", defaultConfigPath(), "путь к config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := baseLogger.With().Str("component", "kassa-main").Logger()

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	backendClient := backend.NewClient(cfg.Backend, &logger)
	productCache := cache.NewProductCache(&logger)
	statusBus := events.NewStatusBus()
	alerts := notify.NewWebhookSender(cfg.Alerts.WebhookURL, cfg.Alerts.Recipient, &logger)

	metrics.Register()

	syncEngine := engine.New(engine.Options{
		Store:      db,
		Backend:    backendClient,
		Reconciler: productCache,
		Bus:        statusBus,
		Alerts:     alerts,
		Redis:      redisClient,
		Logger:     &logger,
		Loyalty:    cfg.Loyalty,
		Stock:      cfg.Stock,
	})

	refreshPolicy := worker.RetryPolicy{
		MaxAttempts:   cfg.Refresh.MaxAttempts,
		InitialDelay:  time.Duration(cfg.Refresh.InitialDelaySec) * time.Second,
		BackoffFactor: 2,
	}
	refresher := worker.NewRefreshWorker(
		backendClient, productCache, db, cfg.Store.ID,
		refreshPolicy, time.Duration(cfg.Refresh.IntervalSeconds)*time.Second, &logger,
	)
	if err := refresher.LoadSnapshot(ctx); err != nil {
		logger.Warn().Err(err).Msg("не удалось прогреть кэш товаров")
	}
	go refresher.Start(ctx)

	monitor := netmon.NewMonitor(
		backendClient, syncEngine,
		time.Duration(cfg.Backend.ProbeInterval)*time.Second, &logger,
	)
	monitor.UseRefresher(refresher)
	go monitor.Start(ctx)

	saleService := service.NewSaleService(productCache, db, syncEngine, cfg.Store.ID, cfg.Store.EmployeeID, &logger)
	productService := service.NewProductService(productCache, db, syncEngine, &logger)
	exporter := export.NewSalesExporter(backendClient, cfg.Store.ID, cfg.Exports.Path, &logger)

	httpServer := api.NewHTTPServer(cfg.Monitoring.HTTPPort, api.Deps{
		Engine:   syncEngine,
		Sales:    saleService,
		Products: productService,
		Catalog:  productCache,
		Exporter: exporter,
	}, &logger)
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("status server error")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info().Int64("store_id", cfg.Store.ID).Msg("Касса запущена...")
	<-ctx.Done()

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func defaultConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "configs/config.yaml"
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	}
	return client
}
