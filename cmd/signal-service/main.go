package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-stock-backtester/internal/backtester/repository"
	signalcfg "golang-stock-backtester/internal/signal/config"
	"golang-stock-backtester/internal/signal/service"
	"golang-stock-backtester/pkg/logger"
	"golang-stock-backtester/pkg/postgres"
	"golang-stock-backtester/pkg/redis"
	"golang-stock-backtester/pkg/telegram"

	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the daily signal service",
	Run:   runServe,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Runs a single evaluation pass and exits",
	Run:   runOnce,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, appLogger, cleanup := bootstrap()
	defer cleanup()

	if err := svc.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start signal service", logger.ErrorField(err))
	}

	<-ctx.Done()
	appLogger.Info("Shutting down signal service...")
	svc.Stop()
	appLogger.Info("Signal service exiting")
}

func runOnce(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, appLogger, cleanup := bootstrap()
	defer cleanup()

	appLogger.Info("Running one evaluation pass")
	svc.EvaluateAll(ctx)
}

func bootstrap() (service.SignalService, *logger.Logger, func()) {
	cfg, err := signalcfg.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger.Info("Starting Signal Service", logger.Field("name", cfg.App.Name))

	db, err := postgres.NewDB(postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}

	cleanup := func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = redisClient.Close()
		_ = appLogger.Sync()
	}

	var notifier telegram.Notifier
	if cfg.Telegram.BotToken != "" {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	}

	var quoteRepo repository.QuoteRepository
	if cfg.Signal.QuoteBaseURL != "" {
		quoteRepo, err = repository.NewQuoteRepository(cfg.Signal.QuoteBaseURL, cfg.Signal.QuoteMaxRequestsMin, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize quote repository", logger.ErrorField(err))
		}
	}

	cacheTTL := time.Hour
	if cfg.Signal.SnapshotCacheTTL != "" {
		if ttl, err := time.ParseDuration(cfg.Signal.SnapshotCacheTTL); err == nil {
			cacheTTL = ttl
		} else {
			appLogger.Warn("Invalid snapshot cache TTL, using default", logger.ErrorField(err))
		}
	}
	// Shared cache: multiple instances evaluating the same day hit Redis,
	// not Postgres.
	provider := repository.NewRedisCachingProvider(
		repository.NewMarketDataRepository(db.DB), redisClient.Client, cacheTTL)

	svc, err := service.NewSignalService(
		cfg,
		provider,
		repository.NewStockPositionsRepository(db.DB),
		repository.NewStockSignalRepository(db.DB),
		quoteRepo,
		redisClient,
		notifier,
		appLogger,
	)
	if err != nil {
		appLogger.Fatal("Failed to build signal service", logger.ErrorField(err))
	}
	return svc, appLogger, cleanup
}

func main() {
	rootCmd := &cobra.Command{Use: "signal-service"}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-signal.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd, onceCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing signal-service CLI: %s\n", err)
		os.Exit(1)
	}
}
