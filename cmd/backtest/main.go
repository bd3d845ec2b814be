package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-stock-backtester/internal/backtester/config"
	delivery "golang-stock-backtester/internal/backtester/delivery/http"
	"golang-stock-backtester/internal/backtester/dto"
	"golang-stock-backtester/internal/backtester/repository"
	"golang-stock-backtester/internal/backtester/service"
	"golang-stock-backtester/internal/backtester/strategy"
	"golang-stock-backtester/pkg/logger"
	"golang-stock-backtester/pkg/postgres"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

var (
	configPath string

	runTicker   string
	runTickers  []string
	runStart    string
	runEnd      string
	runCapital  float64
	runLot      int
	runEntry    string
	runExit     string
	runMaxPos   int
	runMaxAlloc float64
	runMinAlloc float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs a single-ticker backtest and prints the result as JSON",
	Run:   runBacktest,
}

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Runs a multi-ticker portfolio backtest and prints the result as JSON",
	Run:   runPortfolio,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the backtest HTTP service",
	Run:   runServe,
}

// bootstrap loads configuration and wires the replay engines against the
// Postgres data lake with an in-process snapshot cache.
func bootstrap() (*config.Config, *logger.Logger, service.BacktestService, service.PortfolioService, service.BatchService, func()) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

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
	cleanup := func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = appLogger.Sync()
	}

	cacheTTL := 15 * time.Minute
	if cfg.Backtester.SnapshotCacheTTL != "" {
		if ttl, err := time.ParseDuration(cfg.Backtester.SnapshotCacheTTL); err == nil {
			cacheTTL = ttl
		} else {
			appLogger.Warn("Invalid snapshot cache TTL, using default", logger.ErrorField(err))
		}
	}
	provider := repository.NewCachingProvider(repository.NewMarketDataRepository(db.DB), cacheTTL)

	metrics := service.NewMetricsCalculator()
	backtestSvc := service.NewBacktestService(provider, metrics, appLogger)
	portfolioSvc := service.NewPortfolioService(provider, metrics, appLogger)
	batchSvc := service.NewBatchService(backtestSvc, appLogger)
	return cfg, appLogger, backtestSvc, portfolioSvc, batchSvc, cleanup
}

func runBacktest(cmd *cobra.Command, args []string) {
	_, appLogger, backtestSvc, _, _, cleanup := bootstrap()
	defer cleanup()

	start, end := parseRangeOrDie(appLogger)
	registry := strategy.NewRegistry()
	entry, err := registry.NewEntry(runEntry, nil)
	if err != nil {
		appLogger.Fatal("Failed to build entry strategy", logger.ErrorField(err))
	}
	exit, err := registry.NewExit(runExit, nil)
	if err != nil {
		appLogger.Fatal("Failed to build exit strategy", logger.ErrorField(err))
	}

	result, err := backtestSvc.Run(context.Background(), dto.BacktestRequest{
		Ticker:         runTicker,
		Start:          start,
		End:            end,
		InitialCapital: runCapital,
		LotSize:        runLot,
		Entry:          entry,
		Exit:           exit,
	})
	if err != nil {
		appLogger.Fatal("Backtest failed", logger.ErrorField(err))
	}
	printJSON(result)
}

func runPortfolio(cmd *cobra.Command, args []string) {
	cfg, appLogger, _, portfolioSvc, _, cleanup := bootstrap()
	defer cleanup()

	start, end := parseRangeOrDie(appLogger)
	registry := strategy.NewRegistry()
	entry, err := registry.NewEntry(runEntry, nil)
	if err != nil {
		appLogger.Fatal("Failed to build entry strategy", logger.ErrorField(err))
	}
	exit, err := registry.NewExit(runExit, nil)
	if err != nil {
		appLogger.Fatal("Failed to build exit strategy", logger.ErrorField(err))
	}

	result, err := portfolioSvc.Run(context.Background(), dto.PortfolioRequest{
		Tickers:        runTickers,
		Start:          start,
		End:            end,
		InitialCapital: runCapital,
		Caps: dto.PortfolioCaps{
			MaxPositions:     runMaxPos,
			MaxAllocationPct: runMaxAlloc,
			MinAllocationPct: runMinAlloc,
			DefaultLotSize:   cfg.Backtester.DefaultLotSize,
		},
		Entry: entry,
		Exit:  exit,
	})
	if err != nil {
		appLogger.Fatal("Portfolio backtest failed", logger.ErrorField(err))
	}
	printJSON(result)
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, appLogger, backtestSvc, portfolioSvc, batchSvc, cleanup := bootstrap()
	defer cleanup()

	appLogger.Info("Starting Backtest Service", logger.Field("name", cfg.App.Name))

	e := echo.New()
	e.HideBanner = true

	handler := delivery.NewBacktestHandler(backtestSvc, portfolioSvc, batchSvc, appLogger)
	handler.RegisterRoutes(e.Group("/api/v1/backtests"))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}
	appLogger.Info("Server exiting")
}

func parseRangeOrDie(appLogger *logger.Logger) (time.Time, time.Time) {
	start, err := time.Parse("2006-01-02", runStart)
	if err != nil {
		appLogger.Fatal("Invalid start date, expected YYYY-MM-DD", logger.ErrorField(err))
	}
	end, err := time.Parse("2006-01-02", runEnd)
	if err != nil {
		appLogger.Fatal("Invalid end date, expected YYYY-MM-DD", logger.ErrorField(err))
	}
	return start, end
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(out))
}

func main() {
	rootCmd := &cobra.Command{Use: "backtest"}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-backtester.yaml", "Path to the configuration file")

	for _, c := range []*cobra.Command{runCmd, portfolioCmd} {
		c.Flags().StringVar(&runStart, "start", "", "Start date (YYYY-MM-DD)")
		c.Flags().StringVar(&runEnd, "end", "", "End date (YYYY-MM-DD)")
		c.Flags().Float64Var(&runCapital, "capital", 1_000_000, "Initial capital in yen")
		c.Flags().StringVar(&runEntry, "entry", strategy.EntryScore, "Entry strategy name")
		c.Flags().StringVar(&runExit, "exit", strategy.ExitLayered, "Exit strategy name")
	}
	runCmd.Flags().StringVar(&runTicker, "ticker", "", "Ticker to backtest")
	runCmd.Flags().IntVar(&runLot, "lot", 100, "Lot size")
	portfolioCmd.Flags().StringSliceVar(&runTickers, "tickers", nil, "Tickers to backtest")
	portfolioCmd.Flags().IntVar(&runMaxPos, "max-positions", 5, "Maximum simultaneous positions")
	portfolioCmd.Flags().Float64Var(&runMaxAlloc, "max-allocation", 0.3, "Maximum allocation per position (fraction of equity)")
	portfolioCmd.Flags().Float64Var(&runMinAlloc, "min-allocation", 0.05, "Minimum allocation per position (fraction of equity)")

	rootCmd.AddCommand(runCmd, portfolioCmd, serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing backtest CLI: %s\n", err)
		os.Exit(1)
	}
}
