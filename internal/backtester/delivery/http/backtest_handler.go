package http

import (
	"fmt"
	"net/http"
	"time"

	"golang-stock-backtester/internal/backtester/dto"
	"golang-stock-backtester/internal/backtester/service"
	"golang-stock-backtester/internal/backtester/strategy"
	"golang-stock-backtester/pkg/logger"

	"github.com/labstack/echo/v4"
)

// BacktestHandler handles HTTP requests for backtest runs.
type BacktestHandler struct {
	backtestService  service.BacktestService
	portfolioService service.PortfolioService
	batchService     service.BatchService
	logger           *logger.Logger
}

// NewBacktestHandler creates a new BacktestHandler.
func NewBacktestHandler(backtestService service.BacktestService, portfolioService service.PortfolioService, batchService service.BatchService, logger *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		backtestService:  backtestService,
		portfolioService: portfolioService,
		batchService:     batchService,
		logger:           logger,
	}
}

// RegisterRoutes registers the backtest routes to the Echo group.
func (h *BacktestHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/run", h.RunBacktest)
	g.POST("/portfolio", h.RunPortfolio)
	g.POST("/batch", h.RunBatch)
}

// RunBacktest runs one single-ticker replay. Strategy construction and date
// parsing failures are the caller's fault; run failures are not.
func (h *BacktestHandler) RunBacktest(c echo.Context) error {
	var req dto.RunBacktestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}

	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	registry := strategy.NewRegistry()
	entry, err := registry.NewEntry(req.EntryStrategy, req.EntryParams)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	exit, err := registry.NewExit(req.ExitStrategy, req.ExitParams)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.backtestService.Run(c.Request().Context(), dto.BacktestRequest{
		Ticker:         req.Ticker,
		Start:          start,
		End:            end,
		InitialCapital: req.InitialCapital,
		LotSize:        req.LotSize,
		Entry:          entry,
		Exit:           exit,
	})
	if err != nil {
		h.logger.Error("Backtest run failed", logger.ErrorField(err), logger.StringField("ticker", req.Ticker))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// RunPortfolio runs a multi-ticker replay over shared cash.
func (h *BacktestHandler) RunPortfolio(c echo.Context) error {
	var req dto.RunPortfolioRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}

	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	registry := strategy.NewRegistry()
	entry, err := registry.NewEntry(req.EntryStrategy, req.EntryParams)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	exit, err := registry.NewExit(req.ExitStrategy, req.ExitParams)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.portfolioService.Run(c.Request().Context(), dto.PortfolioRequest{
		Tickers:        req.Tickers,
		Start:          start,
		End:            end,
		InitialCapital: req.InitialCapital,
		Caps: dto.PortfolioCaps{
			MaxPositions:     req.MaxPositions,
			MaxAllocationPct: req.MaxAllocationPct,
			MinAllocationPct: req.MinAllocationPct,
			DefaultLotSize:   req.DefaultLotSize,
			LotSizes:         req.LotSizes,
		},
		Entry: entry,
		Exit:  exit,
	})
	if err != nil {
		h.logger.Error("Portfolio run failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// RunBatch evaluates many (ticker, strategy) combinations.
func (h *BacktestHandler) RunBatch(c echo.Context) error {
	var req dto.RunBatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}

	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	result, err := h.batchService.Run(c.Request().Context(), dto.BatchRequest{
		Start:          start,
		End:            end,
		InitialCapital: req.InitialCapital,
		LotSize:        req.LotSize,
		Workers:        req.Workers,
		Units:          req.Units,
	})
	if err != nil {
		h.logger.Error("Batch run failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q, expected YYYY-MM-DD", startStr)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q, expected YYYY-MM-DD", endStr)
	}
	return start, end, nil
}
