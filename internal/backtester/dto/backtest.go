package dto

import (
	"time"

	"golang-stock-backtester/internal/backtester/strategy"
	"golang-stock-backtester/internal/domain"
)

// BacktestRequest drives one single-ticker replay.
type BacktestRequest struct {
	Ticker         string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	LotSize        int
	Entry          strategy.EntryStrategy
	Exit           strategy.ExitStrategy
}

// EquityPoint is one day of the equity curve.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// ReductionRecord logs a partial sale so sold quantity can be audited
// against bought quantity.
type ReductionRecord struct {
	Ticker   string    `json:"ticker"`
	Date     time.Time `json:"date"`
	Quantity int       `json:"quantity"`
	Price    float64   `json:"price"`
	Reason   string    `json:"reason"`
}

// Metrics summarizes a run. TradeStatsUndefined marks the trade-derived
// fields as meaningless for a zero-trade ledger.
type Metrics struct {
	TotalReturnPct      float64 `json:"total_return_pct"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`
	WinRate             float64 `json:"win_rate"`
	Expectancy          float64 `json:"expectancy"`
	AvgWin              float64 `json:"avg_win"`
	AvgLoss             float64 `json:"avg_loss"`
	Trades              int     `json:"trades"`
	Wins                int     `json:"wins"`
	Losses              int     `json:"losses"`
	TradeStatsUndefined bool    `json:"trade_stats_undefined"`
}

// BacktestResult is the outcome of one single-ticker replay.
type BacktestResult struct {
	Ticker         string               `json:"ticker"`
	Start          time.Time            `json:"start"`
	End            time.Time            `json:"end"`
	InitialCapital float64              `json:"initial_capital"`
	FinalEquity    float64              `json:"final_equity"`
	Trades         []domain.TradeRecord `json:"trades"`
	Reductions     []ReductionRecord    `json:"reductions"`
	EquityCurve    []EquityPoint        `json:"equity_curve"`
	SkippedDays    []time.Time          `json:"skipped_days"`
	Metrics        Metrics              `json:"metrics"`
}

// PortfolioCaps are the capital constraints of a portfolio run.
type PortfolioCaps struct {
	MaxPositions     int
	MaxAllocationPct float64
	MinAllocationPct float64
	DefaultLotSize   int
	LotSizes         map[string]int
}

// LotSize resolves the lot for a ticker, falling back to the default.
func (c PortfolioCaps) LotSize(ticker string) int {
	if lot, ok := c.LotSizes[ticker]; ok && lot > 0 {
		return lot
	}
	if c.DefaultLotSize > 0 {
		return c.DefaultLotSize
	}
	return 100
}

// PortfolioRequest drives one multi-ticker replay over shared cash.
type PortfolioRequest struct {
	Tickers        []string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	Caps           PortfolioCaps
	Entry          strategy.EntryStrategy
	Exit           strategy.ExitStrategy
}

// RejectedEntry logs a BUY candidate turned away by a cap.
type RejectedEntry struct {
	Date   time.Time `json:"date"`
	Ticker string    `json:"ticker"`
	Reason string    `json:"reason"`
}

// PortfolioResult is the outcome of one portfolio replay.
type PortfolioResult struct {
	Start          time.Time            `json:"start"`
	End            time.Time            `json:"end"`
	InitialCapital float64              `json:"initial_capital"`
	FinalEquity    float64              `json:"final_equity"`
	Trades         []domain.TradeRecord `json:"trades"`
	Reductions     []ReductionRecord    `json:"reductions"`
	EquityCurve    []EquityPoint        `json:"equity_curve"`
	SkippedDays    []time.Time          `json:"skipped_days"`
	Rejected       []RejectedEntry      `json:"rejected_entries"`
	Metrics        Metrics              `json:"metrics"`
}

// BatchRequest evaluates many (ticker, strategy) combinations over a shared
// window, each as an independent single-ticker replay.
type BatchRequest struct {
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	InitialCapital float64     `json:"initial_capital"`
	LotSize        int         `json:"lot_size"`
	Workers        int         `json:"workers"`
	Units          []BatchUnit `json:"units"`
}

// BatchUnit is one independent (ticker, strategy combination) evaluation.
type BatchUnit struct {
	Ticker      string                 `json:"ticker"`
	EntryName   string                 `json:"entry_name"`
	EntryParams map[string]interface{} `json:"entry_params,omitempty"`
	ExitName    string                 `json:"exit_name"`
	ExitParams  map[string]interface{} `json:"exit_params,omitempty"`
}

// BatchUnitResult holds one unit's outcome; Err is set when the unit failed.
type BatchUnitResult struct {
	Unit   BatchUnit       `json:"unit"`
	Result *BacktestResult `json:"result,omitempty"`
	Err    string          `json:"error,omitempty"`
}

// BatchResult aggregates a multi-unit evaluation. Partial is true when the
// run was cancelled before all units finished; completed units are kept.
type BatchResult struct {
	Units   []BatchUnitResult `json:"units"`
	Partial bool              `json:"partial"`
}
