package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang-stock-backtester/internal/backtester/dto"
	"golang-stock-backtester/internal/backtester/repository"
	"golang-stock-backtester/internal/backtester/strategy"
	"golang-stock-backtester/internal/domain"
	"golang-stock-backtester/internal/indicator"
	"golang-stock-backtester/pkg/logger"
)

// BacktestService replays one ticker through an entry strategy and an exit
// cascade over a date range.
type BacktestService interface {
	Run(ctx context.Context, req dto.BacktestRequest) (*dto.BacktestResult, error)
}

type backtestService struct {
	provider repository.SnapshotProvider
	metrics  MetricsCalculator
	log      *logger.Logger
}

// NewBacktestService creates the single-ticker replay engine.
func NewBacktestService(provider repository.SnapshotProvider, metrics MetricsCalculator, log *logger.Logger) BacktestService {
	return &backtestService{provider: provider, metrics: metrics, log: log}
}

// pendingOrder is a decision made at a close, to be filled at the next open.
type pendingOrder struct {
	action domain.Action
	reason string
	score  float64
}

func (s *backtestService) Run(ctx context.Context, req dto.BacktestRequest) (*dto.BacktestResult, error) {
	if err := validateBacktestRequest(req); err != nil {
		return nil, err
	}
	lot := req.LotSize
	if lot <= 0 {
		lot = 100
	}

	full, err := s.provider.Get(ctx, req.Ticker, req.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", req.Ticker, err)
	}

	days := make([]domain.PriceBar, 0, len(full.Prices))
	for _, bar := range full.Prices {
		if !bar.Date.Before(req.Start) {
			days = append(days, bar)
		}
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no trading days for %s between %s and %s",
			req.Ticker, req.Start.Format("2006-01-02"), req.End.Format("2006-01-02"))
	}

	result := &dto.BacktestResult{
		Ticker:         req.Ticker,
		Start:          req.Start,
		End:            req.End,
		InitialCapital: req.InitialCapital,
	}
	cash := req.InitialCapital
	var pos *domain.Position
	var pending *pendingOrder
	var lastClose float64

	for _, bar := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if bar.Open <= 0 || bar.Close <= 0 {
			result.SkippedDays = append(result.SkippedDays, bar.Date)
			continue
		}
		view := full.View(bar.Date)

		// Fill phase: yesterday's decision executes at today's open.
		if pending != nil {
			switch pending.action {
			case domain.ActionBuy:
				qty := int(cash/(bar.Open*float64(lot))) * lot
				if qty > 0 {
					entryATR := indicator.ATR(view.Prices, strategy.DefaultExitConfig().ATRPeriod)
					pos = domain.NewPosition(req.Ticker, bar.Open, bar.Date, pending.score, qty, entryATR)
					cash -= bar.Open * float64(qty)
				} else {
					s.log.Debug("Entry order dropped, cash below one lot",
						logger.StringField("ticker", req.Ticker),
						logger.StringField("date", bar.Date.Format("2006-01-02")))
				}
			case domain.ActionReduce:
				if pos != nil {
					sellQty := pos.Quantity / 2 / lot * lot
					if sellQty > 0 && sellQty < pos.Quantity {
						cash += bar.Open * float64(sellQty)
						pos.Quantity -= sellQty
						result.Reductions = append(result.Reductions, dto.ReductionRecord{
							Ticker:   req.Ticker,
							Date:     bar.Date,
							Quantity: sellQty,
							Price:    bar.Open,
							Reason:   pending.reason,
						})
					}
				}
			case domain.ActionExit:
				if pos != nil {
					cash += bar.Open * float64(pos.Quantity)
					result.Trades = append(result.Trades, domain.CloseTrade(pos, bar.Open, bar.Date, pending.reason, false))
					pos = nil
				}
			}
			pending = nil
		}

		// Decision phase at the close.
		if pos != nil {
			pos.UpdatePeak(bar.Close)
			if err := pos.Validate(); err != nil {
				return nil, err
			}
			sig := req.Exit.EvaluateExit(pos, view)
			if sig.TightenStop {
				pos.StopTightened = true
			}
			switch sig.Action {
			case domain.ActionExit:
				pending = &pendingOrder{action: domain.ActionExit, reason: exitReason(sig)}
			case domain.ActionReduce:
				pending = &pendingOrder{action: domain.ActionReduce, reason: exitReason(sig)}
			}
		} else if pending == nil {
			sig := req.Entry.DecideEntry(view)
			if sig.Action == domain.ActionBuy {
				pending = &pendingOrder{action: domain.ActionBuy, score: entryScore(sig)}
			}
		}

		if cash < 0 {
			return nil, domain.NewInvariantViolation("negative cash balance", map[string]interface{}{
				"ticker": req.Ticker, "date": bar.Date, "cash": cash,
			})
		}
		lastClose = bar.Close
		equity := cash
		if pos != nil {
			equity += float64(pos.Quantity) * bar.Close
		}
		result.EquityCurve = append(result.EquityCurve, dto.EquityPoint{Date: bar.Date, Equity: equity})
	}

	// A position still open at the end of the window is closed at the last
	// close and its trade tagged so it is auditable as unrealized.
	if pos != nil {
		lastDay := result.EquityCurve[len(result.EquityCurve)-1].Date
		cash += lastClose * float64(pos.Quantity)
		result.Trades = append(result.Trades, domain.CloseTrade(pos, lastClose, lastDay, "open-at-end", true))
		pos = nil
	}

	result.FinalEquity = cash
	result.Metrics = s.metrics.Calculate(req.InitialCapital, result.EquityCurve, result.Trades)
	s.log.Info("Backtest finished",
		logger.StringField("ticker", req.Ticker),
		logger.IntField("trades", result.Metrics.Trades),
		logger.Float64Field("total_return_pct", result.Metrics.TotalReturnPct))
	return result, nil
}

func validateBacktestRequest(req dto.BacktestRequest) error {
	if req.Ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if req.End.Before(req.Start) {
		return fmt.Errorf("end date %s is before start date %s",
			req.End.Format("2006-01-02"), req.Start.Format("2006-01-02"))
	}
	if req.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive")
	}
	if req.Entry == nil {
		return fmt.Errorf("entry strategy is required")
	}
	if req.Exit == nil {
		return fmt.Errorf("exit strategy is required")
	}
	return nil
}

// entryScore extracts the composite score from a BUY signal, falling back to
// the confidence scaled to 0-100 for strategies that do not score.
func entryScore(sig domain.EntrySignal) float64 {
	if sig.Score != nil {
		return sig.Score.Composite
	}
	return sig.Confidence * 100
}

func exitReason(sig domain.ExitSignal) string {
	if len(sig.Reasons) == 0 {
		return sig.Layer
	}
	return fmt.Sprintf("%s: %s", sig.Layer, strings.Join(sig.Reasons, "; "))
}

// dateKey normalizes a bar timestamp to its calendar day for map lookups.
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
