package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang-stock-backtester/internal/backtester/dto"
	"golang-stock-backtester/internal/backtester/repository"
	"golang-stock-backtester/internal/backtester/strategy"
	"golang-stock-backtester/internal/domain"
	"golang-stock-backtester/internal/indicator"
	"golang-stock-backtester/pkg/logger"
)

// PortfolioService replays many tickers against one shared cash balance,
// enforcing position-count and allocation caps.
type PortfolioService interface {
	Run(ctx context.Context, req dto.PortfolioRequest) (*dto.PortfolioResult, error)
}

type portfolioService struct {
	provider repository.SnapshotProvider
	metrics  MetricsCalculator
	log      *logger.Logger
}

// NewPortfolioService creates the multi-ticker replay engine.
func NewPortfolioService(provider repository.SnapshotProvider, metrics MetricsCalculator, log *logger.Logger) PortfolioService {
	return &portfolioService{provider: provider, metrics: metrics, log: log}
}

// entryCandidate is one BUY signal waiting for a capital slot.
type entryCandidate struct {
	ticker     string
	confidence float64
	score      float64
}

func (s *portfolioService) Run(ctx context.Context, req dto.PortfolioRequest) (*dto.PortfolioResult, error) {
	if err := validatePortfolioRequest(req); err != nil {
		return nil, err
	}

	// Histories load once up front; a provider failure for any ticker fails
	// the whole run rather than replaying a partial universe.
	fulls := make(map[string]*domain.Snapshot, len(req.Tickers))
	bars := make(map[string]map[string]domain.PriceBar, len(req.Tickers))
	for _, ticker := range req.Tickers {
		full, err := s.provider.Get(ctx, ticker, req.End)
		if err != nil {
			return nil, fmt.Errorf("failed to load history for %s: %w", ticker, err)
		}
		fulls[ticker] = full
		byDay := make(map[string]domain.PriceBar, len(full.Prices))
		for _, bar := range full.Prices {
			if !bar.Date.Before(req.Start) {
				byDay[dateKey(bar.Date)] = bar
			}
		}
		bars[ticker] = byDay
	}
	calendar := unionCalendar(fulls, req.Start)
	if len(calendar) == 0 {
		return nil, fmt.Errorf("no trading days between %s and %s",
			req.Start.Format("2006-01-02"), req.End.Format("2006-01-02"))
	}

	result := &dto.PortfolioResult{
		Start:          req.Start,
		End:            req.End,
		InitialCapital: req.InitialCapital,
	}
	state := domain.NewPortfolioState(req.InitialCapital)
	pendings := make(map[string]*pendingOrder)
	lastClose := make(map[string]float64)

	for _, day := range calendar {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := dateKey(day)

		// Fill phase. Exits run before entries so freed cash is available
		// the same morning. Ticker order keeps fills deterministic.
		gapped := false
		for _, ticker := range req.Tickers {
			pending := pendings[ticker]
			if pending == nil || pending.action == domain.ActionBuy {
				continue
			}
			bar, ok := bars[ticker][key]
			if !ok {
				// The order stays pending until this ticker trades again.
				gapped = true
				continue
			}
			s.fillSellSide(state, result, req.Caps, ticker, pending, bar, day)
			delete(pendings, ticker)
		}
		for _, ticker := range req.Tickers {
			pending := pendings[ticker]
			if pending == nil || pending.action != domain.ActionBuy {
				continue
			}
			bar, ok := bars[ticker][key]
			if !ok {
				gapped = true
				continue
			}
			s.fillEntry(state, result, req.Caps, fulls[ticker], ticker, pending, bar, day, lastClose)
			delete(pendings, ticker)
		}

		// Decision phase at the close.
		var candidates []entryCandidate
		for _, ticker := range req.Tickers {
			bar, ok := bars[ticker][key]
			if !ok {
				if _, held := state.Positions[ticker]; held {
					gapped = true
				}
				continue
			}
			lastClose[ticker] = bar.Close
			view := fulls[ticker].View(day)

			if pos, held := state.Positions[ticker]; held {
				pos.UpdatePeak(bar.Close)
				if err := pos.Validate(); err != nil {
					return nil, err
				}
				sig := req.Exit.EvaluateExit(pos, view)
				if sig.TightenStop {
					pos.StopTightened = true
				}
				if sig.Action == domain.ActionExit || sig.Action == domain.ActionReduce {
					pendings[ticker] = &pendingOrder{action: sig.Action, reason: exitReason(sig)}
				}
				continue
			}
			if pendings[ticker] != nil {
				continue
			}
			sig := req.Entry.DecideEntry(view)
			if sig.Action == domain.ActionBuy {
				candidates = append(candidates, entryCandidate{
					ticker:     ticker,
					confidence: sig.Confidence,
					score:      entryScore(sig),
				})
			}
		}
		s.rankAndSchedule(state, result, req.Caps, pendings, candidates, day)

		if gapped {
			result.SkippedDays = append(result.SkippedDays, day)
		}
		if err := state.Validate(); err != nil {
			return nil, err
		}
		result.EquityCurve = append(result.EquityCurve, dto.EquityPoint{Date: day, Equity: state.Equity(lastClose)})
	}

	// Force-close survivors at their last known close.
	for _, ticker := range sortedTickers(state.Positions) {
		pos := state.Positions[ticker]
		closePrice := lastClose[ticker]
		lastDay := calendar[len(calendar)-1]
		state.Cash += closePrice * float64(pos.Quantity)
		result.Trades = append(result.Trades, domain.CloseTrade(pos, closePrice, lastDay, "open-at-end", true))
		delete(state.Positions, ticker)
	}

	result.Trades = append(state.Trades, result.Trades...)
	result.FinalEquity = state.Cash
	result.Metrics = s.metrics.Calculate(req.InitialCapital, result.EquityCurve, result.Trades)
	s.log.Info("Portfolio backtest finished",
		logger.IntField("tickers", len(req.Tickers)),
		logger.IntField("trades", result.Metrics.Trades),
		logger.Float64Field("total_return_pct", result.Metrics.TotalReturnPct))
	return result, nil
}

func (s *portfolioService) fillSellSide(state *domain.PortfolioState, result *dto.PortfolioResult, caps dto.PortfolioCaps, ticker string, pending *pendingOrder, bar domain.PriceBar, day time.Time) {
	pos, held := state.Positions[ticker]
	if !held || bar.Open <= 0 {
		return
	}
	switch pending.action {
	case domain.ActionExit:
		state.Cash += bar.Open * float64(pos.Quantity)
		state.Trades = append(state.Trades, domain.CloseTrade(pos, bar.Open, day, pending.reason, false))
		delete(state.Positions, ticker)
	case domain.ActionReduce:
		lot := caps.LotSize(ticker)
		sellQty := pos.Quantity / 2 / lot * lot
		if sellQty > 0 && sellQty < pos.Quantity {
			state.Cash += bar.Open * float64(sellQty)
			pos.Quantity -= sellQty
			result.Reductions = append(result.Reductions, dto.ReductionRecord{
				Ticker:   ticker,
				Date:     day,
				Quantity: sellQty,
				Price:    bar.Open,
				Reason:   pending.reason,
			})
		}
	}
}

func (s *portfolioService) fillEntry(state *domain.PortfolioState, result *dto.PortfolioResult, caps dto.PortfolioCaps, full *domain.Snapshot, ticker string, pending *pendingOrder, bar domain.PriceBar, day time.Time, lastClose map[string]float64) {
	if bar.Open <= 0 {
		return
	}
	if len(state.Positions) >= caps.MaxPositions {
		result.Rejected = append(result.Rejected, dto.RejectedEntry{Date: day, Ticker: ticker, Reason: "max positions reached"})
		return
	}
	equity := state.Equity(lastClose)
	budget := caps.MaxAllocationPct * equity
	if state.Cash < budget {
		budget = state.Cash
	}
	lot := caps.LotSize(ticker)
	qty := int(budget/(bar.Open*float64(lot))) * lot
	cost := bar.Open * float64(qty)
	if qty <= 0 {
		result.Rejected = append(result.Rejected, dto.RejectedEntry{Date: day, Ticker: ticker, Reason: "allocation below one lot"})
		return
	}
	if cost < caps.MinAllocationPct*equity {
		result.Rejected = append(result.Rejected, dto.RejectedEntry{Date: day, Ticker: ticker, Reason: "allocation below minimum"})
		return
	}
	view := full.View(day)
	entryATR := indicator.ATR(view.Prices, strategy.DefaultExitConfig().ATRPeriod)
	state.Positions[ticker] = domain.NewPosition(ticker, bar.Open, day, pending.score, qty, entryATR)
	state.Cash -= cost
}

// rankAndSchedule orders BUY candidates by confidence, then composite score,
// then ticker, and schedules as many as open slots allow. Overflow is
// rejected outright rather than queued.
func (s *portfolioService) rankAndSchedule(state *domain.PortfolioState, result *dto.PortfolioResult, caps dto.PortfolioCaps, pendings map[string]*pendingOrder, candidates []entryCandidate, day time.Time) {
	if len(candidates) == 0 {
		return
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].confidence != candidates[j].confidence {
			return candidates[i].confidence > candidates[j].confidence
		}
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].ticker < candidates[j].ticker
	})

	slots := caps.MaxPositions - len(state.Positions)
	for _, pending := range pendings {
		if pending.action == domain.ActionBuy {
			slots--
		}
	}
	for _, cand := range candidates {
		if slots <= 0 {
			result.Rejected = append(result.Rejected, dto.RejectedEntry{Date: day, Ticker: cand.ticker, Reason: "max positions reached"})
			continue
		}
		pendings[cand.ticker] = &pendingOrder{action: domain.ActionBuy, score: cand.score}
		slots--
	}
}

func validatePortfolioRequest(req dto.PortfolioRequest) error {
	if len(req.Tickers) == 0 {
		return fmt.Errorf("at least one ticker is required")
	}
	seen := make(map[string]struct{}, len(req.Tickers))
	for _, ticker := range req.Tickers {
		if _, dup := seen[ticker]; dup {
			return fmt.Errorf("duplicate ticker %s", ticker)
		}
		seen[ticker] = struct{}{}
	}
	if req.End.Before(req.Start) {
		return fmt.Errorf("end date %s is before start date %s",
			req.End.Format("2006-01-02"), req.Start.Format("2006-01-02"))
	}
	if req.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive")
	}
	if req.Caps.MaxPositions <= 0 {
		return fmt.Errorf("max positions must be positive")
	}
	if req.Caps.MaxAllocationPct <= 0 || req.Caps.MaxAllocationPct > 1 {
		return fmt.Errorf("max allocation pct must be in (0, 1]")
	}
	if req.Caps.MinAllocationPct < 0 || req.Caps.MinAllocationPct > req.Caps.MaxAllocationPct {
		return fmt.Errorf("min allocation pct must be in [0, max allocation pct]")
	}
	if req.Entry == nil {
		return fmt.Errorf("entry strategy is required")
	}
	if req.Exit == nil {
		return fmt.Errorf("exit strategy is required")
	}
	return nil
}

// unionCalendar merges every ticker's trading days from start on, sorted
// ascending.
func unionCalendar(fulls map[string]*domain.Snapshot, start time.Time) []time.Time {
	seen := make(map[string]time.Time)
	for _, full := range fulls {
		for _, bar := range full.Prices {
			if bar.Date.Before(start) {
				continue
			}
			seen[dateKey(bar.Date)] = bar.Date
		}
	}
	days := make([]time.Time, 0, len(seen))
	for _, day := range seen {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func sortedTickers(positions map[string]*domain.Position) []string {
	tickers := make([]string, 0, len(positions))
	for ticker := range positions {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}
