package service

import (
	"context"
	"testing"

	"golang-stock-backtester/internal/backtester/dto"
	"golang-stock-backtester/internal/domain"
	"golang-stock-backtester/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickerEntry buys named tickers on a given day with per-ticker confidence.
type tickerEntry struct {
	day        string
	confidence map[string]float64
}

func (s *tickerEntry) Name() string { return "ticker-entry" }

func (s *tickerEntry) DecideEntry(snap *domain.Snapshot) domain.EntrySignal {
	conf, ok := s.confidence[snap.Ticker]
	if !ok || snap.AsOf.Format("2006-01-02") != s.day {
		return domain.EntrySignal{Action: domain.ActionHold, Strategy: s.Name()}
	}
	return domain.EntrySignal{Action: domain.ActionBuy, Confidence: conf, Strategy: s.Name()}
}

func defaultCaps() dto.PortfolioCaps {
	return dto.PortfolioCaps{
		MaxPositions:     5,
		MaxAllocationPct: 0.5,
		MinAllocationPct: 0,
		DefaultLotSize:   100,
	}
}

func newTestPortfolio(t *testing.T, snaps ...*domain.Snapshot) PortfolioService {
	t.Helper()
	return NewPortfolioService(provider(t, snaps...), NewMetricsCalculator(), logger.NewNop())
}

func TestPortfolioSharesOneCashBalance(t *testing.T) {
	svc := newTestPortfolio(t, history("7203", 10, 100), history("6758", 10, 100))

	result, err := svc.Run(context.Background(), dto.PortfolioRequest{
		Tickers:        []string{"6758", "7203"},
		Start:          testDay(0),
		End:            testDay(9),
		InitialCapital: 100_000,
		Caps:           defaultCaps(),
		Entry:          &tickerEntry{day: onDay(2), confidence: map[string]float64{"7203": 0.9, "6758": 0.8}},
		Exit:           &scriptedExit{},
	})
	require.NoError(t, err)

	// Each position gets at most 50% of equity; both fit within cash.
	assert.Len(t, result.Trades, 2)
	var invested int
	for _, trade := range result.Trades {
		assert.True(t, trade.OpenAtEnd)
		invested += trade.Quantity
	}
	assert.Equal(t, 1000, invested, "50,000 per ticker at 100 yen buys 500 shares each")
	assert.InDelta(t, 100_000.0, result.FinalEquity, 1e-9)
}

func TestPortfolioMaxPositionsRejectsLowestRanked(t *testing.T) {
	svc := newTestPortfolio(t, history("7203", 10, 100), history("6758", 10, 100))

	caps := defaultCaps()
	caps.MaxPositions = 1
	result, err := svc.Run(context.Background(), dto.PortfolioRequest{
		Tickers:        []string{"6758", "7203"},
		Start:          testDay(0),
		End:            testDay(9),
		InitialCapital: 100_000,
		Caps:           caps,
		Entry:          &tickerEntry{day: onDay(2), confidence: map[string]float64{"7203": 0.9, "6758": 0.8}},
		Exit:           &scriptedExit{},
	})
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, "7203", result.Trades[0].Ticker, "the higher-confidence candidate wins the slot")

	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "6758", result.Rejected[0].Ticker)
	assert.Contains(t, result.Rejected[0].Reason, "max positions")
}

func TestPortfolioTickerTieBreak(t *testing.T) {
	svc := newTestPortfolio(t, history("7203", 10, 100), history("6758", 10, 100))

	caps := defaultCaps()
	caps.MaxPositions = 1
	result, err := svc.Run(context.Background(), dto.PortfolioRequest{
		Tickers:        []string{"7203", "6758"},
		Start:          testDay(0),
		End:            testDay(9),
		InitialCapital: 100_000,
		Caps:           caps,
		Entry:          &tickerEntry{day: onDay(2), confidence: map[string]float64{"7203": 0.8, "6758": 0.8}},
		Exit:           &scriptedExit{},
	})
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, "6758", result.Trades[0].Ticker, "equal confidence and score break on ticker order")
}

func TestPortfolioRejectsBelowMinAllocation(t *testing.T) {
	// 1,000 yen per share with lot 100 means one lot costs 100,000; a
	// 10,000 budget cannot buy a single lot.
	svc := newTestPortfolio(t, history("7203", 10, 1000))

	caps := defaultCaps()
	caps.MaxAllocationPct = 0.1
	result, err := svc.Run(context.Background(), dto.PortfolioRequest{
		Tickers:        []string{"7203"},
		Start:          testDay(0),
		End:            testDay(9),
		InitialCapital: 100_000,
		Caps:           caps,
		Entry:          &tickerEntry{day: onDay(2), confidence: map[string]float64{"7203": 0.9}},
		Exit:           &scriptedExit{},
	})
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	require.NotEmpty(t, result.Rejected)
	assert.Contains(t, result.Rejected[0].Reason, "lot")
}

func TestPortfolioExitsFreeCashForEntries(t *testing.T) {
	svc := newTestPortfolio(t, history("7203", 10, 100), history("6758", 10, 100))

	caps := defaultCaps()
	caps.MaxAllocationPct = 1.0
	// 7203 enters on day 1 taking nearly all cash, exits on day 4; 6758
	// signals on day 4 and must be fundable by the freed cash on day 5.
	result, err := svc.Run(context.Background(), dto.PortfolioRequest{
		Tickers:        []string{"7203", "6758"},
		Start:          testDay(0),
		End:            testDay(9),
		InitialCapital: 100_000,
		Caps:           caps,
		Entry: &twoPhaseEntry{
			first: tickerEntry{day: onDay(0), confidence: map[string]float64{"7203": 0.9}},
			then:  tickerEntry{day: onDay(4), confidence: map[string]float64{"6758": 0.9}},
		},
		Exit: &scriptedExit{actOn: map[string]domain.Action{onDay(4): domain.ActionExit}},
	})
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	byTicker := map[string]domain.TradeRecord{}
	for _, trade := range result.Trades {
		byTicker[trade.Ticker] = trade
	}
	assert.Equal(t, testDay(5), byTicker["7203"].ExitDate)
	assert.Equal(t, testDay(5), byTicker["6758"].EntryDate, "the freed cash funds the new entry the same morning")
	assert.Equal(t, 1000, byTicker["6758"].Quantity)
}

type twoPhaseEntry struct {
	first tickerEntry
	then  tickerEntry
}

func (s *twoPhaseEntry) Name() string { return "two-phase" }

func (s *twoPhaseEntry) DecideEntry(snap *domain.Snapshot) domain.EntrySignal {
	if sig := s.first.DecideEntry(snap); sig.Action == domain.ActionBuy {
		return sig
	}
	return s.then.DecideEntry(snap)
}

func TestPortfolioValidatesRequest(t *testing.T) {
	svc := newTestPortfolio(t, history("7203", 10, 100))
	base := dto.PortfolioRequest{
		Tickers:        []string{"7203"},
		Start:          testDay(0),
		End:            testDay(9),
		InitialCapital: 100_000,
		Caps:           defaultCaps(),
		Entry:          &tickerEntry{},
		Exit:           &scriptedExit{},
	}

	req := base
	req.Tickers = nil
	_, err := svc.Run(context.Background(), req)
	assert.Error(t, err)

	req = base
	req.Tickers = []string{"7203", "7203"}
	_, err = svc.Run(context.Background(), req)
	assert.Error(t, err, "duplicate tickers are rejected")

	req = base
	req.Caps.MaxAllocationPct = 1.5
	_, err = svc.Run(context.Background(), req)
	assert.Error(t, err)

	req = base
	req.Caps.MinAllocationPct = 0.9
	_, err = svc.Run(context.Background(), req)
	assert.Error(t, err, "min above max is rejected")
}

func TestPortfolioProviderErrorFailsRun(t *testing.T) {
	svc := newTestPortfolio(t, history("7203", 10, 100))

	_, err := svc.Run(context.Background(), dto.PortfolioRequest{
		Tickers:        []string{"7203", "9999"},
		Start:          testDay(0),
		End:            testDay(9),
		InitialCapital: 100_000,
		Caps:           defaultCaps(),
		Entry:          &tickerEntry{},
		Exit:           &scriptedExit{},
	})
	assert.Error(t, err, "a missing ticker fails the whole run")
}
