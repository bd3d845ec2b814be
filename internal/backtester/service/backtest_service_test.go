package service

import (
	"context"
	"testing"
	"time"

	"golang-stock-backtester/internal/backtester/dto"
	"golang-stock-backtester/internal/backtester/repository"
	"golang-stock-backtester/internal/backtester/strategy"
	"golang-stock-backtester/internal/domain"
	"golang-stock-backtester/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDay(d int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

// history builds a flat-price snapshot: open and close both at price.
func history(ticker string, days int, price float64) *domain.Snapshot {
	snap := &domain.Snapshot{Ticker: ticker, AsOf: testDay(days - 1)}
	for i := 0; i < days; i++ {
		snap.Prices = append(snap.Prices, domain.PriceBar{
			Date: testDay(i), Open: price, High: price, Low: price, Close: price, Volume: 1000,
		})
	}
	return snap
}

func provider(t *testing.T, snaps ...*domain.Snapshot) repository.SnapshotProvider {
	t.Helper()
	m := make(map[string]*domain.Snapshot, len(snaps))
	for _, s := range snaps {
		m[s.Ticker] = s
	}
	p, err := repository.NewMemoryProvider(m)
	require.NoError(t, err)
	return p
}

// scriptedEntry buys when the as-of date is in its schedule.
type scriptedEntry struct {
	buyOn      map[string]bool
	confidence float64
}

func (s *scriptedEntry) Name() string { return "scripted-entry" }

func (s *scriptedEntry) DecideEntry(snap *domain.Snapshot) domain.EntrySignal {
	if s.buyOn[snap.AsOf.Format("2006-01-02")] {
		conf := s.confidence
		if conf == 0 {
			conf = 0.8
		}
		return domain.EntrySignal{Action: domain.ActionBuy, Confidence: conf, Strategy: s.Name()}
	}
	return domain.EntrySignal{Action: domain.ActionHold, Strategy: s.Name()}
}

// scriptedExit emits a fixed action when the as-of date is in its schedule.
type scriptedExit struct {
	actOn  map[string]domain.Action
	signal func(domain.Action) domain.ExitSignal
}

func (s *scriptedExit) Name() string { return "scripted-exit" }

func (s *scriptedExit) EvaluateExit(_ *domain.Position, snap *domain.Snapshot) domain.ExitSignal {
	action, ok := s.actOn[snap.AsOf.Format("2006-01-02")]
	if !ok {
		return domain.HoldExit()
	}
	if s.signal != nil {
		return s.signal(action)
	}
	return domain.ExitSignal{Action: action, Urgency: domain.UrgencyMedium, Layer: "scripted", Reasons: []string{"scripted"}}
}

func onDay(d int) string { return testDay(d).Format("2006-01-02") }

func newTestBacktest(t *testing.T, snaps ...*domain.Snapshot) BacktestService {
	t.Helper()
	return NewBacktestService(provider(t, snaps...), NewMetricsCalculator(), logger.NewNop())
}

func TestBacktestFillsAtNextOpen(t *testing.T) {
	snap := history("7203", 10, 100)
	// Make day 3's open distinguishable from every close.
	snap.Prices[3].Open = 105

	svc := newTestBacktest(t, snap)
	result, err := svc.Run(context.Background(), dto.BacktestRequest{
		Ticker:         "7203",
		Start:          testDay(0),
		End:            testDay(9),
		InitialCapital: 1_000_000,
		LotSize:        100,
		Entry:          &scriptedEntry{buyOn: map[string]bool{onDay(2): true}},
		Exit:           &scriptedExit{actOn: map[string]domain.Action{onDay(5): domain.ActionExit}},
	})
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, testDay(3), trade.EntryDate, "a day-2 BUY fills at day 3's open")
	assert.Equal(t, 105.0, trade.EntryPrice)
	assert.Equal(t, testDay(6), trade.ExitDate, "a day-5 EXIT fills at day 6's open")
	assert.Equal(t, 100.0, trade.ExitPrice)
	assert.False(t, trade.OpenAtEnd)

	// Quantity is lot-rounded from available cash at the fill price.
	assert.Equal(t, 9500, trade.Quantity, "1,000,000 / (105*100 lots) rounds down to 95 lots")
}

func TestBacktestForceClosesOpenAtEnd(t *testing.T) {
	snap := history("7203", 10, 100)

	svc := newTestBacktest(t, snap)
	result, err := svc.Run(context.Background(), dto.BacktestRequest{
		Ticker:         "7203",
		Start:          testDay(0),
		End:            testDay(9),
		InitialCapital: 100_000,
		LotSize:        100,
		Entry:          &scriptedEntry{buyOn: map[string]bool{onDay(2): true}},
		Exit:           &scriptedExit{},
	})
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.True(t, result.Trades[0].OpenAtEnd)
	assert.Equal(t, "open-at-end", result.Trades[0].ExitReason)
	assert.Equal(t, testDay(9), result.Trades[0].ExitDate)
	assert.InDelta(t, 100_000.0, result.FinalEquity, 1e-9, "flat prices leave equity unchanged")
}

func TestBacktestReduceHalvesWithLotRounding(t *testing.T) {
	snap := history("7203", 10, 100)

	svc := newTestBacktest(t, snap)
	result, err := svc.Run(context.Background(), dto.BacktestRequest{
		Ticker:         "7203",
		Start:          testDay(0),
		End:            testDay(9),
		InitialCapital: 30_000, // 3 lots
		LotSize:        100,
		Entry:          &scriptedEntry{buyOn: map[string]bool{onDay(1): true}},
		Exit:           &scriptedExit{actOn: map[string]domain.Action{onDay(4): domain.ActionReduce}},
	})
	require.NoError(t, err)

	// Half of 300 shares is 150, lot-rounded down to 100.
	require.Len(t, result.Reductions, 1)
	assert.Equal(t, 100, result.Reductions[0].Quantity)
	assert.Equal(t, testDay(5), result.Reductions[0].Date, "the reduce fills at the next open")

	// The remaining 200 shares are force-closed at the end.
	require.Len(t, result.Trades, 1)
	assert.Equal(t, 200, result.Trades[0].Quantity)
	assert.True(t, result.Trades[0].OpenAtEnd)
}

func TestBacktestNeverHoldsTwoPositions(t *testing.T) {
	snap := history("7203", 10, 100)

	// Signal BUY every day; the engine must ignore signals while holding.
	buyAll := make(map[string]bool)
	for i := 0; i < 10; i++ {
		buyAll[onDay(i)] = true
	}
	svc := newTestBacktest(t, snap)
	result, err := svc.Run(context.Background(), dto.BacktestRequest{
		Ticker:         "7203",
		Start:          testDay(0),
		End:            testDay(9),
		InitialCapital: 100_000,
		LotSize:        100,
		Entry:          &scriptedEntry{buyOn: buyAll},
		Exit:           &scriptedExit{},
	})
	require.NoError(t, err)
	assert.Len(t, result.Trades, 1, "only one position can ever be open")
}

func TestBacktestSkipsGapDays(t *testing.T) {
	snap := history("7203", 10, 100)
	snap.Prices[4].Open = 0 // bad row

	svc := newTestBacktest(t, snap)
	result, err := svc.Run(context.Background(), dto.BacktestRequest{
		Ticker:         "7203",
		Start:          testDay(0),
		End:            testDay(9),
		InitialCapital: 100_000,
		LotSize:        100,
		Entry:          &scriptedEntry{},
		Exit:           &scriptedExit{},
	})
	require.NoError(t, err)
	require.Len(t, result.SkippedDays, 1)
	assert.Equal(t, testDay(4), result.SkippedDays[0])
	assert.Len(t, result.EquityCurve, 9, "skipped days produce no equity point")
}

func TestBacktestValidatesRequest(t *testing.T) {
	svc := newTestBacktest(t, history("7203", 10, 100))

	_, err := svc.Run(context.Background(), dto.BacktestRequest{
		Ticker: "", Start: testDay(0), End: testDay(9), InitialCapital: 1000,
		Entry: &scriptedEntry{}, Exit: &scriptedExit{},
	})
	assert.Error(t, err)

	_, err = svc.Run(context.Background(), dto.BacktestRequest{
		Ticker: "7203", Start: testDay(9), End: testDay(0), InitialCapital: 1000,
		Entry: &scriptedEntry{}, Exit: &scriptedExit{},
	})
	assert.Error(t, err)

	_, err = svc.Run(context.Background(), dto.BacktestRequest{
		Ticker: "7203", Start: testDay(0), End: testDay(9), InitialCapital: 0,
		Entry: &scriptedEntry{}, Exit: &scriptedExit{},
	})
	assert.Error(t, err)

	_, err = svc.Run(context.Background(), dto.BacktestRequest{
		Ticker: "7203", Start: testDay(0), End: testDay(9), InitialCapital: 1000,
	})
	assert.Error(t, err, "strategies are required")
}

func TestBacktestUnknownTicker(t *testing.T) {
	svc := newTestBacktest(t, history("7203", 10, 100))

	_, err := svc.Run(context.Background(), dto.BacktestRequest{
		Ticker: "9999", Start: testDay(0), End: testDay(9), InitialCapital: 1000,
		Entry: &scriptedEntry{}, Exit: &scriptedExit{},
	})
	assert.Error(t, err, "provider errors propagate")
}

func TestBacktestTightenStopPropagates(t *testing.T) {
	snap := history("7203", 10, 100)

	var sawTightened bool
	exit := &scriptedExit{
		actOn: map[string]domain.Action{
			onDay(3): domain.ActionHold,
			onDay(4): domain.ActionHold,
		},
		signal: func(domain.Action) domain.ExitSignal {
			sig := domain.HoldExit()
			sig.TightenStop = true
			return sig
		},
	}
	// Wrap to observe the position the engine passes on the later day.
	probe := &probeExit{inner: exit, onDate: onDay(4), observe: func(pos *domain.Position) {
		sawTightened = pos.StopTightened
	}}

	svc := newTestBacktest(t, snap)
	_, err := svc.Run(context.Background(), dto.BacktestRequest{
		Ticker:         "7203",
		Start:          testDay(0),
		End:            testDay(9),
		InitialCapital: 100_000,
		LotSize:        100,
		Entry:          &scriptedEntry{buyOn: map[string]bool{onDay(1): true}},
		Exit:           probe,
	})
	require.NoError(t, err)
	assert.True(t, sawTightened, "a tighten-stop request must persist on the position")
}

// probeExit lets a test inspect the position mid-run.
type probeExit struct {
	inner   strategy.ExitStrategy
	onDate  string
	observe func(*domain.Position)
}

func (p *probeExit) Name() string { return p.inner.Name() }

func (p *probeExit) EvaluateExit(pos *domain.Position, snap *domain.Snapshot) domain.ExitSignal {
	if snap.AsOf.Format("2006-01-02") == p.onDate {
		p.observe(pos)
	}
	return p.inner.EvaluateExit(pos, snap)
}
