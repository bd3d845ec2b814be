package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdatePeakNeverFalls(t *testing.T) {
	pos := NewPosition("7203", 1000, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 80, 100, 20)
	assert.Equal(t, 1000.0, pos.PeakPrice, "peak starts at entry")

	pos.UpdatePeak(1100)
	assert.Equal(t, 1100.0, pos.PeakPrice)

	pos.UpdatePeak(900)
	assert.Equal(t, 1100.0, pos.PeakPrice, "a lower price never lowers the peak")

	pos.UpdatePeak(1100)
	assert.Equal(t, 1100.0, pos.PeakPrice)
}

func TestHoldingDaysAndGain(t *testing.T) {
	entry := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	pos := NewPosition("7203", 1000, entry, 80, 100, 20)

	assert.Equal(t, 0, pos.HoldingDays(entry))
	assert.Equal(t, 90, pos.HoldingDays(entry.AddDate(0, 0, 90)))
	assert.Equal(t, 0, pos.HoldingDays(entry.AddDate(0, 0, -5)), "dates before entry clamp to zero")

	assert.InDelta(t, 0.25, pos.GainPct(1250), 1e-9)
	assert.InDelta(t, -0.10, pos.GainPct(900), 1e-9)
}

func TestPositionValidate(t *testing.T) {
	entry := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	pos := NewPosition("7203", 1000, entry, 80, 100, 20)
	require.NoError(t, pos.Validate())

	broken := *pos
	broken.PeakPrice = 999
	err := broken.Validate()
	require.Error(t, err)
	var inv *InvariantViolationError
	require.True(t, errors.As(err, &inv))
	assert.Contains(t, inv.Invariant, "peak price")
	assert.NotEmpty(t, inv.StateDump, "violations carry a state dump")

	broken = *pos
	broken.Quantity = -100
	require.Error(t, broken.Validate())

	broken = *pos
	broken.EntryPrice = 0
	broken.PeakPrice = 0
	require.Error(t, broken.Validate())
}

func TestCloseTrade(t *testing.T) {
	entry := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	exitDate := entry.AddDate(0, 0, 30)
	pos := NewPosition("7203", 1000, entry, 80, 200, 20)

	trade := CloseTrade(pos, 1100, exitDate, "trailing-stop: hit", false)
	assert.Equal(t, "7203", trade.Ticker)
	assert.Equal(t, 30, trade.HoldingDays)
	assert.InDelta(t, 20000.0, trade.ProfitLoss, 1e-9)
	assert.False(t, trade.OpenAtEnd)

	forced := CloseTrade(pos, 900, exitDate, "open-at-end", true)
	assert.True(t, forced.OpenAtEnd)
	assert.InDelta(t, -20000.0, forced.ProfitLoss, 1e-9)
}

func TestPortfolioStateValidate(t *testing.T) {
	state := NewPortfolioState(1_000_000)
	require.NoError(t, state.Validate())

	state.Cash = -1
	err := state.Validate()
	require.Error(t, err)
	var inv *InvariantViolationError
	require.True(t, errors.As(err, &inv))
	assert.Contains(t, inv.Invariant, "negative cash")
}

func TestPortfolioEquity(t *testing.T) {
	state := NewPortfolioState(100_000)
	entry := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	state.Positions["7203"] = NewPosition("7203", 1000, entry, 80, 100, 20)
	state.Cash = 0

	equity := state.Equity(map[string]float64{"7203": 1100})
	assert.InDelta(t, 110_000.0, equity, 1e-9)
}
