package service

import (
	"context"
	"testing"

	"golang-stock-backtester/internal/backtester/dto"
	"golang-stock-backtester/internal/backtester/strategy"
	"golang-stock-backtester/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBatch(t *testing.T) BatchService {
	t.Helper()
	backtest := newTestBacktest(t, history("7203", 100, 100), history("6758", 100, 100))
	return NewBatchService(backtest, logger.NewNop())
}

func batchWindow(units ...dto.BatchUnit) dto.BatchRequest {
	return dto.BatchRequest{
		Start:          testDay(0),
		End:            testDay(99),
		InitialCapital: 1_000_000,
		LotSize:        100,
		Units:          units,
	}
}

func TestBatchRunsEveryUnit(t *testing.T) {
	svc := newTestBatch(t)

	result, err := svc.Run(context.Background(), batchWindow(
		dto.BatchUnit{Ticker: "7203", EntryName: strategy.EntryTechnical, ExitName: strategy.ExitLayered},
		dto.BatchUnit{Ticker: "6758", EntryName: strategy.EntryScore, ExitName: strategy.ExitLayered},
	))
	require.NoError(t, err)

	assert.False(t, result.Partial)
	require.Len(t, result.Units, 2)
	// Completed units keep the request order regardless of worker scheduling.
	assert.Equal(t, "7203", result.Units[0].Unit.Ticker)
	assert.Equal(t, "6758", result.Units[1].Unit.Ticker)
	for _, unit := range result.Units {
		assert.Empty(t, unit.Err)
		require.NotNil(t, unit.Result)
		assert.Len(t, unit.Result.EquityCurve, 100)
	}
}

func TestBatchIsolatesUnitFailures(t *testing.T) {
	svc := newTestBatch(t)

	result, err := svc.Run(context.Background(), batchWindow(
		dto.BatchUnit{Ticker: "7203", EntryName: "no-such-strategy", ExitName: strategy.ExitLayered},
		dto.BatchUnit{Ticker: "9999", EntryName: strategy.EntryTechnical, ExitName: strategy.ExitLayered},
		dto.BatchUnit{Ticker: "6758", EntryName: strategy.EntryTechnical, ExitName: strategy.ExitLayered},
	))
	require.NoError(t, err)

	assert.False(t, result.Partial)
	require.Len(t, result.Units, 3)
	assert.Contains(t, result.Units[0].Err, "unknown entry strategy")
	assert.NotEmpty(t, result.Units[1].Err, "an unknown ticker fails only its own unit")
	assert.Empty(t, result.Units[2].Err)
	assert.NotNil(t, result.Units[2].Result)
}

func TestBatchCancelledContextIsPartial(t *testing.T) {
	svc := newTestBatch(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Run(ctx, batchWindow(
		dto.BatchUnit{Ticker: "7203", EntryName: strategy.EntryTechnical, ExitName: strategy.ExitLayered},
		dto.BatchUnit{Ticker: "6758", EntryName: strategy.EntryTechnical, ExitName: strategy.ExitLayered},
	))
	require.NoError(t, err)

	assert.True(t, result.Partial)
	// Units picked up before the cancellation landed still report, but with
	// the cancellation error rather than a result.
	for _, unit := range result.Units {
		assert.NotEmpty(t, unit.Err)
		assert.Nil(t, unit.Result)
	}
}

func TestBatchRequiresUnits(t *testing.T) {
	svc := newTestBatch(t)

	_, err := svc.Run(context.Background(), batchWindow())
	assert.Error(t, err)
}
