package indicator

import (
	"testing"
	"time"

	"golang-stock-backtester/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bars(ranges ...[3]float64) []domain.PriceBar {
	out := make([]domain.PriceBar, len(ranges))
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, r := range ranges {
		out[i] = domain.PriceBar{
			Date:  day.AddDate(0, 0, i),
			High:  r[0],
			Low:   r[1],
			Close: r[2],
			Open:  r[2],
		}
	}
	return out
}

func TestSMA(t *testing.T) {
	assert.Equal(t, 20.0, SMA([]float64{10, 20, 30}, 3))
	assert.Equal(t, 25.0, SMA([]float64{10, 20, 30}, 2))
	assert.Equal(t, 0.0, SMA([]float64{10, 20}, 3), "short history yields zero")
}

func TestATRConstantRange(t *testing.T) {
	// Every bar spans exactly 2 points, so every true range is 2 and both
	// the seed average and the smoothed value stay at 2.
	var rs [][3]float64
	for i := 0; i < 20; i++ {
		rs = append(rs, [3]float64{101, 99, 100})
	}
	atr := ATR(bars(rs...), 14)
	assert.InDelta(t, 2.0, atr, 1e-9)
}

func TestATRInsufficientHistory(t *testing.T) {
	rs := [][3]float64{{101, 99, 100}, {101, 99, 100}}
	assert.Equal(t, 0.0, ATR(bars(rs...), 14))
}

func TestATRUsesGaps(t *testing.T) {
	// A gap beyond the bar's own range must widen the true range.
	rs := [][3]float64{
		{101, 99, 100},
		{101, 99, 100},
		{120, 118, 119}, // gap up: high-prevClose = 20
	}
	atr := ATR(bars(rs...), 2)
	require.Greater(t, atr, 2.0)
}

func TestRSINeutralOnShortHistory(t *testing.T) {
	assert.Equal(t, 50.0, RSI([]float64{100, 101}, 14))
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	assert.Equal(t, 100.0, RSI(closes, 14))
}

func TestRSIFlat(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	assert.Equal(t, 50.0, RSI(closes, 14))
}

func TestRSIBounded(t *testing.T) {
	closes := []float64{100, 103, 99, 104, 98, 105, 97, 106, 96, 107, 95, 108, 94, 109, 93, 110}
	rsi := RSI(closes, 14)
	assert.GreaterOrEqual(t, rsi, 0.0)
	assert.LessOrEqual(t, rsi, 100.0)
}
