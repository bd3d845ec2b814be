package indicator

import (
	"math"

	"golang-stock-backtester/internal/domain"
)

// ATR computes the Average True Range over the last `period` bars using
// Wilder's smoothing. Returns 0 when there are fewer than period+1 bars.
func ATR(bars []domain.PriceBar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}

	// Seed with a simple average of the first period true ranges.
	start := len(bars) - period - 1
	atr := 0.0
	for i := start + 1; i <= start+period; i++ {
		atr += trueRange(bars[i], bars[i-1].Close)
	}
	atr /= float64(period)

	// Wilder smoothing over any remaining bars.
	for i := start + period + 1; i < len(bars); i++ {
		tr := trueRange(bars[i], bars[i-1].Close)
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr
}

func trueRange(bar domain.PriceBar, prevClose float64) float64 {
	hl := bar.High - bar.Low
	hc := math.Abs(bar.High - prevClose)
	lc := math.Abs(bar.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}
