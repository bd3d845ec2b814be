package service

import (
	"math"

	"golang-stock-backtester/internal/backtester/dto"
	"golang-stock-backtester/internal/domain"
)

// tradingDaysPerYear annualizes daily returns on the Tokyo exchange calendar.
const tradingDaysPerYear = 252

// MetricsCalculator derives summary statistics from an equity curve and a
// closed-trade ledger.
type MetricsCalculator interface {
	Calculate(initialCapital float64, curve []dto.EquityPoint, trades []domain.TradeRecord) dto.Metrics
}

type metricsCalculator struct{}

// NewMetricsCalculator creates the default calculator.
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{}
}

func (c *metricsCalculator) Calculate(initialCapital float64, curve []dto.EquityPoint, trades []domain.TradeRecord) dto.Metrics {
	m := dto.Metrics{}

	finalEquity := initialCapital
	if len(curve) > 0 {
		finalEquity = curve[len(curve)-1].Equity
	}
	if initialCapital > 0 {
		m.TotalReturnPct = (finalEquity/initialCapital - 1) * 100
	}
	m.SharpeRatio = sharpeRatio(curve)
	m.MaxDrawdownPct = maxDrawdownPct(curve)

	m.Trades = len(trades)
	if m.Trades == 0 {
		// A run that never traded has no trade-derived statistics.
		m.TradeStatsUndefined = true
		return m
	}

	var totalPL, winSum, lossSum float64
	for _, t := range trades {
		totalPL += t.ProfitLoss
		switch {
		case t.ProfitLoss > 0:
			m.Wins++
			winSum += t.ProfitLoss
		case t.ProfitLoss < 0:
			m.Losses++
			lossSum += t.ProfitLoss
		}
	}
	m.WinRate = float64(m.Wins) / float64(m.Trades)
	m.Expectancy = totalPL / float64(m.Trades)
	if m.Wins > 0 {
		m.AvgWin = winSum / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLoss = lossSum / float64(m.Losses)
	}
	return m
}

// sharpeRatio annualizes the mean over standard deviation of daily equity
// returns. Fewer than two curve points, or a flat curve, yields 0.
func sharpeRatio(curve []dto.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			return 0
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	if len(returns) > 1 {
		variance /= float64(len(returns) - 1)
	}
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

func maxDrawdownPct(curve []dto.EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}
