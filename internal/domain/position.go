package domain

import (
	"time"
)

// Position is an open holding. PeakPrice is monotonically non-decreasing
// for the position's lifetime; UpdatePeak is the only mutator.
type Position struct {
	Ticker     string    `json:"ticker"`
	EntryPrice float64   `json:"entry_price"`
	EntryDate  time.Time `json:"entry_date"`
	EntryScore float64   `json:"entry_score"`
	Quantity   int       `json:"quantity"`
	PeakPrice  float64   `json:"peak_price_since_entry"`

	// EntryATR is the ATR at entry time, used by the trailing-stop layer
	// to detect a volatility regime change.
	EntryATR float64 `json:"entry_atr"`
	// StopTightened is set once the earnings-proximity layer asks for a
	// tightened trailing stop.
	StopTightened bool `json:"stop_tightened"`
}

// NewPosition opens a position. PeakPrice starts at the entry price.
func NewPosition(ticker string, entryPrice float64, entryDate time.Time, entryScore float64, quantity int, entryATR float64) *Position {
	return &Position{
		Ticker:     ticker,
		EntryPrice: entryPrice,
		EntryDate:  entryDate,
		EntryScore: entryScore,
		Quantity:   quantity,
		PeakPrice:  entryPrice,
		EntryATR:   entryATR,
	}
}

// UpdatePeak raises the peak price when the given price exceeds it.
// The peak never falls.
func (p *Position) UpdatePeak(price float64) {
	if price > p.PeakPrice {
		p.PeakPrice = price
	}
}

// HoldingDays returns the whole calendar days held as of the given date.
func (p *Position) HoldingDays(asOf time.Time) int {
	d := int(asOf.Sub(p.EntryDate).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// GainPct returns the fractional gain of price over the entry price.
func (p *Position) GainPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return price/p.EntryPrice - 1
}

// Validate checks position invariants before each evaluation.
func (p *Position) Validate() error {
	if p.PeakPrice < p.EntryPrice {
		return NewInvariantViolation("peak price below entry price", p)
	}
	if p.Quantity < 0 {
		return NewInvariantViolation("negative quantity", p)
	}
	if p.EntryPrice <= 0 {
		return NewInvariantViolation("non-positive entry price", p)
	}
	return nil
}

// TradeRecord is the immutable record of a closed position.
type TradeRecord struct {
	Ticker      string    `json:"ticker"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	EntryDate   time.Time `json:"entry_date"`
	ExitDate    time.Time `json:"exit_date"`
	Quantity    int       `json:"quantity"`
	HoldingDays int       `json:"holding_days"`
	ProfitLoss  float64   `json:"profit_loss"`
	ExitReason  string    `json:"exit_reason"`
	OpenAtEnd   bool      `json:"open_at_end"`
}

// CloseTrade builds the trade record for a position closed at the given
// price and date.
func CloseTrade(p *Position, exitPrice float64, exitDate time.Time, reason string, openAtEnd bool) TradeRecord {
	return TradeRecord{
		Ticker:      p.Ticker,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   exitPrice,
		EntryDate:   p.EntryDate,
		ExitDate:    exitDate,
		Quantity:    p.Quantity,
		HoldingDays: p.HoldingDays(exitDate),
		ProfitLoss:  (exitPrice - p.EntryPrice) * float64(p.Quantity),
		ExitReason:  reason,
		OpenAtEnd:   openAtEnd,
	}
}
