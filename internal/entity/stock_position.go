package entity

import (
	"time"

	"golang-stock-backtester/internal/domain"
)

// StockPosition is the persisted shape of an open holding used by the live
// tracking path. It round-trips losslessly with domain.Position.
type StockPosition struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Ticker              string    `gorm:"not null" json:"ticker"`
	EntryPrice          float64   `gorm:"not null" json:"entry_price"`
	EntryDate           time.Time `gorm:"not null" json:"entry_date"`
	EntryScore          float64   `gorm:"not null" json:"entry_score"`
	Quantity            int       `gorm:"not null" json:"quantity"`
	PeakPriceSinceEntry float64   `gorm:"not null" json:"peak_price_since_entry"`
	EntryATR            float64   `json:"entry_atr"`
	StopTightened       bool      `json:"stop_tightened"`
	IsActive            bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StockPosition) TableName() string {
	return "stock_positions"
}

// ToDomain converts the row to the domain position.
func (p *StockPosition) ToDomain() *domain.Position {
	return &domain.Position{
		Ticker:        p.Ticker,
		EntryPrice:    p.EntryPrice,
		EntryDate:     p.EntryDate,
		EntryScore:    p.EntryScore,
		Quantity:      p.Quantity,
		PeakPrice:     p.PeakPriceSinceEntry,
		EntryATR:      p.EntryATR,
		StopTightened: p.StopTightened,
	}
}

// FromDomain fills the persisted fields from the domain position.
func (p *StockPosition) FromDomain(pos *domain.Position) {
	p.Ticker = pos.Ticker
	p.EntryPrice = pos.EntryPrice
	p.EntryDate = pos.EntryDate
	p.EntryScore = pos.EntryScore
	p.Quantity = pos.Quantity
	p.PeakPriceSinceEntry = pos.PeakPrice
	p.EntryATR = pos.EntryATR
	p.StopTightened = pos.StopTightened
}
