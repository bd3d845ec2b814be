package entity

import "time"

// Stock is the per-ticker metadata row.
type Stock struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Ticker           string    `gorm:"uniqueIndex;not null" json:"ticker"`
	Name             string    `json:"name"`
	Sector           string    `json:"sector"`
	NextEarningsDate time.Time `json:"next_earnings_date"`
	LotSize          int       `gorm:"default:100" json:"lot_size"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Stock) TableName() string {
	return "stocks"
}

// DailyPrice is one OHLCV row.
type DailyPrice struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	Ticker string    `gorm:"index:idx_daily_prices_ticker_date,unique;not null" json:"ticker"`
	Date   time.Time `gorm:"index:idx_daily_prices_ticker_date,unique;not null" json:"date"`
	Open   float64   `gorm:"not null" json:"open"`
	High   float64   `gorm:"not null" json:"high"`
	Low    float64   `gorm:"not null" json:"low"`
	Close  float64   `gorm:"not null" json:"close"`
	Volume float64   `gorm:"not null" json:"volume"`
}

func (DailyPrice) TableName() string {
	return "daily_prices"
}

// InvestorFlow is one day of investor-category net flow in yen.
type InvestorFlow struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Ticker             string    `gorm:"index:idx_investor_flows_ticker_date,unique;not null" json:"ticker"`
	Date               time.Time `gorm:"index:idx_investor_flows_ticker_date,unique;not null" json:"date"`
	ForeignNet         float64   `json:"foreign_net"`
	TrustBankNet       float64   `json:"trust_bank_net"`
	RetailNet          float64   `json:"retail_net"`
	MajorHolderSelling bool      `json:"major_holder_selling"`
}

func (InvestorFlow) TableName() string {
	return "investor_flows"
}

// FundamentalReport is one company disclosure.
type FundamentalReport struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Ticker         string    `gorm:"index;not null" json:"ticker"`
	DisclosedAt    time.Time `gorm:"not null" json:"disclosed_at"`
	Guidance       float64   `json:"guidance"`
	PriorGuidance  float64   `json:"prior_guidance"`
	Actual         float64   `json:"actual"`
	AccountingFlag bool      `json:"accounting_flag"`
}

func (FundamentalReport) TableName() string {
	return "fundamental_reports"
}
