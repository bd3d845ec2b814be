package domain

import (
	"fmt"
	"time"
)

// PriceBar is a single daily OHLCV row.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// FlowRecord is one day of investor-category net flow, in yen.
// Positive values are net buying.
type FlowRecord struct {
	Date               time.Time `json:"date"`
	ForeignNet         float64   `json:"foreign_net"`
	TrustBankNet       float64   `json:"trust_bank_net"`
	RetailNet          float64   `json:"retail_net"`
	MajorHolderSelling bool      `json:"major_holder_selling"`
}

// FundamentalRecord is one company disclosure: the current full-year
// guidance, the guidance it replaced, and the latest reported actual.
type FundamentalRecord struct {
	DisclosedAt    time.Time `json:"disclosed_at"`
	Guidance       float64   `json:"guidance"`
	PriorGuidance  float64   `json:"prior_guidance"`
	Actual         float64   `json:"actual"`
	AccountingFlag bool      `json:"accounting_flag"`
}

// StockMeta is static per-ticker metadata.
type StockMeta struct {
	Sector           string    `json:"sector"`
	NextEarningsDate time.Time `json:"next_earnings_date"`
	LotSize          int       `json:"lot_size"`
}

// Snapshot is a look-ahead-safe view of a ticker's history as of a date.
// No row carries a timestamp past AsOf.
type Snapshot struct {
	Ticker       string              `json:"ticker"`
	AsOf         time.Time           `json:"as_of"`
	Prices       []PriceBar          `json:"prices"`
	Flows        []FlowRecord        `json:"flows"`
	Fundamentals []FundamentalRecord `json:"fundamentals"`
	Meta         StockMeta           `json:"meta"`
}

// Validate checks the look-ahead invariant.
func (s *Snapshot) Validate() error {
	for _, p := range s.Prices {
		if p.Date.After(s.AsOf) {
			return fmt.Errorf("snapshot %s: price row %s is beyond as-of date %s",
				s.Ticker, p.Date.Format("2006-01-02"), s.AsOf.Format("2006-01-02"))
		}
	}
	for _, f := range s.Flows {
		if f.Date.After(s.AsOf) {
			return fmt.Errorf("snapshot %s: flow row %s is beyond as-of date %s",
				s.Ticker, f.Date.Format("2006-01-02"), s.AsOf.Format("2006-01-02"))
		}
	}
	for _, f := range s.Fundamentals {
		if f.DisclosedAt.After(s.AsOf) {
			return fmt.Errorf("snapshot %s: fundamental row %s is beyond as-of date %s",
				s.Ticker, f.DisclosedAt.Format("2006-01-02"), s.AsOf.Format("2006-01-02"))
		}
	}
	return nil
}

// View returns a snapshot truncated to asOf. Series are sub-slices of the
// receiver, so views are cheap; callers must not mutate them.
func (s *Snapshot) View(asOf time.Time) *Snapshot {
	view := &Snapshot{
		Ticker: s.Ticker,
		AsOf:   asOf,
		Meta:   s.Meta,
	}
	view.Prices = s.Prices[:upperBoundPrices(s.Prices, asOf)]
	view.Flows = s.Flows[:upperBoundFlows(s.Flows, asOf)]
	view.Fundamentals = s.Fundamentals[:upperBoundFundamentals(s.Fundamentals, asOf)]
	return view
}

func upperBoundPrices(rows []PriceBar, asOf time.Time) int {
	n := len(rows)
	for n > 0 && rows[n-1].Date.After(asOf) {
		n--
	}
	return n
}

func upperBoundFlows(rows []FlowRecord, asOf time.Time) int {
	n := len(rows)
	for n > 0 && rows[n-1].Date.After(asOf) {
		n--
	}
	return n
}

func upperBoundFundamentals(rows []FundamentalRecord, asOf time.Time) int {
	n := len(rows)
	for n > 0 && rows[n-1].DisclosedAt.After(asOf) {
		n--
	}
	return n
}

// HasLookback reports whether at least n price bars are available.
func (s *Snapshot) HasLookback(n int) bool {
	return len(s.Prices) >= n
}

// LastBar returns the most recent bar, or false when the snapshot is empty.
func (s *Snapshot) LastBar() (PriceBar, bool) {
	if len(s.Prices) == 0 {
		return PriceBar{}, false
	}
	return s.Prices[len(s.Prices)-1], true
}

// LastClose returns the most recent closing price, or 0 when empty.
func (s *Snapshot) LastClose() float64 {
	if bar, ok := s.LastBar(); ok {
		return bar.Close
	}
	return 0
}

// Closes returns the closing price series.
func (s *Snapshot) Closes() []float64 {
	closes := make([]float64, len(s.Prices))
	for i, p := range s.Prices {
		closes[i] = p.Close
	}
	return closes
}

// DaysToEarnings returns the number of calendar days until the next
// earnings date, negative when the date has passed.
func (s *Snapshot) DaysToEarnings() int {
	if s.Meta.NextEarningsDate.IsZero() {
		return 1 << 30
	}
	return int(s.Meta.NextEarningsDate.Sub(s.AsOf).Hours() / 24)
}

// FlowSum adds the given category selector over flows within the trailing
// window of days ending at AsOf.
func (s *Snapshot) FlowSum(days int, pick func(FlowRecord) float64) float64 {
	from := s.AsOf.AddDate(0, 0, -days)
	var sum float64
	for _, f := range s.Flows {
		if f.Date.After(from) && !f.Date.After(s.AsOf) {
			sum += pick(f)
		}
	}
	return sum
}

// FlowSumBetween adds a category over flows in (AsOf-toDays, AsOf-fromDays].
func (s *Snapshot) FlowSumBetween(fromDays, toDays int, pick func(FlowRecord) float64) float64 {
	lo := s.AsOf.AddDate(0, 0, -toDays)
	hi := s.AsOf.AddDate(0, 0, -fromDays)
	var sum float64
	for _, f := range s.Flows {
		if f.Date.After(lo) && !f.Date.After(hi) {
			sum += pick(f)
		}
	}
	return sum
}

// LatestFundamental returns the most recent disclosure, or false when none.
func (s *Snapshot) LatestFundamental() (FundamentalRecord, bool) {
	if len(s.Fundamentals) == 0 {
		return FundamentalRecord{}, false
	}
	return s.Fundamentals[len(s.Fundamentals)-1], true
}
