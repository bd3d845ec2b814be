package domain

// PortfolioState is the cash and open-position book owned by one simulation
// run. Cash must never go negative after a simulated day.
type PortfolioState struct {
	Cash      float64              `json:"cash"`
	Positions map[string]*Position `json:"positions"`
	Trades    []TradeRecord        `json:"trades"`
}

// NewPortfolioState creates an empty book with the given starting cash.
func NewPortfolioState(cash float64) *PortfolioState {
	return &PortfolioState{
		Cash:      cash,
		Positions: make(map[string]*Position),
	}
}

// Equity values the book with the given closing prices. Positions without a
// price that day are valued at their peak-tracked entry ticker's last known
// price supplied by the caller.
func (s *PortfolioState) Equity(lastClose map[string]float64) float64 {
	equity := s.Cash
	for ticker, pos := range s.Positions {
		equity += float64(pos.Quantity) * lastClose[ticker]
	}
	return equity
}

// Validate checks the cash invariant and each open position.
func (s *PortfolioState) Validate() error {
	if s.Cash < 0 {
		return NewInvariantViolation("negative cash balance", s)
	}
	for _, pos := range s.Positions {
		if err := pos.Validate(); err != nil {
			return err
		}
	}
	return nil
}
