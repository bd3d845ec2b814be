package dto

// RunBacktestRequest is the HTTP payload for a single-ticker run.
type RunBacktestRequest struct {
	Ticker         string                 `json:"ticker"`
	Start          string                 `json:"start"`
	End            string                 `json:"end"`
	InitialCapital float64                `json:"initial_capital"`
	LotSize        int                    `json:"lot_size"`
	EntryStrategy  string                 `json:"entry_strategy"`
	EntryParams    map[string]interface{} `json:"entry_params"`
	ExitStrategy   string                 `json:"exit_strategy"`
	ExitParams     map[string]interface{} `json:"exit_params"`
}

// RunPortfolioRequest is the HTTP payload for a portfolio run.
type RunPortfolioRequest struct {
	Tickers          []string               `json:"tickers"`
	Start            string                 `json:"start"`
	End              string                 `json:"end"`
	InitialCapital   float64                `json:"initial_capital"`
	MaxPositions     int                    `json:"max_positions"`
	MaxAllocationPct float64                `json:"max_allocation_pct"`
	MinAllocationPct float64                `json:"min_allocation_pct"`
	DefaultLotSize   int                    `json:"default_lot_size"`
	LotSizes         map[string]int         `json:"lot_sizes"`
	EntryStrategy    string                 `json:"entry_strategy"`
	EntryParams      map[string]interface{} `json:"entry_params"`
	ExitStrategy     string                 `json:"exit_strategy"`
	ExitParams       map[string]interface{} `json:"exit_params"`
}

// RunBatchRequest is the HTTP payload for a batch run.
type RunBatchRequest struct {
	Start          string      `json:"start"`
	End            string      `json:"end"`
	InitialCapital float64     `json:"initial_capital"`
	LotSize        int         `json:"lot_size"`
	Workers        int         `json:"workers"`
	Units          []BatchUnit `json:"units"`
}
