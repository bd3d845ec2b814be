package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang-stock-backtester/pkg/logger"

	"golang.org/x/time/rate"
)

// Quote is an intraday price observation used by the live signal path to
// annotate notifications; replay never consumes quotes.
type Quote struct {
	Ticker string    `json:"ticker"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
	Time   time.Time `json:"time"`
}

// QuoteRepository fetches current quotes from the market-data gateway.
type QuoteRepository interface {
	GetQuote(ctx context.Context, ticker string) (*Quote, error)
}

type quoteRepository struct {
	baseURL        string
	log            *logger.Logger
	httpClient     *http.Client
	requestLimiter *rate.Limiter
}

// NewQuoteRepository creates a rate-limited quote client.
func NewQuoteRepository(baseURL string, maxRequestPerMinute int, log *logger.Logger) (QuoteRepository, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("quote repository: base URL is required")
	}
	if maxRequestPerMinute <= 0 {
		return nil, fmt.Errorf("quote repository: max_request_per_minute must be positive")
	}
	secondsPerRequest := time.Minute / time.Duration(maxRequestPerMinute)
	return &quoteRepository{
		baseURL: baseURL,
		log:     log,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
	}, nil
}

func (r *quoteRepository) GetQuote(ctx context.Context, ticker string) (*Quote, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/quote/%s", r.baseURL, ticker)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		r.log.Warn("Quote request failed",
			logger.StringField("ticker", ticker),
			logger.IntField("status", resp.StatusCode),
			logger.StringField("body", string(body)))
		return nil, fmt.Errorf("quote request for %s returned status %d", ticker, resp.StatusCode)
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote for %s: %w", ticker, err)
	}
	quote.Ticker = ticker
	return &quote, nil
}
