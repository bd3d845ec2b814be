package config

import (
	"golang-stock-backtester/pkg/config"
)

// Signal holds signal-service-specific configuration.
type Signal struct {
	Schedule            string   `mapstructure:"schedule"`
	Tickers             []string `mapstructure:"tickers"`
	EntryStrategy       string   `mapstructure:"entry_strategy"`
	ExitStrategy        string   `mapstructure:"exit_strategy"`
	EntryThreshold      float64  `mapstructure:"entry_threshold"`
	SnapshotCacheTTL    string   `mapstructure:"snapshot_cache_ttl"`
	QuoteBaseURL        string   `mapstructure:"quote_base_url"`
	QuoteMaxRequestsMin int      `mapstructure:"quote_max_requests_per_minute"`
}

// Config holds the full configuration for the signal service.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	Redis    config.Redis    `mapstructure:"redis"`
	Telegram config.Telegram `mapstructure:"telegram"`
	Signal   Signal          `mapstructure:"signal"`
}

// Load loads the signal service configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
