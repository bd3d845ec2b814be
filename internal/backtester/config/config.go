package config

import (
	"golang-stock-backtester/pkg/config"
)

// Backtester holds backtester-specific configuration.
type Backtester struct {
	SnapshotCacheTTL string `mapstructure:"snapshot_cache_ttl"`
	BatchWorkers     int    `mapstructure:"batch_workers"`
	DefaultLotSize   int    `mapstructure:"default_lot_size"`
}

// Config holds the full configuration for the backtester service.
type Config struct {
	App        config.App      `mapstructure:"app"`
	Logger     config.Logger   `mapstructure:"logger"`
	Database   config.Database `mapstructure:"database"`
	Redis      config.Redis    `mapstructure:"redis"`
	API        config.API      `mapstructure:"api"`
	Backtester Backtester      `mapstructure:"backtester"`
}

// Load loads the backtester configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
