package verifyentitybatch

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled        bool          `mapstructure:"enabled"`
	Concurrency    int           `mapstructure:"concurrency"`
	Timeout        time.Duration `mapstructure:"timeout"`
	DefaultLimit   int           `mapstructure:"default_limit"`
	FreshnessHours int           `mapstructure:"freshness_hours"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		Concurrency:    2,
		Timeout:        time.Minute,
		DefaultLimit:   100,
		FreshnessHours: 168,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("default_limit must be positive")
	}
	if c.FreshnessHours <= 0 {
		return fmt.Errorf("freshness_hours must be positive")
	}
	return nil
}
