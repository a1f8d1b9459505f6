package expandbatch

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	Concurrency   int           `mapstructure:"concurrency"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DefaultSample int           `mapstructure:"default_sample"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		Concurrency:   5,
		Timeout:       5 * time.Minute,
		DefaultSample: 25,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.DefaultSample <= 0 {
		return fmt.Errorf("default_sample must be positive")
	}
	return nil
}
