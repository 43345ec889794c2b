package outbox

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Collection    string        `mapstructure:"collection"`
	BatchSize     int           `mapstructure:"batch-size"`
	MaxRetries    int           `mapstructure:"max-retries"`
	SweepInterval time.Duration `mapstructure:"sweep-interval"`
	StatsWindow   time.Duration `mapstructure:"stats-window"`
}

func newConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	sub := v.Sub("outbox")
	if sub == nil {
		sub = viper.New()
	}
	if err := sub.UnmarshalExact(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to load outbox config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Collection == "" {
		c.Collection = "outbox"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 10
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.StatsWindow == 0 {
		c.StatsWindow = 24 * time.Hour
	}
}
