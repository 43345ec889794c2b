package observability

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

type Config struct {
	Enabled  *bool  `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

func newConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	sub := v.Sub("tracing")
	if sub == nil {
		sub = viper.New()
	}
	if err := sub.UnmarshalExact(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to load tracing config: %w", err)
	}
	if cfg.Enabled == nil {
		cfg.Enabled = lo.ToPtr(true)
	}
	return cfg, nil
}
