package kafka

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Brokers       string `mapstructure:"brokers"`
	ClientID      string `mapstructure:"client-id"`
	TrackingTopic string `mapstructure:"tracking-topic"`
}

func newConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	sub := v.Sub("kafka")
	if sub == nil {
		return cfg, fmt.Errorf("missing kafka config section")
	}
	if err := sub.UnmarshalExact(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to load kafka config: %w", err)
	}
	if cfg.Brokers == "" {
		return cfg, fmt.Errorf("kafka brokers are required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "clinic-gateway"
	}
	if cfg.TrackingTopic == "" {
		cfg.TrackingTopic = "outbox-delivery"
	}
	return cfg, nil
}
