package webhook

import (
	"fmt"

	"github.com/spf13/viper"
)

const defaultMaxBodyBytes = 1 << 20 // 1 MiB

// EndpointConfig carries the per-endpoint secret and sender restrictions.
type EndpointConfig struct {
	Secret     string   `mapstructure:"secret"`
	AllowedIPs []string `mapstructure:"allowed-ips"`
}

type Config struct {
	MaxBodyBytes   int64                     `mapstructure:"max-body-bytes"`
	AuditQueueSize int                       `mapstructure:"audit-queue-size"`
	Endpoints      map[string]EndpointConfig `mapstructure:"endpoints"`
}

func newConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	sub := v.Sub("webhook")
	if sub == nil {
		return cfg, fmt.Errorf("missing webhook config section")
	}
	if err := sub.UnmarshalExact(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to load webhook config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.AuditQueueSize == 0 {
		c.AuditQueueSize = 256
	}
}

// Endpoint returns the configuration for a named endpoint, or a zero value
// when the endpoint has no explicit configuration.
func (c *Config) Endpoint(name string) EndpointConfig {
	return c.Endpoints[name]
}
