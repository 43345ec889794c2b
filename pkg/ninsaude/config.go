package ninsaude

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Token TTLs. The access token is cached one minute short of the provider's
// 15-minute expiry so a cached token is never presented moments before it
// dies server-side.
const (
	DefaultAccessTokenTTL  = 14 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

type Config struct {
	BaseURL     string `mapstructure:"base-url"`
	Account     string `mapstructure:"account"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	AccountUnit string `mapstructure:"account-unit"`

	AccessTokenTTL  time.Duration `mapstructure:"access-token-ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh-token-ttl"`
}

func newConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	sub := v.Sub("ninsaude")
	if sub == nil {
		return cfg, fmt.Errorf("missing ninsaude config section")
	}
	if err := sub.UnmarshalExact(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to load ninsaude config: %w", err)
	}
	if cfg.BaseURL == "" || cfg.Account == "" || cfg.Username == "" || cfg.Password == "" {
		return cfg, fmt.Errorf("ninsaude config requires base-url, account, username and password")
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.AccountUnit == "" {
		c.AccountUnit = "1"
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
}

func (c Config) tokenURL() string {
	return c.BaseURL + "/oauth2/token"
}
