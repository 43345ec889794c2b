package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Defaults are tuned for clients behind Kubernetes services: the pool can be
// large because MaxConnLifetime forces periodic rebalancing to new pods.
const (
	DefaultTimeout             = 10 * time.Second
	DefaultMaxIdleConnsPerHost = 100
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultMaxConnLifetime     = 60 * time.Second
	maxRetriesCap              = 5
)

// Config holds transport configuration for an outbound HTTP client, loaded
// from the "clients.<name>" section of the config file:
//
//	clients:
//	  ninsaude:
//	    timeout: 10s
//
// Omit timeout fields to use defaults. Set to 0 to disable. Request URLs are
// owned by the consuming client, not the transport, so a section may be
// absent entirely and the client runs on defaults.
type Config struct {
	Timeout             *time.Duration `mapstructure:"timeout"`
	MaxIdleConnsPerHost *int           `mapstructure:"max-idle-conns-per-host"`
	IdleConnTimeout     *time.Duration `mapstructure:"idle-conn-timeout"`
	MaxConnLifetime     *time.Duration `mapstructure:"max-conn-lifetime"`
}

// New builds an *http.Client from the config, with connection-lifetime
// tracking and transparent retries for transient dial errors.
func New(cfg Config) *http.Client {
	cfg.applyDefaults()

	dialer := &net.Dialer{
		Timeout: 5 * time.Second,
	}

	maxConnLifetime := *cfg.MaxConnLifetime
	maxIdleConnsPerHost := *cfg.MaxIdleConnsPerHost

	var dialContext func(ctx context.Context, network, addr string) (net.Conn, error)
	if maxConnLifetime > 0 {
		dialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &timedConn{
				Conn:        conn,
				createdAt:   time.Now(),
				maxLifetime: maxConnLifetime,
			}, nil
		}
	}

	transport := &http.Transport{
		DialContext:         dialContext,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     *cfg.IdleConnTimeout,
	}

	return &http.Client{
		Timeout: *cfg.Timeout,
		Transport: &retryTransport{
			base:       transport,
			transport:  transport,
			maxRetries: min(maxIdleConnsPerHost, maxRetriesCap),
		},
	}
}

// FromViper loads the named client config from the "clients" section.
func FromViper(v *viper.Viper, name string) (Config, error) {
	var cfg Config
	if err := v.UnmarshalKey("clients."+name, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal client config %q: %w", name, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timeout == nil {
		c.Timeout = lo.ToPtr(DefaultTimeout)
	}
	if c.MaxIdleConnsPerHost == nil {
		c.MaxIdleConnsPerHost = lo.ToPtr(DefaultMaxIdleConnsPerHost)
	}
	if c.IdleConnTimeout == nil {
		c.IdleConnTimeout = lo.ToPtr(DefaultIdleConnTimeout)
	}
	if c.MaxConnLifetime == nil {
		c.MaxConnLifetime = lo.ToPtr(DefaultMaxConnLifetime)
	}
}
