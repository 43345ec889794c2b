package ninsaude

import (
	"net/http"

	"github.com/saraivavision/clinic-gateway/pkg/http/client"
	"github.com/saraivavision/clinic-gateway/pkg/ratelimit"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// NewNinsaudeModule provides the scheduling API client with its own outbound
// rate limiter and a dedicated HTTP client.
func NewNinsaudeModule() fx.Option {
	return fx.Module("ninsaude",
		fx.Provide(
			fx.Private,
			newConfig,
			provideHTTPClient,
			provideLimiter,
		),
		fx.Provide(NewClient),
	)
}

func provideHTTPClient(v *viper.Viper) (*http.Client, error) {
	cfg, err := client.FromViper(v, "ninsaude")
	if err != nil {
		return nil, err
	}
	return client.New(cfg), nil
}

func provideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}
