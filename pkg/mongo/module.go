package mongo

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/saraivavision/clinic-gateway/pkg/core/health"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewMongoModule provides the application database handle. The connection
// is probed with exponential backoff during startup.
func NewMongoModule() fx.Option {
	return fx.Module("mongo",
		fx.Provide(
			fx.Private,
			newConfig,
		),
		fx.Provide(provideDatabase),
	)
}

func provideDatabase(lc fx.Lifecycle, log *zap.Logger, conf Config, readiness health.ComponentManager) (*mongodriver.Database, error) {
	c, err := newClient(log, conf)
	if err != nil {
		return nil, err
	}

	markReady := readiness.AddComponent("mongo")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			probe := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10), ctx)
			if err := backoff.Retry(func() error { return c.connect(ctx) }, probe); err != nil {
				return err
			}
			markReady()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return c.disconnect(ctx)
		},
	})

	return c.database, nil
}
