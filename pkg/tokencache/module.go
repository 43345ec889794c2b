package tokencache

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/saraivavision/clinic-gateway/pkg/core/health"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewTokenCacheModule provides the redis client and the token cache.
// The redis connection is probed with exponential backoff during startup so
// the gateway tolerates the store coming up slightly later than itself.
func NewTokenCacheModule() fx.Option {
	return fx.Options(
		fx.Provide(
			newConfig,
			provideRedisClient,
			New,
		),
	)
}

func provideRedisClient(lc fx.Lifecycle, log *zap.Logger, conf Config, readiness health.ComponentManager) redis.UniversalClient {
	client := redis.NewClient(&redis.Options{
		Addr:         conf.Addr,
		Password:     conf.Password,
		DB:           conf.DB,
		DialTimeout:  conf.DialTimeout,
		ReadTimeout:  conf.ReadTimeout,
		WriteTimeout: conf.WriteTimeout,
	})

	markReady := readiness.AddComponent("redis")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			probe := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10), ctx)
			err := backoff.Retry(func() error {
				pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				defer cancel()
				return client.Ping(pingCtx).Err()
			}, probe)
			if err != nil {
				return err
			}
			log.Info("connected to redis", zap.String("addr", conf.Addr))
			markReady()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client
}
