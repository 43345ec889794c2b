package kafka

import (
	"context"

	"github.com/saraivavision/clinic-gateway/pkg/core/worker"
	"github.com/saraivavision/clinic-gateway/pkg/outbox"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewKafkaModule provides the producer and the outbox delivery tracker.
func NewKafkaModule() fx.Option {
	return fx.Module("kafka",
		fx.Provide(
			fx.Private,
			newConfig,
			provideProducer,
		),
		fx.Provide(
			provideTracker,
			func(t *DeliveryTracker) outbox.Tracker { return t },
			worker.Register[*DeliveryTracker]("delivery-tracker"),
		),
	)
}

func provideProducer(lc fx.Lifecycle, cfg Config, log *zap.Logger) (Producer, error) {
	p, err := NewProducer(cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			p.Close()
			return nil
		},
	})
	return p, nil
}

func provideTracker(cfg Config, producer Producer, log *zap.Logger) *DeliveryTracker {
	return NewDeliveryTracker(producer, cfg.TrackingTopic, log)
}
