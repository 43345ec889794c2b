package outbox

import (
	"context"
	"time"

	"github.com/saraivavision/clinic-gateway/pkg/observability"
	"go.uber.org/zap"
)

// Sweeper runs the recurring outbox processing sweep. Backpressure is
// bounded by sweep interval times batch size. Running more than one sweeper
// against the same store risks double-send: messages are not leased during
// delivery.
type Sweeper struct {
	service  *Service
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(cfg Config, service *Service, log *zap.Logger) *Sweeper {
	return &Sweeper{
		service:  service,
		interval: cfg.SweepInterval,
		log:      log.With(zap.String("component", "outbox-sweeper")),
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var result Result
			err := observability.TraceFunc(ctx, "outbox.sweep", func(ctx context.Context) error {
				var err error
				result, err = s.service.Process(ctx, 0)
				return err
			})
			if err != nil {
				s.log.Error("sweep failed", zap.Error(err))
				continue
			}
			if result.Total > 0 {
				s.log.Info("sweep finished",
					zap.Int("processed", result.Processed),
					zap.Int("failed", result.Failed),
					zap.Int("total", result.Total))
			}
		}
	}
}
