package logger

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewLoggerModule provides the zap logger and routes fx's own events
// through it.
func NewLoggerModule() fx.Option {
	return fx.Options(
		fx.Provide(
			newConfig,
			newLogger,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(registerSync),
	)
}

func registerSync(lc fx.Lifecycle, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			err := logger.Sync()
			if err != nil {
				// Sync on stderr fails with EINVAL on some platforms; not a
				// real shutdown error.
				if pathErr, ok := err.(*os.PathError); ok && pathErr.Err.Error() == "invalid argument" {
					return nil
				}
				return err
			}
			return nil
		},
	})
}
