package observability

import (
	"github.com/saraivavision/clinic-gateway/pkg/core/config"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewTracingModule wires the OTLP tracer provider. When tracing is disabled
// a no-op provider keeps span creation sites valid.
func NewTracingModule() fx.Option {
	return fx.Module("tracing",
		fx.Provide(
			fx.Private,
			newConfig,
		),
		fx.Provide(
			func(lc fx.Lifecycle, log *zap.Logger, conf Config, appConf config.AppConfig) (trace.TracerProvider, error) {
				if !*conf.Enabled {
					log.Info("tracing disabled")
					return noop.NewTracerProvider(), nil
				}
				return newTracerProvider(lc, log, conf, appConf)
			},
		),
		fx.Invoke(func(trace.TracerProvider) {}),
	)
}
