package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/saraivavision/clinic-gateway/pkg/core/health"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewHTTPServerModule provides the HTTP server and its health endpoints.
func NewHTTPServerModule() fx.Option {
	return fx.Options(
		fx.Provide(newConfig),
		fx.Invoke(registerHealthRoutes),
		fx.Invoke(startHTTPServer),
	)
}

func registerHealthRoutes(engine *gin.Engine, checker health.Checker) {
	engine.GET("/health/live", func(c *gin.Context) {
		c.String(http.StatusOK, "alive")
	})
	engine.GET("/health/ready", func(c *gin.Context) {
		if checker.IsReady() {
			c.JSON(http.StatusOK, checker.GetStatus())
			return
		}
		c.JSON(http.StatusServiceUnavailable, checker.GetStatus())
	})
}

func startHTTPServer(lc fx.Lifecycle, log *zap.Logger, conf Config, handler http.Handler, readiness health.ComponentManager, shutdowner fx.Shutdowner) {
	var srv Server
	markReady := readiness.AddComponent("http-server")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Create the server in OnStart - all routes are registered by now.
			srv = newServer(log, conf, handler)

			go func() {
				if err := srv.ServeWithReadyCallback(markReady); err != nil {
					log.Error("HTTP server failed, shutting down application", zap.Error(err))
					_ = shutdowner.Shutdown() //nolint:errcheck // shutdown is best-effort
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if srv != nil {
				return srv.Shutdown(ctx)
			}
			return nil
		},
	})
}
