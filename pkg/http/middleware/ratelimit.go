package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/saraivavision/clinic-gateway/pkg/http/problems"
	"github.com/saraivavision/clinic-gateway/pkg/http/server"
	"go.uber.org/fx"
	"golang.org/x/time/rate"
)

// newRateLimitMiddleware gates inbound traffic with a token-bucket limiter.
// This protects the gateway itself; the fixed-window limiter in pkg/ratelimit
// gates outbound Ninsaúde calls and is a separate concern.
func newRateLimitMiddleware(serverConfig server.Config, priority int) Middleware {
	config := serverConfig.RateLimit

	if !*config.Enabled {
		return Middleware{Priority: priority, Handler: nil}
	}

	limiter := rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)

	return Middleware{
		Priority: priority,
		Handler: func(c *gin.Context) {
			// Health checks bypass rate limiting.
			if c.Request.URL.Path == "/health/live" || c.Request.URL.Path == "/health/ready" {
				c.Next()
				return
			}

			if !limiter.Allow() {
				problem := problems.New(http.StatusTooManyRequests, "rate limit exceeded, please try again later")
				problem.Instance = c.Request.URL.Path
				c.Status(http.StatusTooManyRequests)
				c.Error(errors.New(problem.Detail)).SetMeta(problem) //nolint:errcheck // collected by problem middleware
				c.Abort()
				return
			}

			c.Next()
		},
	}
}

// RateLimitModule adds inbound rate limiting middleware to the application.
func RateLimitModule(priority int) fx.Option {
	return fx.Provide(
		fx.Annotate(
			func(serverConfig server.Config) Middleware {
				return newRateLimitMiddleware(serverConfig, priority)
			},
			fx.ResultTags(`group:"gin_mw"`),
		),
	)
}
