package middleware

import (
	"net/http"
	"runtime/debug"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saraivavision/clinic-gateway/pkg/core/logger"
	"github.com/saraivavision/clinic-gateway/pkg/http/problems"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Middleware is a gin handler with an ordering priority. Lower priorities run
// first. All middlewares are collected from the "gin_mw" fx group.
type Middleware struct {
	Priority int
	Handler  gin.HandlerFunc
}

type mwIn struct {
	fx.In
	Middlewares []Middleware `group:"gin_mw"`
}

func NewGinModule() fx.Option {
	return fx.Provide(
		provideGinAndHandler,
		fx.Annotate(
			func() Middleware {
				return Middleware{Priority: 100, Handler: recoveryMiddleware()}
			},
			fx.ResultTags(`group:"gin_mw"`),
		),
		fx.Annotate(
			func() Middleware {
				return Middleware{Priority: 200, Handler: requestLoggerMiddleware()}
			},
			fx.ResultTags(`group:"gin_mw"`),
		),
		fx.Annotate(
			func() Middleware {
				return Middleware{Priority: 300, Handler: problemMiddleware()}
			},
			fx.ResultTags(`group:"gin_mw"`),
		),
	)
}

func provideGinAndHandler(in mwIn) (*gin.Engine, http.Handler) {
	e := newEngine(in.Middlewares)
	return e, e
}

func newEngine(mws []Middleware) *gin.Engine {
	engine := gin.New(func(e *gin.Engine) {
		e.ContextWithFallback = true
	})

	sort.Slice(mws, func(i, j int) bool { return mws[i].Priority < mws[j].Priority })
	for _, m := range mws {
		if m.Handler == nil {
			continue
		}
		engine.Use(m.Handler)
	}

	return engine
}

// requestFields returns common request fields for logging
func requestFields(c *gin.Context) []zap.Field {
	return []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("client_ip", c.ClientIP()),
	}
}

func requestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health/live" || path == "/health/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := append(requestFields(c),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("user_agent", c.Request.UserAgent()),
		)
		logger.FromContext(c).Debug("incoming request", fields...)
	}
}

func recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				fields := append(requestFields(c),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				logger.FromContext(c).Error("panic recovered", fields...)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// problemMiddleware converts unhandled gin errors to Problem Details
// (RFC 7807) responses.
func problemMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		firstErr := c.Errors[0]
		var problem problems.Problem

		if existing, ok := firstErr.Meta.(*problems.Problem); ok {
			problem = *existing
			if problem.Status == 0 {
				problem.Status = http.StatusInternalServerError
			}
		} else {
			status := c.Writer.Status()
			if status == 0 || status == http.StatusOK {
				status = http.StatusInternalServerError
			}
			problem = problems.Problem{
				Type:     "about:blank",
				Title:    http.StatusText(status),
				Status:   status,
				Detail:   firstErr.Error(),
				Instance: c.Request.URL.Path,
			}
		}

		for _, e := range c.Errors {
			logger.FromContext(c).Error("request error",
				append(requestFields(c), zap.String("error", e.Error()))...)
		}

		c.JSON(problem.Status, problem)
	}
}
