// Package main runs the clinic integration gateway: webhook receivers for
// scheduling, payment and deploy events, the Ninsaúde API client with its
// token cache, and the notification outbox sweeper.
package main

import (
	"github.com/saraivavision/clinic-gateway/pkg/core/config"
	"github.com/saraivavision/clinic-gateway/pkg/core/health"
	"github.com/saraivavision/clinic-gateway/pkg/core/logger"
	"github.com/saraivavision/clinic-gateway/pkg/core/worker"
	"github.com/saraivavision/clinic-gateway/pkg/http/middleware"
	"github.com/saraivavision/clinic-gateway/pkg/http/server"
	"github.com/saraivavision/clinic-gateway/pkg/kafka"
	"github.com/saraivavision/clinic-gateway/pkg/mongo"
	"github.com/saraivavision/clinic-gateway/pkg/ninsaude"
	"github.com/saraivavision/clinic-gateway/pkg/observability"
	"github.com/saraivavision/clinic-gateway/pkg/outbox"
	"github.com/saraivavision/clinic-gateway/pkg/tokencache"
	"github.com/saraivavision/clinic-gateway/pkg/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	fx.New(buildApp()).Run()
}

func buildApp() fx.Option {
	return fx.Options(
		config.NewConfigModule(),
		logger.NewLoggerModule(),
		health.NewReadinessModule(),
		observability.NewTracingModule(),
		middleware.NewGinModule(),
		middleware.RateLimitModule(400),
		server.NewHTTPServerModule(),
		tokencache.NewTokenCacheModule(),
		mongo.NewMongoModule(),
		kafka.NewKafkaModule(),
		ninsaude.NewNinsaudeModule(),
		outbox.NewOutboxModule(),
		webhook.NewWebhookModule(),
		fx.Provide(
			outbox.AsSender(newEmailSender),
			outbox.AsSender(newSMSSender),
			func(s *outbox.Service) webhook.Enqueuer { return s },
		),
		worker.Activate(),
	)
}

// Delivery providers are wired per deployment; until SMTP and SMS gateway
// integrations land, messages are logged by the default senders.
func newEmailSender(log *zap.Logger) outbox.Sender {
	return outbox.NewLogSender("email", log)
}

func newSMSSender(log *zap.Logger) outbox.Sender {
	return outbox.NewLogSender("sms", log)
}
