package webhook

import (
	"github.com/gin-gonic/gin"
	"github.com/saraivavision/clinic-gateway/pkg/core/worker"
	"github.com/saraivavision/clinic-gateway/pkg/signature"
	"go.uber.org/fx"
)

// NewWebhookModule mounts every configured webhook processor under
// /webhooks/<name> and runs the audit worker. The module requires an
// Enqueuer to be provided by the application for outgoing notifications.
func NewWebhookModule() fx.Option {
	return fx.Module("webhook",
		fx.Provide(
			fx.Private,
			newConfig,
			func() *signature.Validator { return signature.NewValidator() },
		),
		fx.Provide(
			NewAuditor,
			NewDispatcher,
			asProcessor(NewAppointmentProcessor),
			asProcessor(NewPaymentProcessor),
			asProcessor(NewGitHubProcessor),
			worker.Register[*Auditor]("webhook-audit"),
		),
		fx.Invoke(registerRoutes),
	)
}

func asProcessor(constructor any) any {
	return fx.Annotate(constructor, fx.As(new(Processor)), fx.ResultTags(`group:"webhook_processors"`))
}

type routesIn struct {
	fx.In

	Engine     *gin.Engine
	Dispatcher *Dispatcher
	Processors []Processor `group:"webhook_processors"`
}

func registerRoutes(in routesIn) {
	for _, p := range in.Processors {
		in.Engine.Any("/webhooks/"+p.Name(), in.Dispatcher.Handler(p))
	}
}
