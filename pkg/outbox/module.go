package outbox

import (
	"github.com/saraivavision/clinic-gateway/pkg/core/worker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
)

// NewOutboxModule provides the outbox service and its background sweeper.
// Senders are collected from the "outbox_senders" group; a Tracker must be
// provided by the application.
func NewOutboxModule() fx.Option {
	return fx.Module("outbox",
		serviceProviders(),
		fx.Provide(
			NewSweeper,
			worker.Register[*Sweeper]("outbox-sweeper", worker.WithReady()),
		),
	)
}

// NewServiceModule provides the service without the background sweeper.
// Operator tooling uses it to act on the outbox without starting sweeps.
func NewServiceModule() fx.Option {
	return fx.Module("outbox", serviceProviders())
}

func serviceProviders() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Private,
			newConfig,
			provideStore,
			provideRenderer,
		),
		fx.Provide(
			fx.Annotate(NewService, fx.ParamTags(``, ``, ``, `group:"outbox_senders"`, ``, ``)),
		),
	)
}

// AsSender annotates a constructor so its result joins the sender group.
func AsSender(constructor any) any {
	return fx.Annotate(constructor, fx.As(new(Sender)), fx.ResultTags(`group:"outbox_senders"`))
}

func provideStore(cfg Config, db *mongo.Database) Store {
	return NewMongoStore(db, cfg.Collection)
}

func provideRenderer() (Renderer, error) {
	return NewTemplateRenderer(nil)
}
