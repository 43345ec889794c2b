package health

import (
	"go.uber.org/fx"
)

func NewReadinessModule() fx.Option {
	return fx.Provide(
		newReadiness,
		func(r *readiness) ComponentManager { return r },
		func(r *readiness) Checker { return r },
		func(r *readiness) Waiter { return r },
	)
}
