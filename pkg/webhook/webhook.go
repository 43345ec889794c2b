package webhook

import (
	"context"

	"github.com/saraivavision/clinic-gateway/pkg/signature"
)

// Processor handles a single configured webhook endpoint. Each processor
// declares how its requests are authenticated and implements the
// business-side handling of a verified payload.
type Processor interface {
	// Name identifies the endpoint; the route is mounted at /webhooks/<name>.
	Name() string

	// Kind selects the signature scheme requests are validated with.
	Kind() signature.Kind

	// Secret is the shared secret used for signature validation.
	Secret() string

	// AllowedIPs restricts senders when non-empty.
	AllowedIPs() []string

	// Process handles a validated payload and returns the response data.
	Process(ctx context.Context, payload map[string]any) (any, error)
}

// Enqueuer queues follow-up notifications for asynchronous delivery.
// Processors use it instead of sending email or SMS inline so that a slow
// or failing delivery provider never delays the webhook response.
type Enqueuer interface {
	Enqueue(ctx context.Context, messageType, recipient, subject string, templateData map[string]any) (string, error)
}
