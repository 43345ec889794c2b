package webhook

import (
	"context"
	"fmt"

	"github.com/saraivavision/clinic-gateway/pkg/signature"
	"go.uber.org/zap"
)

// PaymentProcessor handles Stripe checkout events. Completed sessions queue
// a receipt email through the outbox.
type PaymentProcessor struct {
	cfg      EndpointConfig
	enqueuer Enqueuer
	log      *zap.Logger
}

func NewPaymentProcessor(cfg Config, enqueuer Enqueuer, log *zap.Logger) *PaymentProcessor {
	return &PaymentProcessor{
		cfg:      cfg.Endpoint("payment"),
		enqueuer: enqueuer,
		log:      log,
	}
}

func (p *PaymentProcessor) Name() string         { return "payment" }
func (p *PaymentProcessor) Kind() signature.Kind { return signature.KindStripe }
func (p *PaymentProcessor) Secret() string       { return p.cfg.Secret }
func (p *PaymentProcessor) AllowedIPs() []string { return p.cfg.AllowedIPs }

func (p *PaymentProcessor) Process(ctx context.Context, payload map[string]any) (any, error) {
	eventType, _ := payload["type"].(string)
	if eventType == "" {
		return nil, fmt.Errorf("missing type field")
	}

	if eventType == "checkout.session.completed" {
		p.queueReceipt(ctx, payload)
	}

	return map[string]any{
		"processed": true,
		"eventType": eventType,
	}, nil
}

func (p *PaymentProcessor) queueReceipt(ctx context.Context, payload map[string]any) {
	data, _ := payload["data"].(map[string]any)
	object, _ := data["object"].(map[string]any)
	email, _ := object["customer_email"].(string)
	if email == "" {
		return
	}
	sessionID, _ := object["id"].(string)
	if _, err := p.enqueuer.Enqueue(ctx, "email", email, "Recibo de pagamento", map[string]any{
		"sessionId":   sessionID,
		"amountTotal": object["amount_total"],
		"currency":    object["currency"],
	}); err != nil {
		p.log.Error("failed to queue payment receipt",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}
