package webhook

import (
	"context"
	"fmt"

	"github.com/saraivavision/clinic-gateway/pkg/signature"
	"go.uber.org/zap"
)

// AppointmentProcessor handles scheduling events pushed by the Ninsaúde
// platform. Confirmed appointments queue a confirmation email through the
// outbox.
type AppointmentProcessor struct {
	cfg      EndpointConfig
	enqueuer Enqueuer
	log      *zap.Logger
}

func NewAppointmentProcessor(cfg Config, enqueuer Enqueuer, log *zap.Logger) *AppointmentProcessor {
	return &AppointmentProcessor{
		cfg:      cfg.Endpoint("appointment"),
		enqueuer: enqueuer,
		log:      log,
	}
}

func (p *AppointmentProcessor) Name() string         { return "appointment" }
func (p *AppointmentProcessor) Kind() signature.Kind { return signature.KindHMAC }
func (p *AppointmentProcessor) Secret() string       { return p.cfg.Secret }
func (p *AppointmentProcessor) AllowedIPs() []string { return p.cfg.AllowedIPs }

func (p *AppointmentProcessor) Process(ctx context.Context, payload map[string]any) (any, error) {
	event, _ := payload["event"].(string)
	if event == "" {
		return nil, fmt.Errorf("missing event field")
	}

	data, _ := payload["data"].(map[string]any)
	id, _ := data["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("missing appointment id")
	}

	switch event {
	case "appointment.created", "appointment.confirmed":
		p.queueConfirmation(ctx, id, data)
	case "appointment.canceled":
		p.queueCancellation(ctx, id, data)
	}

	return map[string]any{
		"processed":     true,
		"appointmentId": id,
		"event":         event,
	}, nil
}

func (p *AppointmentProcessor) queueConfirmation(ctx context.Context, id string, data map[string]any) {
	email, _ := data["patientEmail"].(string)
	if email == "" {
		return
	}
	// The appointment is acknowledged even when the notification cannot be
	// queued; the scheduler must not re-deliver over a local outbox error.
	if _, err := p.enqueuer.Enqueue(ctx, "email", email, "Confirmação de consulta", map[string]any{
		"appointmentId": id,
		"date":          data["date"],
		"time":          data["time"],
		"doctor":        data["doctor"],
	}); err != nil {
		p.log.Error("failed to queue confirmation email",
			zap.String("appointment_id", id), zap.Error(err))
	}
}

func (p *AppointmentProcessor) queueCancellation(ctx context.Context, id string, data map[string]any) {
	phone, _ := data["patientPhone"].(string)
	if phone == "" {
		return
	}
	if _, err := p.enqueuer.Enqueue(ctx, "sms", phone, "", map[string]any{
		"appointmentId": id,
		"date":          data["date"],
	}); err != nil {
		p.log.Error("failed to queue cancellation sms",
			zap.String("appointment_id", id), zap.Error(err))
	}
}
