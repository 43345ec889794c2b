package outbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service queues notifications and processes the delivery sweep.
type Service struct {
	cfg      Config
	store    Store
	renderer Renderer
	senders  map[string]Sender
	tracker  Tracker
	log      *zap.Logger
	rng      *rand.Rand
	now      func() time.Time
}

type ServiceOption func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithRand overrides the jitter source.
func WithRand(rng *rand.Rand) ServiceOption {
	return func(s *Service) {
		s.rng = rng
	}
}

func NewService(cfg Config, store Store, renderer Renderer, senders []Sender, tracker Tracker, log *zap.Logger, opts ...ServiceOption) *Service {
	byType := make(map[string]Sender, len(senders))
	for _, sender := range senders {
		byType[sender.Type()] = sender
	}

	s := &Service{
		cfg:      cfg,
		store:    store,
		renderer: renderer,
		senders:  byType,
		tracker:  tracker,
		log:      log.With(zap.String("component", "outbox")),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add validates, renders and persists a notification, returning its ID.
// Content is rendered here rather than at send time so retries replay the
// exact content that was queued.
func (s *Service) Add(ctx context.Context, req NewMessage) (string, error) {
	if req.Type == "" {
		return "", fmt.Errorf("message type is required")
	}
	if req.Recipient == "" {
		return "", fmt.Errorf("recipient is required")
	}

	content, err := s.renderer.Render(req.Type, req.TemplateData)
	if err != nil {
		return "", fmt.Errorf("failed to render message content: %w", err)
	}

	now := s.now()
	sendAfter := req.SendAfter
	if sendAfter.IsZero() {
		sendAfter = now
	}

	msg := Message{
		ID:           uuid.NewString(),
		Type:         req.Type,
		Recipient:    req.Recipient,
		Subject:      req.Subject,
		Content:      content,
		TemplateData: req.TemplateData,
		Status:       StatusPending,
		MaxRetries:   s.cfg.MaxRetries,
		SendAfter:    sendAfter,
		CreatedAt:    now,
	}
	if err := s.store.Insert(ctx, msg); err != nil {
		return "", err
	}

	s.log.Info("message queued",
		zap.String("id", msg.ID),
		zap.String("type", msg.Type),
		zap.Time("send_after", sendAfter))
	return msg.ID, nil
}

// Enqueue queues a notification for immediate delivery.
func (s *Service) Enqueue(ctx context.Context, messageType, recipient, subject string, templateData map[string]any) (string, error) {
	return s.Add(ctx, NewMessage{
		Type:         messageType,
		Recipient:    recipient,
		Subject:      subject,
		TemplateData: templateData,
	})
}

// Process delivers one batch of due messages. Failures are isolated per
// message; one undeliverable message never stops the rest of the batch.
func (s *Service) Process(ctx context.Context, batchSize int) (Result, error) {
	if batchSize <= 0 {
		batchSize = s.cfg.BatchSize
	}

	now := s.now()
	due, err := s.store.FetchDue(ctx, now, batchSize)
	if err != nil {
		return Result{}, err
	}

	result := Result{Total: len(due)}
	for _, msg := range due {
		if err := s.deliver(ctx, msg); err != nil {
			result.Failed++
			s.recordFailure(ctx, msg, err)
			continue
		}
		result.Processed++
		sentAt := s.now()
		if err := s.store.MarkSent(ctx, msg.ID, sentAt); err != nil {
			s.log.Error("failed to mark message as sent",
				zap.String("id", msg.ID), zap.Error(err))
			continue
		}
		msg.Status = StatusSent
		msg.SentAt = &sentAt
		s.tracker.Delivered(ctx, msg)
	}
	return result, nil
}

// deliver invokes the sender with panic isolation. A panicking provider or
// an unroutable message type is a permanent failure; an ordinary send error
// goes through the retry schedule.
func (s *Service) deliver(ctx context.Context, msg Message) error {
	sender, ok := s.senders[msg.Type]
	if !ok {
		return backoff.Permanent(fmt.Errorf("no sender registered for message type %q", msg.Type))
	}
	return s.send(ctx, sender, msg)
}

func (s *Service) send(ctx context.Context, sender Sender, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = backoff.Permanent(fmt.Errorf("sender panic: %v", r))
		}
	}()
	return sender.Send(ctx, msg)
}

func (s *Service) recordFailure(ctx context.Context, msg Message, deliveryErr error) {
	retryCount := msg.RetryCount + 1
	maxRetries := msg.MaxRetries
	if maxRetries <= 0 {
		// Rows persisted before the budget was stamped per message.
		maxRetries = s.cfg.MaxRetries
	}

	var permanent *backoff.PermanentError
	if errors.As(deliveryErr, &permanent) || retryCount >= maxRetries {
		s.log.Warn("message permanently failed",
			zap.String("id", msg.ID),
			zap.Int("retry_count", retryCount),
			zap.Error(deliveryErr))
		if err := s.store.MarkFailed(ctx, msg.ID, retryCount, deliveryErr.Error()); err != nil {
			s.log.Error("failed to mark message as failed",
				zap.String("id", msg.ID), zap.Error(err))
		}
		return
	}

	nextRetry := s.now().Add(nextRetryDelay(retryCount, msg.Type, s.rng))
	s.log.Warn("delivery failed, retry scheduled",
		zap.String("id", msg.ID),
		zap.Int("retry_count", retryCount),
		zap.Time("next_retry", nextRetry),
		zap.Error(deliveryErr))
	if err := s.store.MarkRetry(ctx, msg.ID, retryCount, nextRetry, deliveryErr.Error()); err != nil {
		s.log.Error("failed to schedule retry",
			zap.String("id", msg.ID), zap.Error(err))
	}
}

// RetryFailed re-queues permanently failed messages that still have retry
// budget. Operator escape hatch for recovery after a provider outage.
func (s *Service) RetryFailed(ctx context.Context) (int, error) {
	count, err := s.store.RequeueFailed(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("requeued failed messages", zap.Int("count", count))
	}
	return count, nil
}

// GetStats returns delivery statistics over the configured trailing window.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx, s.now().Add(-s.cfg.StatsWindow))
}
