package kafka

import (
	"context"
	"encoding/json"
	"time"

	confluent "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/saraivavision/clinic-gateway/pkg/outbox"
	"go.uber.org/zap"
)

type deliveryEvent struct {
	MessageID  string     `json:"messageId"`
	Type       string     `json:"type"`
	Recipient  string     `json:"recipient"`
	RetryCount int        `json:"retryCount"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
}

// DeliveryTracker publishes an event per delivered outbox message so
// downstream consumers can follow notification flow without reading the
// outbox collection.
type DeliveryTracker struct {
	producer     Producer
	topic        string
	deliveryChan chan confluent.Event
	log          *zap.Logger
}

func NewDeliveryTracker(producer Producer, topic string, log *zap.Logger) *DeliveryTracker {
	return &DeliveryTracker{
		producer:     producer,
		topic:        topic,
		deliveryChan: make(chan confluent.Event, 256),
		log:          log.With(zap.String("component", "delivery-tracker")),
	}
}

func (t *DeliveryTracker) Delivered(_ context.Context, msg outbox.Message) {
	payload, err := json.Marshal(deliveryEvent{
		MessageID:  msg.ID,
		Type:       msg.Type,
		Recipient:  msg.Recipient,
		RetryCount: msg.RetryCount,
		SentAt:     msg.SentAt,
	})
	if err != nil {
		t.log.Error("failed to marshal delivery event", zap.Error(err))
		return
	}

	err = t.producer.Produce(&confluent.Message{
		TopicPartition: confluent.TopicPartition{Topic: &t.topic, Partition: confluent.PartitionAny},
		Key:            []byte(msg.ID),
		Value:          payload,
	}, t.deliveryChan)
	if err != nil {
		t.log.Error("failed to publish delivery event",
			zap.String("message_id", msg.ID), zap.Error(err))
	}
}

// Run consumes broker delivery reports so publish failures surface in the
// logs instead of silently filling the channel.
func (t *DeliveryTracker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-t.deliveryChan:
			msg, ok := event.(*confluent.Message)
			if !ok {
				continue
			}
			if msg.TopicPartition.Error != nil {
				t.log.Warn("delivery event not acknowledged",
					zap.String("key", string(msg.Key)),
					zap.Error(msg.TopicPartition.Error))
			}
		}
	}
}
