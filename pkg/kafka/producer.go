package kafka

import (
	"fmt"

	confluent "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

type Producer interface {
	Produce(message *confluent.Message, deliveryChan chan confluent.Event) error
	Close()
}

type producer struct {
	producer *confluent.Producer
	log      *zap.Logger
}

func NewProducer(conf Config, log *zap.Logger) (Producer, error) {
	p, err := confluent.NewProducer(&confluent.ConfigMap{
		"bootstrap.servers": conf.Brokers,
		"client.id":         conf.ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return &producer{producer: p, log: log}, nil
}

func (p *producer) Produce(message *confluent.Message, deliveryChan chan confluent.Event) error {
	if err := p.producer.Produce(message, deliveryChan); err != nil {
		return fmt.Errorf("failed to send message to topic %s: %w", message.TopicPartition, err)
	}
	return nil
}

func (p *producer) Close() {
	p.producer.Close()
}
