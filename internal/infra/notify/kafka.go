package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
)

// NewKafkaProducer creates a synchronous producer that waits for all
// in-sync replicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

// KafkaPublisher hands notifications to a downstream SMS worker through a
// topic. Messages are keyed by account id so one account's messages stay
// ordered.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher creates a publisher on topic.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Send publishes n as JSON.
func (p *KafkaPublisher) Send(ctx context.Context, n *domain.Notification) error {
	_, span := tracer.Start(ctx, "KafkaPublisher.Send")
	defer span.End()

	value, err := json.Marshal(n)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(n.AccountID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(n.Kind)},
		},
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		span.RecordError(err)
		return &domain.ErrExternalService{Service: "kafka", Err: err}
	}
	return nil
}

// Close flushes and closes the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
