// Package events publishes payment lifecycle events to Kafka. Publishing is
// best effort: a broker outage never fails the payment path.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/edupay/feepay/internal/model"

	"github.com/IBM/sarama"
)

const (
	TopicPaymentRecorded  = "payments.recorded"
	TopicPaymentCompleted = "payments.completed"
)

type Publisher interface {
	PaymentRecorded(p model.Payment)
	PaymentCompleted(paymentID int64)
	Close() error
}

type paymentCompletedEvent struct {
	PaymentID   int64     `json:"paymentId"`
	CompletedAt time.Time `json:"completedAt"`
}

// Kafka publishes events through a synchronous producer, acked by all
// in-sync replicas.
type Kafka struct {
	producer sarama.SyncProducer
	logger   *slog.Logger
}

func NewKafka(brokers []string, logger *slog.Logger) (*Kafka, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return &Kafka{producer: producer, logger: logger}, nil
}

func (k *Kafka) PaymentRecorded(p model.Payment) {
	k.publish(TopicPaymentRecorded, p)
}

func (k *Kafka) PaymentCompleted(paymentID int64) {
	k.publish(TopicPaymentCompleted, paymentCompletedEvent{
		PaymentID:   paymentID,
		CompletedAt: time.Now().UTC(),
	})
}

func (k *Kafka) publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		k.logger.Error("failed to marshal event", "topic", topic, "error", err)
		return
	}
	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		k.logger.Error("failed to publish event", "topic", topic, "error", err)
	}
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}

// Nop is used when no broker is configured.
type Nop struct{}

func (Nop) PaymentRecorded(model.Payment) {}
func (Nop) PaymentCompleted(int64)        {}
func (Nop) Close() error                  { return nil }
