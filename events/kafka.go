// Package events publishes sale notifications to downstream consumers.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/arkantrust/vending-checkout/models"
)

// DefaultSaleTopic is used when no topic is configured.
const DefaultSaleTopic = "vending.sale.recorded"

// Notifier is told about every sale once it has been committed.
type Notifier interface {
	SaleRecorded(sale models.Sale) error
}

// KafkaPublisher writes one message per sale, keyed by machine id so all
// sales from the same machine land on the same partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher dials the brokers with a synchronous producer that waits
// for all in-sync replicas.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultSaleTopic
	}
	return &KafkaPublisher{producer: producer, topic: topic}
}

// SaleRecorded publishes sale as JSON and waits for the broker ack.
func (p *KafkaPublisher) SaleRecorded(sale models.Sale) error {
	data, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("marshal sale %s: %w", sale.ID, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(sale.MachineID),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish sale %s: %w", sale.ID, err)
	}
	return nil
}

// Close shuts down the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
