package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes events to a single Kafka topic, keyed by aggregate
// id so events of one booking stay ordered within a partition
type KafkaProducer struct {
	writer messageWriter
	topic  string
	logger *logrus.Logger
}

// NewKafkaProducer creates a synchronous producer for topic
func NewKafkaProducer(brokers []string, topic string, logger *logrus.Logger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &KafkaProducer{writer: writer, topic: topic, logger: logger}
}

// Publish writes one event
func (p *KafkaProducer) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"topic":      p.topic,
		"event_id":   event.ID,
		"event_type": event.Type,
	}).Debug("Event published")
	return nil
}

// Close flushes and closes the writer
func (p *KafkaProducer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// LogPublisher writes events to the log instead of a broker. Used when Kafka
// is disabled.
type LogPublisher struct {
	logger *logrus.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event *Event) error {
	p.logger.WithFields(logrus.Fields{
		"event_id":     event.ID,
		"event_type":   event.Type,
		"aggregate_id": event.AggregateID,
		"data":         string(event.Data),
	}).Info("Domain event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
