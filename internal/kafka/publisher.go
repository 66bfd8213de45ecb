package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
)

type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
	Source   string
}

// Message is the record value written for every queue event.
type Message struct {
	EventID    string       `json:"event_id"`
	Source     string       `json:"source"`
	OccurredAt time.Time    `json:"occurred_at"`
	Event      engine.Event `json:"event"`
}

// producer is the part of *kgo.Client the publisher uses.
type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// Publisher writes queue events to a Kafka topic, keyed by queue id so every
// event of a queue lands on the same partition in order.
type Publisher struct {
	client producer
	topic  string
	source string
	now    func() time.Time
	log    *zap.Logger
}

func NewPublisher(ctx context.Context, cfg Config, log *zap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "queue-events"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "pug-queue-backend"
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping kafka: %w", err)
	}
	return newPublisher(client, cfg, log), nil
}

func newPublisher(client producer, cfg Config, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	source := cfg.Source
	if source == "" {
		source = "pug-queue-backend"
	}
	return &Publisher{
		client: client,
		topic:  cfg.Topic,
		source: source,
		now:    time.Now,
		log:    log.Named("kafka"),
	}
}

// Publish hands ev to the client's buffer and returns. Delivery failures are
// logged from the produce callback.
func (p *Publisher) Publish(ctx context.Context, ev engine.Event) {
	msg := Message{
		EventID:    uuid.NewString(),
		Source:     p.source,
		OccurredAt: p.now().UTC(),
		Event:      ev,
	}
	value, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("failed to marshal event", zap.String("queue_id", ev.QueueID), zap.Error(err))
		return
	}

	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.QueueID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(msg.EventID)},
			{Key: "content_type", Value: []byte("application/json")},
		},
		Timestamp: msg.OccurredAt,
	}
	// The request context ends before the broker acks.
	p.client.Produce(context.WithoutCancel(ctx), rec, func(r *kgo.Record, err error) {
		if err != nil {
			p.log.Warn("failed to publish event",
				zap.String("queue_id", ev.QueueID),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
	})
}

// Close flushes buffered records and closes the client.
func (p *Publisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	if err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	return nil
}
