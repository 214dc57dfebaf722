// Package events publishes admission events to Kafka for downstream
// consumers (confirmation email, analytics). Publishing is best-effort by
// contract: a broker outage is logged and absorbed, never surfaced to the
// reservation path.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"examgate/internal/capacity/ports"
)

// DefaultTopic is the admission event stream.
const DefaultTopic = "examgate.seat.admitted"

// KafkaPublisher emits admission events through a franz-go producer.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type Option func(*KafkaPublisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

func WithTopic(topic string) Option {
	return func(p *KafkaPublisher) {
		p.topic = topic
	}
}

// NewKafkaPublisher connects a producer to the given brokers and ensures the
// topic exists.
func NewKafkaPublisher(ctx context.Context, brokers []string, opts ...Option) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	p := &KafkaPublisher{
		topic:  DefaultTopic,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(p.topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p.client = client

	if err := p.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

func (p *KafkaPublisher) ensureTopic(ctx context.Context) error {
	admin := kadm.NewClient(p.client)
	resp, err := admin.CreateTopics(ctx, 1, 1, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// Emit produces one admission event, keyed by session so per-session ordering
// holds within a partition. The caller decides whether to detach; Emit itself
// blocks until the broker acknowledges or ctx expires.
func (p *KafkaPublisher) Emit(ctx context.Context, event ports.AdmissionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal admission event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(fmt.Sprintf("%s:%s", event.ExamDate, event.SessionTime)),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce admission event: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, ports.AdmissionEvent) error { return nil }
