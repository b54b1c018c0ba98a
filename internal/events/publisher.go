package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"exam-session-service/internal/domain"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PublisherConfig holds configuration for the result publisher.
type PublisherConfig struct {
	// KafkaBrokers selects Kafka; when empty results go to an in-process channel.
	KafkaBrokers []string
	Topic        string
	Logger       zerolog.Logger
}

// ResultPublisher publishes submitted results through watermill.
type ResultPublisher struct {
	publisher message.Publisher
	topic     string
	log       zerolog.Logger
	now       func() time.Time
}

// NewResultPublisher builds a Kafka-backed publisher, or an in-process one
// when no brokers are configured.
func NewResultPublisher(cfg PublisherConfig) (*ResultPublisher, error) {
	wmLogger := NewLoggerAdapter(cfg.Logger)

	var publisher message.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		p, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			Marshaler: kafka.NewWithPartitioningMarshaler(partitionBySession),
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("create kafka publisher: %w", err)
		}
		publisher = p
	} else {
		publisher = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
	}
	return NewResultPublisherWith(publisher, cfg.Topic, cfg.Logger), nil
}

// NewResultPublisherWith wraps an existing watermill publisher.
func NewResultPublisherWith(publisher message.Publisher, topic string, log zerolog.Logger) *ResultPublisher {
	return &ResultPublisher{
		publisher: publisher,
		topic:     topic,
		log:       log.With().Str("component", "result_publisher").Logger(),
		now:       time.Now,
	}
}

// PublishResult emits an EventResultSubmitted message.
func (p *ResultPublisher) PublishResult(ctx context.Context, result domain.Result) error {
	envelope := Envelope{
		ID:        uuid.NewString(),
		Type:      EventResultSubmitted,
		Timestamp: p.now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      NewResultSubmitted(result),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal result event: %w", err)
	}

	msg := message.NewMessage(envelope.ID, body)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", string(envelope.Type))
	msg.Metadata.Set("source", envelope.Source)
	msg.Metadata.Set("version", envelope.Version)
	msg.Metadata.Set("timestamp", envelope.Timestamp.Format(time.RFC3339))
	msg.Metadata.Set(partitionKeyMetadata, result.SessionID)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish result event: %w", err)
	}
	p.log.Debug().
		Str("event_id", envelope.ID).
		Str("session_id", result.SessionID).
		Str("topic", p.topic).
		Msg("published result event")
	return nil
}

const partitionKeyMetadata = "partition_key"

// partitionBySession keeps every event of one attempt on one partition.
func partitionBySession(_ string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(partitionKeyMetadata), nil
}

// Close closes the publisher and releases resources.
func (p *ResultPublisher) Close() error {
	return p.publisher.Close()
}
