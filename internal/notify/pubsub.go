package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
)

// PubSubBus wraps an in-memory Bus and additionally publishes every
// verdict to a Google Cloud Pub/Sub topic for durable, cross-service
// delivery, mirroring the teacher's dual in-memory/Pub/Sub fan-out.
type PubSubBus struct {
	*Bus

	client *pubsub.Client
	topic  *pubsub.Topic
	logger *slog.Logger
}

// NewPubSubBus creates a Pub/Sub-backed notifier, creating topicID
// under projectID if it doesn't already exist.
func NewPubSubBus(ctx context.Context, projectID, topicID, source string) (*PubSubBus, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("notify: pubsub.NewClient: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("notify: topic.Exists: %w", err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("notify: CreateTopic: %w", err)
		}
	}
	topic.EnableMessageOrdering = true

	return &PubSubBus{
		Bus:    NewBus(source),
		client: client,
		topic:  topic,
		logger: slog.Default(),
	}, nil
}

// NotifyVerdict publishes the verdict to Pub/Sub (durable) and then
// fans it out to in-memory subscribers (the tail side-channel).
func (p *PubSubBus) NotifyVerdict(ctx context.Context, busID string, intentionID uint64, commit bool, reason string) {
	eventType := TypeVerdictAbort
	if commit {
		eventType = TypeVerdictCommit
	}
	event := newCloudEvent(intentionID, eventType, p.Bus.source, busID, map[string]interface{}{
		"intention_id": intentionID,
		"commit":       commit,
		"reason":       reason,
	})

	p.publishToPubSub(ctx, event)
	p.Bus.Publish(event)
}

func (p *PubSubBus) publishToPubSub(ctx context.Context, event *CloudEvent) {
	data, err := event.JSON()
	if err != nil {
		p.logger.Error("notify: failed to marshal event", "id", event.ID, "err", err)
		return
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"ce-specversion": event.SpecVersion,
			"ce-type":        event.Type,
			"ce-source":      event.Source,
			"ce-id":          event.ID,
			"ce-time":        event.Time.Format(time.RFC3339Nano),
			"ce-busid":       event.BusID,
		},
		OrderingKey: event.BusID,
	}

	result := p.topic.Publish(ctx, msg)
	go func() {
		if _, err := result.Get(context.Background()); err != nil {
			p.logger.Error("notify: pubsub publish failed", "id", event.ID, "err", err)
		}
	}()
}

// Close shuts down the Pub/Sub client.
func (p *PubSubBus) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("notify: pubsub client close: %w", err)
	}
	return nil
}

// HealthCheck verifies the configured topic is reachable.
func (p *PubSubBus) HealthCheck(ctx context.Context) error {
	exists, err := p.topic.Exists(ctx)
	if err != nil {
		return fmt.Errorf("notify: topic health check: %w", err)
	}
	if !exists {
		return fmt.Errorf("notify: topic does not exist")
	}
	return nil
}
