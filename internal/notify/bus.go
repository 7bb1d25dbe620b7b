package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Bus is an in-process pub/sub fan-out of CloudEvents, satisfying
// decider.Notifier via NotifyVerdict. Subscribers receive events in
// real time over a buffered channel; a slow subscriber drops events
// rather than stalling the Decider.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *CloudEvent
	allSubs     []chan *CloudEvent
	logger      *slog.Logger
	bufferSize  int
	source      string
}

// NewBus creates an in-memory event bus. source identifies this
// AgentBus instance in every emitted CloudEvent's Source field.
func NewBus(source string) *Bus {
	return &Bus{
		subscribers: make(map[string][]chan *CloudEvent),
		logger:      slog.Default(),
		bufferSize:  100,
		source:      source,
	}
}

// Subscribe returns a channel receiving events of the given types, or
// all events if eventTypes is empty.
func (b *Bus) Subscribe(eventTypes ...string) chan *CloudEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *CloudEvent, b.bufferSize)
	if len(eventTypes) == 0 {
		b.allSubs = append(b.allSubs, ch)
	} else {
		for _, et := range eventTypes {
			b.subscribers[et] = append(b.subscribers[et], ch)
		}
	}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(ch chan *CloudEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for et, subs := range b.subscribers {
		b.subscribers[et] = removeChan(subs, ch)
	}
	b.allSubs = removeChan(b.allSubs, ch)
	close(ch)
}

func removeChan(subs []chan *CloudEvent, ch chan *CloudEvent) []chan *CloudEvent {
	filtered := make([]chan *CloudEvent, 0, len(subs))
	for _, s := range subs {
		if s != ch {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// Publish delivers event to every matching subscriber, dropping it for
// any subscriber whose buffer is full.
func (b *Bus) Publish(event *CloudEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[event.Type] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("notify: subscriber buffer full, dropping event", "type", event.Type)
		}
	}
	for _, ch := range b.allSubs {
		select {
		case ch <- event:
		default:
		}
	}
}

// NotifyVerdict implements decider.Notifier: it builds and publishes a
// CloudEvent describing the committed or aborted intention.
func (b *Bus) NotifyVerdict(ctx context.Context, busID string, intentionID uint64, commit bool, reason string) {
	eventType := TypeVerdictAbort
	if commit {
		eventType = TypeVerdictCommit
	}
	event := newCloudEvent(intentionID, eventType, b.source, busID, map[string]interface{}{
		"intention_id": intentionID,
		"commit":       commit,
		"reason":       reason,
	})
	b.Publish(event)
}

// SubscriberCount reports the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := len(b.allSubs)
	for _, subs := range b.subscribers {
		count += len(subs)
	}
	return count
}
