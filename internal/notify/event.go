// Package notify fans Decider verdicts out to external observers as
// CloudEvents, adapted from the teacher's internal/events package:
// an in-process pub/sub bus for live subscribers (agentbusd's HTTP
// /tail side-channel) dual-published alongside a durable Pub/Sub
// topic for cross-service consumers.
package notify

import (
	"encoding/json"
	"fmt"
	"time"
)

// CloudEvent is the CloudEvents 1.0 envelope for every verdict AgentBus
// emits.
type CloudEvent struct {
	SpecVersion string                 `json:"specversion"`
	Type        string                 `json:"type"`
	Source      string                 `json:"source"`
	ID          string                 `json:"id"`
	Time        time.Time              `json:"time"`
	Subject     string                 `json:"subject,omitempty"`
	BusID       string                 `json:"busid,omitempty"`
	Data        map[string]interface{} `json:"data"`
}

// Event types emitted by the Decider.
const (
	TypeVerdictCommit = "agentbus.verdict.commit"
	TypeVerdictAbort  = "agentbus.verdict.abort"
)

func newCloudEvent(id uint64, eventType, source, busID string, data map[string]interface{}) *CloudEvent {
	return &CloudEvent{
		SpecVersion: "1.0",
		Type:        eventType,
		Source:      source,
		ID:          fmt.Sprintf("ce-%s-%d", busID, id),
		Time:        time.Now(),
		Subject:     fmt.Sprintf("intention-%d", id),
		BusID:       busID,
		Data:        data,
	}
}

// JSON serializes the event.
func (ce *CloudEvent) JSON() ([]byte, error) {
	return json.Marshal(ce)
}

// SSEFormat renders the event for a Server-Sent Events stream.
func (ce *CloudEvent) SSEFormat() ([]byte, error) {
	data, err := json.Marshal(ce)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\nid: %s\n\n", ce.Type, data, ce.ID)), nil
}
