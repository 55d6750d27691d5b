package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Well-known topics.
const (
	TopicIncidents       = "incident.reported"
	TopicBidRequests     = "dispatch.bid_request"
	TopicBids            = "dispatch.bid"
	TopicLateBids        = "dispatch.late_bid"
	TopicDecisions       = "dispatch.decision"
	TopicMissionComplete = "station.mission_complete"
	TopicAssessment      = "stage.assessment"
	TopicTreatment       = "stage.treatment"
	TopicNotification    = "stage.notification"
	TopicReasoning       = "stage.reasoning"

	// TopicAll subscribes to every topic.
	TopicAll = "*"
)

// Message is the envelope carried by the broker. Seq is assigned on publish
// and is strictly increasing across all topics.
type Message struct {
	ID            string    `json:"id"`
	Topic         string    `json:"topic"`
	Sender        string    `json:"sender"`
	CorrelationID string    `json:"correlation_id"`
	Seq           uint64    `json:"seq"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload"`
}

// NewMessage builds an envelope with a fresh id.
func NewMessage(sender, correlationID string, payload any) Message {
	return Message{
		ID:            uuid.NewString(),
		Sender:        sender,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
		Payload:       payload,
	}
}

// PayloadAs extracts a typed payload. Payloads published in process arrive as
// values; payloads bridged from the wire arrive as raw JSON.
func PayloadAs[T any](msg Message) (T, error) {
	var zero T
	switch p := msg.Payload.(type) {
	case T:
		return p, nil
	case *T:
		if p == nil {
			return zero, fmt.Errorf("%s: nil payload", msg.Topic)
		}
		return *p, nil
	case json.RawMessage:
		return decodePayload[T](msg.Topic, p)
	case []byte:
		return decodePayload[T](msg.Topic, p)
	default:
		return zero, fmt.Errorf("%s: unexpected payload %T", msg.Topic, msg.Payload)
	}
}

func decodePayload[T any](topic string, data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%s: decode payload: %w", topic, err)
	}
	return v, nil
}
