// Package eventlog persists every broker message in an append-only log that
// can be queried by incident and time range.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kilianp07/wildguard/core/model"
)

// Record is one logged message. Payload keeps the JSON form of the message
// payload so stores stay independent of payload types.
type Record struct {
	Seq           uint64          `json:"seq"`
	ID            string          `json:"id"`
	Topic         string          `json:"topic"`
	Sender        string          `json:"sender"`
	CorrelationID string          `json:"correlation_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// FromMessage converts a broker message into a Record.
func FromMessage(msg model.Message) (Record, error) {
	var raw json.RawMessage
	switch p := msg.Payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = json.RawMessage(p)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return Record{}, fmt.Errorf("encode %s#%d payload: %w", msg.Topic, msg.Seq, err)
		}
		raw = b
	}
	return Record{
		Seq:           msg.Seq,
		ID:            msg.ID,
		Topic:         msg.Topic,
		Sender:        msg.Sender,
		CorrelationID: msg.CorrelationID,
		Timestamp:     msg.Timestamp,
		Payload:       raw,
	}, nil
}

// Query filters records. Zero fields match everything.
type Query struct {
	IncidentID string
	Topic      string
	Start      time.Time
	End        time.Time
}

// Match reports whether r satisfies q.
func (q Query) Match(r Record) bool {
	if q.IncidentID != "" && r.CorrelationID != q.IncidentID {
		return false
	}
	if q.Topic != "" && r.Topic != q.Topic {
		return false
	}
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	return true
}

// Sink receives records. Exporters only implement Sink.
type Sink interface {
	Append(ctx context.Context, rec Record) error
	Close() error
}

// Store persists records and supports querying. Query returns records in
// sequence order.
type Store interface {
	Sink
	Query(ctx context.Context, q Query) ([]Record, error)
}

// SeqReporter is implemented by stores that can report their highest
// sequence number without a full scan.
type SeqReporter interface {
	LastSeq(ctx context.Context) (uint64, error)
}

// LastSeq returns the highest sequence number held by s, zero when empty.
// Broker sequences restart with the process, so a bus writing into an
// existing log must resume after this value.
func LastSeq(ctx context.Context, s Store) (uint64, error) {
	if r, ok := s.(SeqReporter); ok {
		return r.LastSeq(ctx)
	}
	recs, err := s.Query(ctx, Query{})
	if err != nil {
		return 0, err
	}
	var last uint64
	for _, r := range recs {
		if r.Seq > last {
			last = r.Seq
		}
	}
	return last, nil
}
