package metrics

import (
	"time"
)

// DecisionEvent describes one published dispatch decision.
type DecisionEvent struct {
	IncidentID string
	Species    string
	Severity   string
	Status     string
	WinnerID   string
	ETAMinutes float64
	DistanceKM float64
	Bids       int
	Rejected   map[string]int
	Reason     string
	Time       time.Time
}

// MetricsSink records dispatch decisions for observability purposes.
type MetricsSink interface {
	RecordDecision(ev DecisionEvent) error
}

// IncidentEvent is an incident accepted by ingress.
type IncidentEvent struct {
	IncidentID      string
	Species         string
	Severity        string
	Reporter        string
	RequiresCapture bool
	Time            time.Time
}

// IncidentRecorder records accepted incidents.
type IncidentRecorder interface {
	RecordIncident(ev IncidentEvent) error
}

// BidEvent is a bid seen on the broker.
type BidEvent struct {
	IncidentID string
	StationID  string
	DistanceKM float64
	ETAMinutes float64
	Capable    bool
	Available  bool
	Time       time.Time
}

// BidRecorder records station bids.
type BidRecorder interface {
	RecordBid(ev BidEvent) error
}

// StageEvent is a downstream stage result.
type StageEvent struct {
	IncidentID string
	Stage      string
	Degraded   bool
	Attempts   int
	Time       time.Time
}

// StageRecorder records stage results.
type StageRecorder interface {
	RecordStage(ev StageEvent) error
}

// DeliveryFailureEvent is a message the broker could not deliver.
type DeliveryFailureEvent struct {
	Subscriber string
	Topic      string
	Seq        uint64
	Attempts   int
	Time       time.Time
}

// DeliveryFailureRecorder records broker delivery failures.
type DeliveryFailureRecorder interface {
	RecordDeliveryFailure(ev DeliveryFailureEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDecision(DecisionEvent) error { return nil }

func (NopSink) RecordIncident(IncidentEvent) error               { return nil }
func (NopSink) RecordBid(BidEvent) error                         { return nil }
func (NopSink) RecordStage(StageEvent) error                     { return nil }
func (NopSink) RecordDeliveryFailure(DeliveryFailureEvent) error { return nil }
