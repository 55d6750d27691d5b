package metrics

import "errors"

// MultiSink fans events out to multiple sinks. Every sink receives the event
// even when an earlier one fails.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordDecision(ev DecisionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordDecision(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordIncident(ev IncidentEvent) error {
	return forward(m.Sinks, func(r IncidentRecorder) error { return r.RecordIncident(ev) })
}

func (m *MultiSink) RecordBid(ev BidEvent) error {
	return forward(m.Sinks, func(r BidRecorder) error { return r.RecordBid(ev) })
}

func (m *MultiSink) RecordStage(ev StageEvent) error {
	return forward(m.Sinks, func(r StageRecorder) error { return r.RecordStage(ev) })
}

func (m *MultiSink) RecordDeliveryFailure(ev DeliveryFailureEvent) error {
	return forward(m.Sinks, func(r DeliveryFailureRecorder) error { return r.RecordDeliveryFailure(ev) })
}

// forward calls fn on every sink implementing R.
func forward[R any](sinks []MetricsSink, fn func(R) error) error {
	var errs []error
	for _, s := range sinks {
		if r, ok := s.(R); ok {
			errs = append(errs, fn(r))
		}
	}
	return errors.Join(errs...)
}
