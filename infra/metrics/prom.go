package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/wildguard/core/metrics"
)

// PromSink records engine events in Prometheus metrics.
type PromSink struct {
	incidents  *prometheus.CounterVec
	bids       *prometheus.CounterVec
	eta        *prometheus.HistogramVec
	decisions  *prometheus.CounterVec
	stages     *prometheus.CounterVec
	deliveries *prometheus.CounterVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		incidents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildguard_incidents_total",
			Help: "Incidents accepted by ingress",
		}, []string{"species", "severity"}),
		bids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildguard_station_bids_total",
			Help: "Bids submitted per station",
		}, []string{"station_id", "available", "capable"}),
		eta: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wildguard_winner_eta_minutes",
			Help:    "Estimated arrival time of the dispatched station",
			Buckets: []float64{5, 10, 15, 20, 30, 45, 60, 90, 120},
		}, []string{"severity"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildguard_dispatches_total",
			Help: "Dispatch outcomes per station",
		}, []string{"status", "station_id"}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildguard_stage_outputs_total",
			Help: "Stage outputs seen on the broker",
		}, []string{"stage", "degraded"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildguard_delivery_failures_total",
			Help: "Messages the broker failed to deliver",
		}, []string{"subscriber", "topic"}),
	}
	var err error
	if s.incidents, err = register(reg, s.incidents); err != nil {
		return nil, err
	}
	if s.bids, err = register(reg, s.bids); err != nil {
		return nil, err
	}
	if s.eta, err = register(reg, s.eta); err != nil {
		return nil, err
	}
	if s.decisions, err = register(reg, s.decisions); err != nil {
		return nil, err
	}
	if s.stages, err = register(reg, s.stages); err != nil {
		return nil, err
	}
	if s.deliveries, err = register(reg, s.deliveries); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when c was registered
// before.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) RecordDecision(ev coremetrics.DecisionEvent) error {
	s.decisions.WithLabelValues(ev.Status, ev.WinnerID).Inc()
	if ev.WinnerID != "" {
		s.eta.WithLabelValues(ev.Severity).Observe(ev.ETAMinutes)
	}
	return nil
}

func (s *PromSink) RecordIncident(ev coremetrics.IncidentEvent) error {
	s.incidents.WithLabelValues(ev.Species, ev.Severity).Inc()
	return nil
}

func (s *PromSink) RecordBid(ev coremetrics.BidEvent) error {
	s.bids.WithLabelValues(ev.StationID, strconv.FormatBool(ev.Available), strconv.FormatBool(ev.Capable)).Inc()
	return nil
}

func (s *PromSink) RecordStage(ev coremetrics.StageEvent) error {
	s.stages.WithLabelValues(ev.Stage, strconv.FormatBool(ev.Degraded)).Inc()
	return nil
}

func (s *PromSink) RecordDeliveryFailure(ev coremetrics.DeliveryFailureEvent) error {
	s.deliveries.WithLabelValues(ev.Subscriber, ev.Topic).Inc()
	return nil
}
