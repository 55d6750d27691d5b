package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// collectors are the coordinator's Prometheus series.
type collectors struct {
	bidWindow  *prometheus.HistogramVec
	decisions  *prometheus.CounterVec
	rejections *prometheus.CounterVec
	bids       prometheus.Counter
	lateBids   prometheus.Counter
	openRounds prometheus.Gauge
	reserved   prometheus.Gauge
}

var met = newCollectors()

func newCollectors() *collectors {
	return &collectors{
		bidWindow: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wildguard_bid_window_seconds",
			Help:    "Time from bid request to dispatch decision",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		}, []string{"status"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildguard_decisions_total",
			Help: "Dispatch decisions published",
		}, []string{"status"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildguard_bid_rejections_total",
			Help: "Bids rejected during selection",
		}, []string{"reason"}),
		bids: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wildguard_bids_received_total",
			Help: "Bids accepted inside a bid window",
		}),
		lateBids: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wildguard_late_bids_total",
			Help: "Bids received after their window closed",
		}),
		openRounds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wildguard_open_bid_windows",
			Help: "Incidents currently collecting bids",
		}),
		reserved: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wildguard_reserved_stations",
			Help: "Stations awarded a mission and not yet complete",
		}),
	}
}

func (m *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{m.bidWindow, m.decisions, m.rejections, m.bids, m.lateBids, m.openRounds, m.reserved}
}

func init() {
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on reg, or on
// prometheus.DefaultRegisterer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(met.all()...)
}

// ResetMetrics replaces the collectors with fresh ones, registering them on
// reg when it is not nil. Tests use it to start from zero.
func ResetMetrics(reg prometheus.Registerer) {
	met = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
