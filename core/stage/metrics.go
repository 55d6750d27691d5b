package stage

import "github.com/prometheus/client_golang/prometheus"

var (
	stageResults   *prometheus.CounterVec
	contentLatency *prometheus.HistogramVec
)

func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec) {
	res := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildguard_stage_results_total",
			Help: "Stage results by outcome",
		},
		[]string{"stage", "outcome"},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wildguard_content_request_seconds",
			Help:    "Content service latency including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	return res, lat
}

func init() {
	stageResults, contentLatency = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers stage metrics on reg, or the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(stageResults, contentLatency)
}

// ResetMetrics recreates the collectors for tests.
func ResetMetrics(reg prometheus.Registerer) {
	stageResults, contentLatency = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
