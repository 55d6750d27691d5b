// Package metrics defines the sink interfaces used to record engine events.
// Sinks like the Prometheus and InfluxDB sinks in infra/metrics record
// incidents, bids, decisions and stage results and can be combined with
// NewMultiSink. NewMetricsSink returns a MultiSink automatically when
// several sinks are configured.
package metrics
