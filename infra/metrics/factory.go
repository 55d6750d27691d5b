package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/wildguard/core/factory"
	coremetrics "github.com/kilianp07/wildguard/core/metrics"
)

// InfluxConfig is the conf block of an "influx" sink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// Validate reports the first missing field.
func (c InfluxConfig) Validate() error {
	switch {
	case c.URL == "":
		return errors.New("influx sink: url is required")
	case c.Org == "" || c.Bucket == "":
		return errors.New("influx sink: org and bucket are required")
	}
	return nil
}

func newInfluxFromConf(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c InfluxConfig
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	// An unreachable server degrades to a NopSink rather than failing startup.
	return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
}

func init() {
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})
	_ = coremetrics.RegisterMetricsSink("influx", newInfluxFromConf)
}
