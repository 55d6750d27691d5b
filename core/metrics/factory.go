package metrics

import (
	"fmt"

	"github.com/kilianp07/wildguard/core/factory"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]()

func init() {
	_ = RegisterMetricsSink("nop", func(map[string]any) (MetricsSink, error) {
		return NopSink{}, nil
	})
}

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// NewMetricsSink creates the configured sinks. No sinks yields a NopSink and
// several are combined into a MultiSink.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	sinks, err := sinkRegistry.CreateAll(cfgs, closeSink)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	switch len(sinks) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}

func closeSink(s MetricsSink) {
	if c, ok := s.(interface{ Close() }); ok {
		c.Close()
	}
}
