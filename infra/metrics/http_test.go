package metrics

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wildguard/test/util"
)

func TestStartPromServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "wildguard_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartPromServer(ctx, addr, reg, nil) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, util.MetricTimeout)
	defer waitCancel()
	require.NoError(t, util.WaitForMetric(waitCtx, fmt.Sprintf("http://%s/metrics", addr), "wildguard_test_total 1"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
