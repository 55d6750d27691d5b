// Package util provides helpers shared by the container-backed tests.
//
// RequireDocker skips a test unless DOCKER_AVAILABLE is set. StartMosquitto,
// StartInflux and StartContainer launch disposable brokers and databases and
// return their address with a cleanup function. WaitForMetric polls a
// Prometheus endpoint until a series shows up.
package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	MosquittoReadyTimeout = 5 * time.Second
	MetricTimeout         = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
`

// RequireDocker skips t when containers cannot be started.
func RequireDocker(t testing.TB) {
	t.Helper()
	if os.Getenv("DOCKER_AVAILABLE") == "" {
		t.Skip("DOCKER_AVAILABLE not set")
	}
}

// WaitForMetric polls metricsURL until substr appears in the exposition or
// ctx is done.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, metricsURL, nil)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			body, rerr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if rerr != nil {
				return fmt.Errorf("read metrics body: %w", rerr)
			}
			if strings.Contains(string(body), substr) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("metric %q not found: %w", substr, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// start runs req and returns the endpoint of its first exposed port with the
// given scheme ("" for host:port).
func start(ctx context.Context, req tc.ContainerRequest, scheme string) (string, func(), error) {
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = cont.Terminate(context.Background()) }
	endpoint, err := cont.Endpoint(ctx, scheme)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return endpoint, cleanup, nil
}

// StartMosquitto launches an anonymous Mosquitto broker and returns its
// tcp:// URL once a client can connect.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	broker, cleanup, err := start(ctx, tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			Reader:            strings.NewReader(mosquittoConf),
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}, "tcp")
	if err != nil {
		return "", nil, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := waitForMQTTReady(waitCtx, broker); err != nil {
		cleanup()
		return "", nil, err
	}
	return broker, cleanup, nil
}

// StartInflux launches InfluxDB 2.7 initialised with org, bucket and an
// admin token, and returns its http:// URL.
func StartInflux(ctx context.Context, org, bucket, token string) (string, func(), error) {
	return start(ctx, tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "wildguard",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "wildguard-test",
			"DOCKER_INFLUXDB_INIT_ORG":         org,
			"DOCKER_INFLUXDB_INIT_BUCKET":      bucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": token,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}, "http")
}

// StartContainer launches image with env, waits until port accepts
// connections, and returns "host:port".
func StartContainer(ctx context.Context, image, port string, env map[string]string) (string, func(), error) {
	return start(ctx, tc.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{port + "/tcp"},
		Env:          env,
		WaitingFor:   wait.ForListeningPort(nat.Port(port + "/tcp")),
	}, "")
}

func waitForMQTTReady(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("wildguard-probe")
	for {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
