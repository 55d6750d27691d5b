package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/wildguard/core/metrics"
	"github.com/kilianp07/wildguard/infra/logger"
)

// InfluxSink writes engine events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDecision writes one dispatch_decision point.
func (s *InfluxSink) RecordDecision(ev coremetrics.DecisionEvent) error {
	p := write.NewPointWithMeasurement("dispatch_decision").
		AddTag("incident_id", ev.IncidentID).
		AddTag("status", ev.Status).
		AddTag("severity", ev.Severity).
		AddTag("component", "coordinator")
	if ev.WinnerID != "" {
		p = p.AddTag("station_id", ev.WinnerID).
			AddField("eta_minutes", round3(ev.ETAMinutes)).
			AddField("distance_km", round3(ev.DistanceKM))
	}
	if ev.Reason != "" {
		p = p.AddField("reason", ev.Reason)
	}
	p = p.AddField("bids", ev.Bids).SetTime(ev.Time)
	return s.write(p)
}

// RecordIncident writes an incident_reported point.
func (s *InfluxSink) RecordIncident(ev coremetrics.IncidentEvent) error {
	p := write.NewPointWithMeasurement("incident_reported").
		AddTag("species", ev.Species).
		AddTag("severity", ev.Severity).
		AddTag("component", "ingress")
	if ev.Reporter != "" {
		p = p.AddTag("reporter", ev.Reporter)
	}
	p = p.AddField("incident_id", ev.IncidentID).
		AddField("requires_capture", ev.RequiresCapture).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordBid writes a station_bid point.
func (s *InfluxSink) RecordBid(ev coremetrics.BidEvent) error {
	p := write.NewPointWithMeasurement("station_bid").
		AddTag("station_id", ev.StationID).
		AddTag("incident_id", ev.IncidentID).
		AddTag("available", strconv.FormatBool(ev.Available)).
		AddField("eta_minutes", round3(ev.ETAMinutes)).
		AddField("distance_km", round3(ev.DistanceKM)).
		AddField("capable", ev.Capable).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordStage writes a stage_result point.
func (s *InfluxSink) RecordStage(ev coremetrics.StageEvent) error {
	p := write.NewPointWithMeasurement("stage_result").
		AddTag("stage", ev.Stage).
		AddTag("incident_id", ev.IncidentID).
		AddField("degraded", ev.Degraded).
		AddField("attempts", ev.Attempts).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordDeliveryFailure writes a delivery_failure point.
func (s *InfluxSink) RecordDeliveryFailure(ev coremetrics.DeliveryFailureEvent) error {
	p := write.NewPointWithMeasurement("delivery_failure").
		AddTag("subscriber", ev.Subscriber).
		AddTag("topic", ev.Topic).
		AddField("seq", int64(ev.Seq)).
		AddField("attempts", ev.Attempts).
		SetTime(ev.Time)
	return s.write(p)
}

// Close flushes and closes the client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
