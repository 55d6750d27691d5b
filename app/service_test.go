package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wildguard/config"
	"github.com/kilianp07/wildguard/core/eventlog"
	"github.com/kilianp07/wildguard/core/factory"
	"github.com/kilianp07/wildguard/core/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Boundary: model.Boundary{Name: "Yala Block 1", MinLat: 6.25, MaxLat: 6.45, MinLon: 81.30, MaxLon: 81.70},
		Stations: []model.Station{
			{ID: "Yala_HQ", Location: model.Location{Lat: 6.37, Lon: 81.52}, Terrain: "grassland",
				Vehicles: []model.Vehicle{{Name: "Rescue_Truck", SpeedKMH: 45}}, Equipment: []string{"capture_nets"}},
			{ID: "Buttawa", Location: model.Location{Lat: 6.388, Lon: 81.505}, Terrain: "scrubland",
				Vehicles: []model.Vehicle{{Name: "Patrol_Jeep_2", SpeedKMH: 65}}},
			{ID: "Palatupana", Location: model.Location{Lat: 6.281451, Lon: 81.412595}, Terrain: "road",
				Vehicles: []model.Vehicle{{Name: "4x4_Ambulance", SpeedKMH: 60}}},
		},
	}
	cfg.Dispatch.BidWindowMS = 500
	cfg.StageTOMS = 1000
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func startService(t *testing.T) (*Service, context.Context) {
	t.Helper()
	svc, err := New(testConfig(t), Options{DisableIO: true})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(func() {
		cancel()
		require.NoError(t, svc.Close())
	})
	svc.Start(ctx)
	return svc, ctx
}

func topics(recs []eventlog.Record) map[string]int {
	out := make(map[string]int)
	for _, r := range recs {
		out[r.Topic]++
	}
	return out
}

func TestIncidentFlowsThroughPipeline(t *testing.T) {
	svc, ctx := startService(t)

	inc, err := svc.Gateway.Submit(ctx, model.Incident{
		Species:  "elephant",
		Severity: model.SeverityCritical,
		Location: model.Location{Lat: 6.372, Lon: 81.517},
	})
	require.NoError(t, err)

	d, err := svc.AwaitDecision(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDispatched, d.Status)
	assert.Equal(t, "Yala_HQ", d.WinnerID)
	assert.Len(t, d.Ranked, 3)

	require.Eventually(t, func() bool {
		recs, err := eventlog.Timeline(ctx, svc.Recorder.Store(), inc.ID)
		if err != nil {
			return false
		}
		seen := topics(recs)
		return seen[model.TopicAssessment] == 1 && seen[model.TopicTreatment] == 1 &&
			seen[model.TopicNotification] == 1 && seen[model.TopicReasoning] == 1
	}, 5*time.Second, 20*time.Millisecond)

	recs, err := eventlog.Timeline(ctx, svc.Recorder.Store(), inc.ID)
	require.NoError(t, err)
	seen := topics(recs)
	assert.Equal(t, 1, seen[model.TopicIncidents])
	assert.Equal(t, 1, seen[model.TopicBidRequests])
	assert.Equal(t, 3, seen[model.TopicBids])
	assert.Equal(t, 1, seen[model.TopicDecisions])
	for i := 1; i < len(recs); i++ {
		assert.Less(t, recs[i-1].Seq, recs[i].Seq)
	}
	assert.Equal(t, model.TopicIncidents, recs[0].Topic)

	state, serving := svc.Stations[0].Availability()
	assert.Equal(t, model.AvailabilityDispatched, state)
	assert.Equal(t, inc.ID, serving)
}

func TestBusyStationLosesNextIncident(t *testing.T) {
	svc, ctx := startService(t)
	here := model.Location{Lat: 6.372, Lon: 81.517}

	first, err := svc.Gateway.Submit(ctx, model.Incident{Species: "leopard", Severity: model.SeverityHigh, Location: here})
	require.NoError(t, err)
	d1, err := svc.AwaitDecision(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "Yala_HQ", d1.WinnerID)

	second, err := svc.Gateway.Submit(ctx, model.Incident{Species: "bear", Severity: model.SeverityLow, Location: here})
	require.NoError(t, err)
	d2, err := svc.AwaitDecision(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDispatched, d2.Status)
	assert.NotEqual(t, "Yala_HQ", d2.WinnerID)
	assert.Equal(t, model.ReasonUnavailable, d2.Rejections["Yala_HQ"])

	require.NoError(t, svc.Bus.Publish(model.TopicMissionComplete,
		model.NewMessage("test", first.ID, model.MissionComplete{StationID: "Yala_HQ", IncidentID: first.ID})))
	require.Eventually(t, func() bool {
		state, _ := svc.Stations[0].Availability()
		return state == model.AvailabilityFree
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCaptureIncidentNeedsEquipment(t *testing.T) {
	svc, ctx := startService(t)
	inc, err := svc.Gateway.Submit(ctx, model.Incident{
		Species: "crocodile", Severity: model.SeverityHigh, RequiresCapture: true,
		Location: model.Location{Lat: 6.29, Lon: 81.42},
	})
	require.NoError(t, err)
	d, err := svc.AwaitDecision(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Yala_HQ", d.WinnerID)
	assert.Equal(t, model.ReasonLacksCapability, d.Rejections["Palatupana"])
}

func TestReportIsNormalizedAndDispatched(t *testing.T) {
	svc, ctx := startService(t)
	inc, degraded, err := svc.Gateway.SubmitReport(ctx, model.FieldReport{
		Text:     "Injured elephant trapped near the Buttawa tank",
		Location: model.Location{Lat: 6.389, Lon: 81.506},
		Reporter: model.ReporterRanger,
	})
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, "elephant", inc.Species)
	assert.True(t, inc.RequiresCapture)

	d, err := svc.AwaitDecision(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDispatched, d.Status)
}

func TestNewRejectsUnknownContentMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Content.Mode = "oracle"
	_, err := New(cfg, Options{DisableIO: true})
	assert.Error(t, err)
}

func TestRestartAppendsToPersistentLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventlog.db")
	here := model.Location{Lat: 6.372, Lon: 81.517}

	run := func(species string) (string, uint64) {
		cfg := testConfig(t)
		cfg.EventLog.Store = factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": path}}
		svc, err := New(cfg, Options{DisableIO: true})
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		svc.Start(ctx)

		inc, err := svc.Gateway.Submit(ctx, model.Incident{Species: species, Severity: model.SeverityHigh, Location: here})
		require.NoError(t, err)
		_, err = svc.AwaitDecision(ctx, inc.ID)
		require.NoError(t, err)
		var recs []eventlog.Record
		require.Eventually(t, func() bool {
			recs, err = eventlog.Timeline(ctx, svc.Recorder.Store(), inc.ID)
			return err == nil && topics(recs)[model.TopicDecisions] == 1
		}, 5*time.Second, 20*time.Millisecond)
		cancel()
		require.NoError(t, svc.Close())
		return inc.ID, recs[0].Seq
	}

	first, firstSeq := run("elephant")
	second, secondSeq := run("leopard")
	assert.Greater(t, secondSeq, firstSeq)

	s, err := eventlog.NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	for _, id := range []string{first, second} {
		recs, err := eventlog.Timeline(context.Background(), s, id)
		require.NoError(t, err)
		assert.Equal(t, 1, topics(recs)[model.TopicIncidents], id)
	}
}
