package scenarios

import (
	"context"
	"testing"
	"time"

	"github.com/kilianp07/wildguard/app"
	"github.com/kilianp07/wildguard/config"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/core/station"
)

// RunScenario replays sc against an in-process engine.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	cfg := &config.Config{Boundary: sc.Boundary.ToModel(sc.Name)}
	for _, s := range sc.Stations {
		cfg.Stations = append(cfg.Stations, s.ToModel())
	}
	cfg.Dispatch.BidWindowMS = 300
	cfg.StageTOMS = 500
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("scenario %s config: %v", sc.Name, err)
	}

	svc, err := app.New(cfg, app.Options{DisableIO: true})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer func() {
		cancel()
		if err := svc.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	}()
	svc.Start(ctx)

	for i, step := range sc.Steps {
		if step.Complete != "" {
			completeMission(ctx, t, svc, step.Complete)
			continue
		}
		inc, err := step.Incident.ToModel()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		inc, err = svc.Gateway.Submit(ctx, inc)
		if err != nil {
			t.Fatalf("step %d submit: %v", i, err)
		}
		d, err := svc.AwaitDecision(ctx, inc.ID)
		if err != nil {
			t.Fatalf("step %d decision: %v", i, err)
		}
		if string(d.Status) != step.Expected.Status {
			t.Errorf("scenario %s step %d: expected status %s, got %s (%s)", sc.Name, i, step.Expected.Status, d.Status, d.Reason)
		}
		if d.WinnerID != step.Expected.Winner {
			t.Errorf("scenario %s step %d: expected winner %q, got %q", sc.Name, i, step.Expected.Winner, d.WinnerID)
		}
	}
}

func completeMission(ctx context.Context, t *testing.T, svc *app.Service, stationID string) {
	t.Helper()
	a := findStation(svc.Stations, stationID)
	if a == nil {
		t.Fatalf("unknown station %s", stationID)
	}
	state, incidentID := a.Availability()
	if state != model.AvailabilityDispatched {
		t.Fatalf("station %s is not on a mission", stationID)
	}
	msg := model.NewMessage("qa", incidentID, model.MissionComplete{StationID: stationID, IncidentID: incidentID})
	if err := svc.Bus.Publish(model.TopicMissionComplete, msg); err != nil {
		t.Fatalf("publish completion: %v", err)
	}
	for {
		if s, _ := a.Availability(); s == model.AvailabilityFree {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("station %s never freed: %v", stationID, ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func findStation(agents []*station.Agent, id string) *station.Agent {
	for _, a := range agents {
		if a.Station().ID == id {
			return a
		}
	}
	return nil
}
