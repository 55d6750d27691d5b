package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/wildguard/app"
	"github.com/kilianp07/wildguard/config"
	"github.com/kilianp07/wildguard/core/eventlog"
	"github.com/kilianp07/wildguard/core/factory"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/core/stage"
)

var incidentFlags struct {
	species  string
	severity string
	lat, lon float64
	capture  bool
	behavior string
	report   string
	wait     time.Duration
}

var incidentCmd = &cobra.Command{
	Use:   "incident",
	Short: "Run one incident through an in-process engine and print the outcome",
	Long: `Starts the engine without MQTT, HTTP or metrics endpoints, submits a single
incident (or a free-text report with --report) and prints the dispatch
decision followed by every stage result as JSON.`,
	RunE: runIncident,
}

func init() {
	f := incidentCmd.Flags()
	f.StringVar(&incidentFlags.species, "species", "elephant", "animal species")
	f.StringVar(&incidentFlags.severity, "severity", "high", "none, low, high or critical")
	f.Float64Var(&incidentFlags.lat, "lat", 0, "latitude, defaults to the boundary center")
	f.Float64Var(&incidentFlags.lon, "lon", 0, "longitude, defaults to the boundary center")
	f.BoolVar(&incidentFlags.capture, "capture", false, "incident requires capture equipment")
	f.StringVar(&incidentFlags.behavior, "behavior", "", "observed behavior")
	f.StringVar(&incidentFlags.report, "report", "", "free-text field report instead of a structured incident")
	f.DurationVar(&incidentFlags.wait, "wait", 30*time.Second, "maximum time to wait for the pipeline")
	rootCmd.AddCommand(incidentCmd)
}

// outcome is printed by the incident command.
type outcome struct {
	Incident model.Incident         `json:"incident"`
	Degraded bool                   `json:"normalization_degraded,omitempty"`
	Decision model.DispatchDecision `json:"decision"`
	Stages   []json.RawMessage      `json:"stages"`
}

func runIncident(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Keep the run self-contained.
	cfg.EventLog = eventlog.Config{Store: factory.ModuleConfig{Type: "memory"}}
	cfg.Ledger = config.LedgerConfig{Type: config.LedgerMemory}

	sev, err := model.ParseSeverity(incidentFlags.severity)
	if err != nil {
		return err
	}
	loc := model.Location{Lat: incidentFlags.lat, Lon: incidentFlags.lon}
	if loc == (model.Location{}) {
		loc = cfg.Boundary.Center()
	}

	svc, err := app.New(cfg, app.Options{DisableIO: true})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()
	ctx, cancel := context.WithTimeout(background(cmd), incidentFlags.wait)
	defer cancel()
	svc.Start(ctx)

	var out outcome
	if incidentFlags.report != "" {
		out.Incident, out.Degraded, err = svc.Gateway.SubmitReport(ctx, model.FieldReport{
			Text: incidentFlags.report, Location: loc, Reporter: model.ReporterRanger, Source: "cli",
		})
	} else {
		out.Incident, err = svc.Gateway.Submit(ctx, model.Incident{
			Species: incidentFlags.species, Severity: sev, Location: loc,
			Behavior: incidentFlags.behavior, RequiresCapture: incidentFlags.capture,
		})
	}
	if err != nil {
		return err
	}
	if out.Decision, err = svc.AwaitDecision(ctx, out.Incident.ID); err != nil {
		return fmt.Errorf("await decision: %w", err)
	}
	if out.Stages, err = awaitStages(ctx, svc, out.Incident.ID, out.Decision); err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// awaitStages waits until every stage that runs for d has published.
func awaitStages(ctx context.Context, svc *app.Service, incidentID string, d model.DispatchDecision) ([]json.RawMessage, error) {
	want := 0
	for _, s := range stage.All() {
		if d.Status == model.StatusDispatched || s.OnFailure {
			want++
		}
	}
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		recs, err := eventlog.Timeline(ctx, svc.Recorder.Store(), incidentID)
		if err != nil {
			return nil, err
		}
		var got []json.RawMessage
		for _, r := range recs {
			for _, s := range stage.All() {
				if r.Topic == s.Topic {
					got = append(got, r.Payload)
				}
			}
		}
		if len(got) >= want {
			return got, nil
		}
		select {
		case <-ctx.Done():
			return got, fmt.Errorf("await stages: %d of %d: %w", len(got), want, ctx.Err())
		case <-t.C:
		}
	}
}
