// Package simulator generates synthetic field reports for demos and load
// tests, the way a ranger radio or camera trap would send them.
package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kilianp07/wildguard/core/geo"
	"github.com/kilianp07/wildguard/core/model"
)

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

// Publisher sends a report to the engine, typically over MQTT.
type Publisher interface {
	PublishReport(model.FieldReport) error
}

// Config holds parameters for report generation.
type Config struct {
	Boundary model.Boundary
	// Hotspots bias locations; reports fall inside a random hotspot's
	// radius when any are given.
	Hotspots []geo.Place
	Count    int
	Interval time.Duration
}

var species = []string{"elephant", "leopard", "bear", "crocodile", "buffalo", "deer", "boar"}

var situations = []string{
	"%s observed limping near the riverbank",
	"%s sighting on the main track, tourists stopping",
	"Injured %s lying by the waterhole",
	"%s trapped in a wire snare near the fence line",
	"Aggressive %s charging vehicles at the junction",
	"%s raiding crops at the village edge",
}

var reporters = []string{model.ReporterRanger, model.ReporterCitizen, model.ReporterSensor, model.ReporterCamera}

// Report returns one synthetic report inside cfg.Boundary.
func Report(cfg Config) model.FieldReport {
	sp := species[rng.Intn(len(species))]
	return model.FieldReport{
		Text:       fmt.Sprintf(situations[rng.Intn(len(situations))], sp),
		Location:   location(cfg),
		Reporter:   reporters[rng.Intn(len(reporters))],
		Source:     "simulator",
		ReceivedAt: time.Now().UTC(),
	}
}

func location(cfg Config) model.Location {
	b := cfg.Boundary
	if len(cfg.Hotspots) > 0 {
		h := cfg.Hotspots[rng.Intn(len(cfg.Hotspots))]
		// One degree of latitude is ~111 km.
		r := h.RadiusKM / 111 * rng.Float64()
		loc := model.Location{
			Lat: h.Location.Lat + (rng.Float64()*2-1)*r,
			Lon: h.Location.Lon + (rng.Float64()*2-1)*r,
		}
		if b.Contains(loc) {
			return loc
		}
	}
	return model.Location{
		Lat: b.MinLat + rng.Float64()*(b.MaxLat-b.MinLat),
		Lon: b.MinLon + rng.Float64()*(b.MaxLon-b.MinLon),
	}
}

// Run publishes cfg.Count reports, one per interval, or until ctx is done
// when Count is zero. It returns the number of reports sent.
func Run(ctx context.Context, cfg Config, pub Publisher) (int, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	t := time.NewTicker(cfg.Interval)
	defer t.Stop()
	sent := 0
	for cfg.Count == 0 || sent < cfg.Count {
		if err := pub.PublishReport(Report(cfg)); err != nil {
			return sent, err
		}
		sent++
		if cfg.Count > 0 && sent == cfg.Count {
			break
		}
		select {
		case <-ctx.Done():
			return sent, nil
		case <-t.C:
		}
	}
	return sent, nil
}
