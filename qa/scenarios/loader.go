package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/wildguard/core/model"
)

type BoundaryDef struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

func (b BoundaryDef) ToModel(name string) model.Boundary {
	return model.Boundary{Name: name, MinLat: b.MinLat, MaxLat: b.MaxLat, MinLon: b.MinLon, MaxLon: b.MaxLon}
}

type VehicleDef struct {
	Name     string  `yaml:"name"`
	SpeedKMH float64 `yaml:"speed_kmh"`
}

type StationDef struct {
	ID        string       `yaml:"id"`
	Lat       float64      `yaml:"lat"`
	Lon       float64      `yaml:"lon"`
	Terrain   string       `yaml:"terrain"`
	Vehicles  []VehicleDef `yaml:"vehicles"`
	Equipment []string     `yaml:"equipment,omitempty"`
}

func (s StationDef) ToModel() model.Station {
	st := model.Station{
		ID:        s.ID,
		Location:  model.Location{Lat: s.Lat, Lon: s.Lon},
		Terrain:   s.Terrain,
		Equipment: s.Equipment,
	}
	for _, v := range s.Vehicles {
		st.Vehicles = append(st.Vehicles, model.Vehicle{Name: v.Name, SpeedKMH: v.SpeedKMH})
	}
	return st
}

type IncidentDef struct {
	Species  string  `yaml:"species"`
	Severity string  `yaml:"severity"`
	Lat      float64 `yaml:"lat"`
	Lon      float64 `yaml:"lon"`
	Capture  bool    `yaml:"capture,omitempty"`
}

func (d IncidentDef) ToModel() (model.Incident, error) {
	sev, err := model.ParseSeverity(d.Severity)
	if err != nil {
		return model.Incident{}, err
	}
	return model.Incident{
		Species:         d.Species,
		Severity:        sev,
		Location:        model.Location{Lat: d.Lat, Lon: d.Lon},
		RequiresCapture: d.Capture,
	}, nil
}

// Step either reports an incident or completes the named station's mission.
type Step struct {
	Incident *IncidentDef `yaml:"incident,omitempty"`
	Complete string       `yaml:"complete,omitempty"`
	Expected Expected     `yaml:"expected"`
}

type Expected struct {
	Status string `yaml:"status"`
	Winner string `yaml:"winner,omitempty"`
}

type Scenario struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Boundary    BoundaryDef  `yaml:"boundary"`
	Stations    []StationDef `yaml:"stations"`
	Steps       []Step       `yaml:"steps"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	for i, st := range sc.Steps {
		if (st.Incident == nil) == (st.Complete == "") {
			return nil, fmt.Errorf("%s: step %d needs exactly one of incident or complete", path, i)
		}
	}
	return &sc, nil
}
