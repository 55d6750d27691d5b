package scenarios

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kilianp07/wildguard/core/model"
)

func TestScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("scenario replay runs full bid windows")
	}
	files, err := filepath.Glob("*.yaml")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no scenarios found")
	}
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			t.Fatalf("load %s: %v", f, err)
		}
		t.Run(sc.Name, func(t *testing.T) {
			RunScenario(t, sc)
		})
	}
}

func TestStationDefToModel(t *testing.T) {
	st := StationDef{
		ID: "Buttawa", Lat: 6.388, Lon: 81.505, Terrain: "scrubland",
		Vehicles:  []VehicleDef{{Name: "Patrol_Jeep_2", SpeedKMH: 65}},
		Equipment: []string{"capture_nets"},
	}.ToModel()
	if st.Location != (model.Location{Lat: 6.388, Lon: 81.505}) {
		t.Fatalf("unexpected location %+v", st.Location)
	}
	if len(st.Vehicles) != 1 || st.Vehicles[0].SpeedKMH != 65 {
		t.Fatalf("unexpected vehicles %+v", st.Vehicles)
	}
	if !st.HasEquipment("capture_nets") {
		t.Fatal("equipment lost")
	}
}

func TestIncidentDefToModel(t *testing.T) {
	inc, err := IncidentDef{Species: "elephant", Severity: "critical", Lat: 6.3, Lon: 81.5, Capture: true}.ToModel()
	if err != nil {
		t.Fatal(err)
	}
	if inc.Severity != model.SeverityCritical || !inc.RequiresCapture {
		t.Fatalf("unexpected incident %+v", inc)
	}
	if _, err := (IncidentDef{Species: "elephant", Severity: "apocalyptic"}).ToModel(); err == nil {
		t.Fatal("expected severity error")
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load("no-file.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte(":"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatal("expected unmarshal error")
	}
	ambiguous := filepath.Join(dir, "ambiguous.yaml")
	body := "name: x\nsteps:\n  - complete: A\n    incident: {species: deer}\n"
	if err := os.WriteFile(ambiguous, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(ambiguous); err == nil {
		t.Fatal("expected step validation error")
	}
}
