package geo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wildguard/core/model"
)

var (
	palatupana = model.Location{Lat: 6.281451, Lon: 81.412595}
	yalaHQ     = model.Location{Lat: 6.37, Lon: 81.52}
)

func TestDistanceKM(t *testing.T) {
	assert.InDelta(t, 111.19, DistanceKM(model.Location{}, model.Location{Lon: 1}), 0.01)
	assert.InDelta(t, 15.42, DistanceKM(palatupana, yalaHQ), 0.01)
}

func TestDistanceSymmetryAndIdentity(t *testing.T) {
	points := []model.Location{palatupana, yalaHQ, {Lat: 6.442565, Lon: 81.572456}, {Lat: -33.9, Lon: 151.2}}
	for _, a := range points {
		assert.Zero(t, DistanceKM(a, a))
		for _, b := range points {
			assert.InDelta(t, DistanceKM(a, b), DistanceKM(b, a), 1e-9)
		}
	}
}

func TestETAMinutes(t *testing.T) {
	eta, err := ETAMinutes(10, 60, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, eta, 1e-9)

	eta, err = ETAMinutes(0, 60, 0.3)
	require.NoError(t, err)
	assert.InDelta(t, PrepMinutes, eta, 1e-9)

	eta, err = ETAMinutes(10, 60, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 55.0, eta, 1e-9)
}

func TestETAMonotonic(t *testing.T) {
	prev := 0.0
	for d := 0.0; d <= 50; d += 2.5 {
		eta, err := ETAMinutes(d, 65, 0.7)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, eta, prev)
		prev = eta
	}
	slow, _ := ETAMinutes(10, 45, 1)
	fast, _ := ETAMinutes(10, 80, 1)
	assert.Less(t, fast, slow)
}

func TestETAInvalidVehicle(t *testing.T) {
	_, err := ETAMinutes(10, 0, 1)
	assert.True(t, errors.Is(err, ErrInvalidVehicle))
	_, err = ETAMinutes(10, -5, 1)
	assert.True(t, errors.Is(err, ErrInvalidVehicle))
}

func TestTerrainFactor(t *testing.T) {
	tbl := DefaultTerrain()
	for name, want := range map[string]float64{
		"forest": 0.3, "wetland": 0.2, "grassland": 1.0, "road": 1.5, "scrubland": 0.7,
	} {
		f, err := tbl.Factor(name)
		require.NoError(t, err)
		assert.Equal(t, want, f, name)
	}
	_, err := tbl.Factor("lava")
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.NoError(t, tbl.Validate())
	assert.Error(t, TerrainTable{}.Validate())
	assert.Error(t, TerrainTable{"road": 0}.Validate())
}

func TestCapabilityMatch(t *testing.T) {
	assert.True(t, CapabilityMatch(false, nil))
	assert.True(t, CapabilityMatch(false, []string{"radio"}))
	assert.False(t, CapabilityMatch(true, []string{"radio", "GPS"}))
	assert.True(t, CapabilityMatch(true, []string{"radio", "capture_nets"}))
}

func TestBestVehicle(t *testing.T) {
	vs := []model.Vehicle{
		{Name: "Rescue_Truck", SpeedKMH: 45},
		{Name: "Motorcycle", SpeedKMH: 80},
		{Name: "Bike2", SpeedKMH: 80},
	}
	best, err := BestVehicle(vs, 12, 0.7)
	require.NoError(t, err)
	assert.Equal(t, "Motorcycle", best.Vehicle.Name)

	_, err = BestVehicle(nil, 1, 1)
	assert.True(t, errors.Is(err, ErrConfiguration))
	_, err = BestVehicle([]model.Vehicle{{Name: "broken"}}, 1, 1)
	assert.True(t, errors.Is(err, ErrInvalidVehicle))
}

func TestValidateRoster(t *testing.T) {
	ok := model.Station{ID: "A", Terrain: "road", Vehicles: []model.Vehicle{{Name: "v", SpeedKMH: 50}}}
	assert.NoError(t, ValidateRoster([]model.Station{ok}, DefaultTerrain()))

	bad := ok
	bad.Terrain = "glacier"
	assert.True(t, errors.Is(ValidateRoster([]model.Station{bad}, DefaultTerrain()), ErrConfiguration))
	assert.Error(t, ValidateRoster([]model.Station{ok, ok}, DefaultTerrain()))
	assert.Error(t, ValidateRoster(nil, DefaultTerrain()))
}

func TestGazetteer(t *testing.T) {
	g := NewGazetteer([]Place{
		{Name: "Elephant_Gathering", Location: model.Location{Lat: 6.35, Lon: 81.52}, RadiusKM: 3},
		{Name: "Leopard_Rock", Location: model.Location{Lat: 6.40, Lon: 81.48}, RadiusKM: 2.5},
	})
	assert.Equal(t, "Elephant_Gathering", g.Describe(model.Location{Lat: 6.351, Lon: 81.521}))
	assert.Contains(t, g.Describe(model.Location{Lat: 6.44, Lon: 81.40}), "near Leopard_Rock")

	var empty *Gazetteer
	assert.Equal(t, "6.350000,81.520000", empty.Describe(model.Location{Lat: 6.35, Lon: 81.52}))
}
