package test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wildguard/config"
	"github.com/kilianp07/wildguard/core/model"
)

// yalaConfig returns a validated two-station configuration. mutate runs
// before defaults are applied.
func yalaConfig(t *testing.T, mutate func(*config.Config)) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Boundary: model.Boundary{Name: "Yala", MinLat: 6.25, MaxLat: 6.45, MinLon: 81.30, MaxLon: 81.70},
		Stations: []model.Station{
			{ID: "Yala_HQ", Location: model.Location{Lat: 6.37, Lon: 81.52}, Terrain: "grassland",
				Vehicles: []model.Vehicle{{Name: "Rescue_Truck", SpeedKMH: 45}}, Equipment: []string{"capture_nets"}},
			{ID: "Palatupana", Location: model.Location{Lat: 6.281451, Lon: 81.412595}, Terrain: "road",
				Vehicles: []model.Vehicle{{Name: "4x4_Ambulance", SpeedKMH: 60}}},
		},
	}
	cfg.Dispatch.BidWindowMS = 400
	cfg.StageTOMS = 1000
	if mutate != nil {
		mutate(cfg)
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}
