// Package geo holds the pure scoring functions used by station agents:
// great-circle distance, terrain-adjusted ETA and capability matching.
package geo

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/kilianp07/wildguard/core/model"
)

const (
	// EarthRadiusKM is the mean Earth radius used by DistanceKM.
	EarthRadiusKM = 6371.0
	// PrepMinutes is the fixed crew preparation time added to every ETA.
	PrepMinutes = 5.0
)

// ErrConfiguration is wrapped by every roster or terrain table error.
var ErrConfiguration = errors.New("configuration error")

// ErrInvalidVehicle is returned for vehicles that cannot move.
var ErrInvalidVehicle = errors.New("invalid vehicle")

// CaptureEquipment lists equipment tokens that satisfy a capture requirement.
var CaptureEquipment = []string{"capture_nets", "capture_equipment"}

// DistanceKM returns the haversine great-circle distance between a and b.
func DistanceKM(a, b model.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKM * c
}

// ETAMinutes converts a distance into minutes to arrive, including PrepMinutes.
func ETAMinutes(distanceKM, speedKMH, terrainFactor float64) (float64, error) {
	if speedKMH <= 0 || math.IsNaN(speedKMH) {
		return 0, fmt.Errorf("%w: speed %.2f km/h", ErrInvalidVehicle, speedKMH)
	}
	if terrainFactor <= 0 || math.IsNaN(terrainFactor) {
		return 0, fmt.Errorf("%w: terrain factor %.2f", ErrConfiguration, terrainFactor)
	}
	hours := (distanceKM / speedKMH) / terrainFactor
	return hours*60 + PrepMinutes, nil
}

// CapabilityMatch reports whether equipment satisfies the incident's capture
// requirement. Incidents that need no capture always match.
func CapabilityMatch(required bool, equipment []string) bool {
	if !required {
		return true
	}
	for _, item := range CaptureEquipment {
		if slices.Contains(equipment, item) {
			return true
		}
	}
	return false
}

// VehicleETA is the fastest vehicle a station can send.
type VehicleETA struct {
	Vehicle    model.Vehicle
	ETAMinutes float64
}

// BestVehicle returns the roster vehicle with the lowest ETA. Ties keep the
// earlier vehicle.
func BestVehicle(vehicles []model.Vehicle, distanceKM, terrainFactor float64) (VehicleETA, error) {
	if len(vehicles) == 0 {
		return VehicleETA{}, fmt.Errorf("%w: no vehicles", ErrConfiguration)
	}
	best := VehicleETA{ETAMinutes: math.Inf(1)}
	for _, v := range vehicles {
		eta, err := ETAMinutes(distanceKM, v.SpeedKMH, terrainFactor)
		if err != nil {
			return VehicleETA{}, fmt.Errorf("vehicle %s: %w", v.Name, err)
		}
		if eta < best.ETAMinutes {
			best = VehicleETA{Vehicle: v, ETAMinutes: eta}
		}
	}
	return best, nil
}
