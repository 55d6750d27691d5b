package model

import "slices"

// Vehicle is one responder vehicle in a station roster.
type Vehicle struct {
	Name     string  `json:"name"`
	SpeedKMH float64 `json:"speed_kmh"`
}

// Station is the static description of a responder station. Availability is
// not part of the record; it is owned by the station's agent.
type Station struct {
	ID          string    `json:"id"`
	Location    Location  `json:"location"`
	Vehicles    []Vehicle `json:"vehicles"`
	Equipment   []string  `json:"equipment"`
	Staff       int       `json:"staff"`
	Terrain     string    `json:"terrain"`
	Description string    `json:"description,omitempty"`
}

// HasEquipment reports whether the station carries item.
func (s Station) HasEquipment(item string) bool {
	return slices.Contains(s.Equipment, item)
}

// Availability is the dispatch state of a station.
type Availability int

const (
	AvailabilityFree Availability = iota
	AvailabilityDispatched
)

func (a Availability) String() string {
	if a == AvailabilityDispatched {
		return "dispatched"
	}
	return "free"
}

// MissionComplete releases a dispatched station.
type MissionComplete struct {
	StationID  string `json:"station_id"`
	IncidentID string `json:"incident_id"`
}
