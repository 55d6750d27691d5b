package model

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the ordered urgency level of an incident.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityHigh
	SeverityCritical
)

// String returns the wire name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a wire name into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return SeverityNone, nil
	case "low":
		return SeverityLow, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityNone, &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", s)}
	}
}

// Valid reports whether s is one of the defined levels.
func (s Severity) Valid() bool { return s >= SeverityNone && s <= SeverityCritical }

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Location is a WGS84 coordinate in decimal degrees.
type Location struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}

func (l Location) String() string { return fmt.Sprintf("%.6f,%.6f", l.Lat, l.Lon) }

// Boundary is the rectangular operational area incidents must fall in.
type Boundary struct {
	Name   string  `json:"name"`
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether loc lies inside the boundary, edges included.
func (b Boundary) Contains(loc Location) bool {
	return loc.Lat >= b.MinLat && loc.Lat <= b.MaxLat &&
		loc.Lon >= b.MinLon && loc.Lon <= b.MaxLon
}

// Center returns the midpoint of the boundary.
func (b Boundary) Center() Location {
	return Location{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// Reporter categories accepted on ingress.
const (
	ReporterRanger  = "ranger"
	ReporterCitizen = "citizen"
	ReporterSensor  = "sensor"
	ReporterCamera  = "camera"
)

// Incident is a reported wildlife emergency. It is immutable once published.
type Incident struct {
	ID              string    `json:"id" validate:"required"`
	Location        Location  `json:"location"`
	Species         string    `json:"species" validate:"required"`
	Severity        Severity  `json:"severity"`
	Behavior        string    `json:"behavior,omitempty"`
	Reporter        string    `json:"reporter,omitempty" validate:"omitempty,oneof=ranger citizen sensor camera"`
	RequiresCapture bool      `json:"requires_capture"`
	ReportedAt      time.Time `json:"reported_at"`
}
