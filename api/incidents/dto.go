package incidents

import (
	"time"

	"github.com/kilianp07/wildguard/core/model"
)

// IncidentRequest is the body of POST /api/incidents.
type IncidentRequest struct {
	ID              string         `json:"id,omitempty"`
	Species         string         `json:"species" validate:"required,max=100"`
	Severity        model.Severity `json:"severity"`
	Location        model.Location `json:"location"`
	Behavior        string         `json:"behavior,omitempty" validate:"max=500"`
	Reporter        string         `json:"reporter,omitempty" validate:"omitempty,oneof=ranger citizen sensor camera"`
	RequiresCapture bool           `json:"requires_capture"`
}

func (r IncidentRequest) toModel() model.Incident {
	return model.Incident{
		ID:              r.ID,
		Location:        r.Location,
		Species:         r.Species,
		Severity:        r.Severity,
		Behavior:        r.Behavior,
		Reporter:        r.Reporter,
		RequiresCapture: r.RequiresCapture,
	}
}

// ReportResponse answers POST /api/reports.
type ReportResponse struct {
	Incident model.Incident `json:"incident"`
	// Degraded is set when the report was normalized with the fallback.
	Degraded bool `json:"degraded"`
}

// CompleteRequest is the optional body of POST /api/stations/:id/complete.
type CompleteRequest struct {
	IncidentID string `json:"incident_id"`
}

// StationResponse describes one station and its live availability.
type StationResponse struct {
	model.Station
	Availability string `json:"availability"`
	IncidentID   string `json:"incident_id,omitempty"`
}

// TimelineEntry is one event in an incident timeline.
type TimelineEntry struct {
	Seq       uint64    `json:"seq"`
	Topic     string    `json:"topic"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}
