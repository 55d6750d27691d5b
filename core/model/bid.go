package model

import "time"

// Bid is a station's answer to a bid request. Bids are produced once per
// (incident, station) pair and never modified.
type Bid struct {
	IncidentID  string    `json:"incident_id"`
	StationID   string    `json:"station_id"`
	DistanceKM  float64   `json:"distance_km"`
	ETAMinutes  float64   `json:"eta_minutes"`
	Capable     bool      `json:"capability_match"`
	Available   bool      `json:"available"`
	Vehicle     string    `json:"vehicle"`
	Terrain     string    `json:"terrain"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// BidRequest solicits bids for an incident.
type BidRequest struct {
	Incident Incident  `json:"incident"`
	Deadline time.Time `json:"deadline"`
}

// RejectionReason explains why a bid did not win.
type RejectionReason string

const (
	ReasonUnavailable     RejectionReason = "unavailable"
	ReasonLacksCapability RejectionReason = "lacks_capability"
	ReasonSlowerETA       RejectionReason = "slower_eta"
)

// DecisionStatus is the outcome of a dispatch round.
type DecisionStatus string

const (
	StatusDispatched     DecisionStatus = "dispatched"
	StatusDispatchFailed DecisionStatus = "dispatch_failed"
)

// DispatchDecision is the single outcome of the dispatch protocol for one
// incident. Ranked holds every bid considered, best first.
type DispatchDecision struct {
	IncidentID string                     `json:"incident_id"`
	Status     DecisionStatus             `json:"status"`
	WinnerID   string                     `json:"winner_id"`
	Ranked     []Bid                      `json:"ranked"`
	Rejections map[string]RejectionReason `json:"rejections"`
	Reason     string                     `json:"reason"`
	DecidedAt  time.Time                  `json:"decided_at"`
}

// Winner returns the winning bid, if any.
func (d DispatchDecision) Winner() (Bid, bool) {
	if d.Status != StatusDispatched {
		return Bid{}, false
	}
	for _, b := range d.Ranked {
		if b.StationID == d.WinnerID {
			return b, true
		}
	}
	return Bid{}, false
}
