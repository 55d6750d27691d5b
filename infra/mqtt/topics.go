// Package mqtt bridges the in-process broker with field devices over MQTT:
// sensors and ranger handsets publish reports and mission completions, and
// decisions and stage results are published back out.
package mqtt

import (
	"fmt"
	"strings"
)

// Topics builds the MQTT topic layout under Prefix.
type Topics struct {
	Prefix string
}

// Reports carries raw field reports.
func (t Topics) Reports() string { return t.Prefix + "/reports" }

// Incidents carries already structured incidents.
func (t Topics) Incidents() string { return t.Prefix + "/incidents" }

// MissionComplete is the wildcard subscription for station completions.
func (t Topics) MissionComplete() string { return t.Prefix + "/stations/+/complete" }

// StationComplete is the completion topic of one station.
func (t Topics) StationComplete(stationID string) string {
	return fmt.Sprintf("%s/stations/%s/complete", t.Prefix, stationID)
}

// StationDispatch carries dispatch orders for one station.
func (t Topics) StationDispatch(stationID string) string {
	return fmt.Sprintf("%s/stations/%s/dispatch", t.Prefix, stationID)
}

// Decision carries the decision for one incident.
func (t Topics) Decision(incidentID string) string {
	return fmt.Sprintf("%s/decisions/%s", t.Prefix, incidentID)
}

// Stage carries one stage result for one incident.
func (t Topics) Stage(stage, incidentID string) string {
	return fmt.Sprintf("%s/stages/%s/%s", t.Prefix, stage, incidentID)
}

// StationFromComplete extracts the station id of a completion topic.
func (t Topics) StationFromComplete(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/stations/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/complete")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
