package mqtt

import (
	"github.com/kilianp07/wildguard/core/logger"
	"github.com/kilianp07/wildguard/core/model"
)

// Reporter publishes field traffic, as sensors and ranger handsets do.
type Reporter struct {
	conn *Conn
}

// NewReporter connects a publishing-only client.
func NewReporter(cfg Config, log logger.Logger) (*Reporter, error) {
	conn, err := Dial(cfg, log, nil)
	if err != nil {
		return nil, err
	}
	return &Reporter{conn: conn}, nil
}

// PublishReport sends a raw field report.
func (r *Reporter) PublishReport(rep model.FieldReport) error {
	return r.conn.PublishJSON("report", r.conn.topics.Reports(), rep)
}

// PublishCompletion signals that stationID finished incidentID.
func (r *Reporter) PublishCompletion(stationID, incidentID string) error {
	body := struct {
		IncidentID string `json:"incident_id"`
	}{incidentID}
	return r.conn.PublishJSON("report", r.conn.topics.StationComplete(stationID), body)
}

// Close disconnects.
func (r *Reporter) Close() { r.conn.Disconnect() }
