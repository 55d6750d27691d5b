package model

import "time"

// FieldReport is an unstructured report as received from the field before it
// is normalized into an Incident.
type FieldReport struct {
	Text       string    `json:"text" validate:"required"`
	Location   Location  `json:"location"`
	Reporter   string    `json:"reporter,omitempty" validate:"omitempty,oneof=ranger citizen sensor camera"`
	Source     string    `json:"source,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}
