package model

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports a malformed incident, bid or result.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validator returns the shared struct validator.
func Validator() *validator.Validate { return validate }

// FromValidator converts go-playground field errors into a ValidationError.
func FromValidator(err error) error {
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		return &ValidationError{Field: fe.Namespace(), Reason: fmt.Sprintf("failed %q", fe.Tag())}
	}
	return &ValidationError{Reason: err.Error()}
}

// ValidateIncident checks an incident against the operational boundary.
func ValidateIncident(inc Incident, bounds Boundary) error {
	if strings.TrimSpace(inc.Species) == "" {
		return &ValidationError{Field: "species", Reason: "must not be empty"}
	}
	if err := validate.Struct(inc); err != nil {
		return FromValidator(err)
	}
	if !inc.Severity.Valid() {
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %d", int(inc.Severity))}
	}
	if !bounds.Contains(inc.Location) {
		return &ValidationError{
			Field:  "location",
			Reason: fmt.Sprintf("%s outside %s", inc.Location, boundaryName(bounds)),
		}
	}
	return nil
}

// ValidateBid checks that a bid is well formed and belongs to incidentID.
func ValidateBid(b Bid, incidentID string) error {
	if b.IncidentID != incidentID {
		return &ValidationError{Field: "incident_id", Reason: fmt.Sprintf("bid for %q, expected %q", b.IncidentID, incidentID)}
	}
	if b.StationID == "" {
		return &ValidationError{Field: "station_id", Reason: "must not be empty"}
	}
	if !finiteNonNegative(b.DistanceKM) {
		return &ValidationError{Field: "distance_km", Reason: "must be finite and non-negative"}
	}
	if !finiteNonNegative(b.ETAMinutes) {
		return &ValidationError{Field: "eta_minutes", Reason: "must be finite and non-negative"}
	}
	return nil
}

func finiteNonNegative(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

func boundaryName(b Boundary) string {
	if b.Name != "" {
		return b.Name
	}
	return "operational boundary"
}
