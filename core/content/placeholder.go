package content

import (
	"fmt"

	"github.com/kilianp07/wildguard/core/model"
)

// Placeholder returns the degraded result used when the content service
// cannot produce a valid one. It only depends on in.
func Placeholder(kind Kind, in Context) (Result, error) {
	inc := in.Incident
	where := in.LocationName
	if where == "" {
		where = inc.Location.String()
	}
	switch kind {
	case KindReportNormalize:
		return NormalizedReport{Species: "unknown", Severity: model.SeverityLow.String(), Behavior: "unverified report", Confidence: 0}, nil
	case KindDispatchReasoning:
		summary := fmt.Sprintf("No station dispatched for incident %s.", inc.ID)
		if in.Winner != nil {
			summary = fmt.Sprintf("%s dispatched with %s, ETA %.0f min over %.1f km.",
				in.Winner.StationID, in.Winner.Vehicle, in.Winner.ETAMinutes, in.Winner.DistanceKM)
		}
		return DispatchReasoning{Summary: summary, Factors: []string{"eta", "distance", "availability"}}, nil
	case KindTriage:
		return Triage{
			Priority:           priorityFor(inc.Severity),
			RequiredResources:  []string{"ranger_unit"},
			AccessDifficulty:   "medium",
			RecommendedActions: []string{"dispatch ranger unit", "assess " + speciesOr(inc.Species) + " on site"},
		}, nil
	case KindTreatment:
		return Treatment{Decision: "accept", Reason: "default acceptance pending veterinary review", ExpectedMinutes: 30}, nil
	case KindNotification:
		text := fmt.Sprintf("Wildlife alert: %s reported at %s. Rangers are responding. Keep clear of the area.", speciesOr(inc.Species), where)
		return Notification{MessageText: text, Channels: []string{"radio", "sms"}, Explanation: "standard alert template"}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

func priorityFor(s model.Severity) int {
	switch s {
	case model.SeverityCritical:
		return 1
	case model.SeverityHigh:
		return 2
	case model.SeverityLow:
		return 4
	default:
		return 5
	}
}

func speciesOr(s string) string {
	if s == "" {
		return "animal"
	}
	return s
}
