// Package ingress validates incidents entering the system and publishes them
// on the incident topic.
package ingress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/wildguard/core/logger"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/internal/broker"
)

// Gateway is the single entry point for incidents.
type Gateway struct {
	broker     broker.Broker
	bounds     model.Boundary
	normalizer *Normalizer
	log        logger.Logger
	now        func() time.Time
}

// NewGateway creates a gateway. normalizer may be nil when raw reports are
// not accepted.
func NewGateway(b broker.Broker, bounds model.Boundary, normalizer *Normalizer, log logger.Logger) (*Gateway, error) {
	if b == nil {
		return nil, fmt.Errorf("ingress: nil broker provided to NewGateway")
	}
	return &Gateway{
		broker:     b,
		bounds:     bounds,
		normalizer: normalizer,
		log:        logger.OrNop(log),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit fills in a missing id and timestamp, validates inc and publishes it.
// Invalid incidents are rejected with a *model.ValidationError and never
// reach the broker.
func (g *Gateway) Submit(_ context.Context, inc model.Incident) (model.Incident, error) {
	inc.ID = strings.TrimSpace(inc.ID)
	if inc.ID == "" {
		inc.ID = "inc-" + uuid.NewString()
	}
	if inc.ReportedAt.IsZero() {
		inc.ReportedAt = g.now()
	}
	inc.Species = strings.TrimSpace(inc.Species)
	if err := model.ValidateIncident(inc, g.bounds); err != nil {
		g.log.Warnf("ingress: rejected incident %s: %v", inc.ID, err)
		return inc, err
	}
	if err := g.broker.Publish(model.TopicIncidents, model.NewMessage("ingress", inc.ID, inc)); err != nil {
		return inc, fmt.Errorf("publish incident %s: %w", inc.ID, err)
	}
	g.log.Infof("ingress: incident %s (%s, %s) at %s", inc.ID, inc.Species, inc.Severity, inc.Location)
	return inc, nil
}

// SubmitReport normalizes a raw field report and submits the result.
func (g *Gateway) SubmitReport(ctx context.Context, r model.FieldReport) (model.Incident, bool, error) {
	if g.normalizer == nil {
		return model.Incident{}, false, fmt.Errorf("ingress: raw reports are not enabled")
	}
	inc, degraded, err := g.normalizer.Normalize(ctx, r)
	if err != nil {
		return inc, degraded, err
	}
	inc, err = g.Submit(ctx, inc)
	return inc, degraded, err
}
