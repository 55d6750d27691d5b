// Package station implements the responder station agent. A station answers
// every bid request with a bid scored against its own roster and current
// availability, and changes availability only in response to messages.
package station

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/wildguard/core/geo"
	"github.com/kilianp07/wildguard/core/logger"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/internal/broker"
)

// Agent is the station agent.
type Agent struct {
	station model.Station
	terrain string
	factor  float64
	broker  broker.Broker
	log     logger.Logger
	now     func() time.Time

	mu       sync.RWMutex
	state    model.Availability
	incident string
}

// New validates the station against the terrain table and returns its agent.
func New(st model.Station, terrain geo.TerrainTable, b broker.Broker, log logger.Logger) (*Agent, error) {
	if b == nil {
		return nil, fmt.Errorf("station: nil broker")
	}
	if err := geo.ValidateRoster([]model.Station{st}, terrain); err != nil {
		return nil, err
	}
	factor, _ := terrain.Factor(st.Terrain)
	return &Agent{
		station: st,
		terrain: st.Terrain,
		factor:  factor,
		broker:  b,
		log:     logger.OrNop(log),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Name returns the subscriber name.
func (a *Agent) Name() string { return "station." + a.station.ID }

// Topics returns bid requests, decisions and mission-complete signals so
// they are handled in broker order.
func (a *Agent) Topics() []string {
	return []string{model.TopicBidRequests, model.TopicDecisions, model.TopicMissionComplete}
}

// Station returns the static station record.
func (a *Agent) Station() model.Station { return a.station }

// Availability returns the current state and the incident being served.
func (a *Agent) Availability() (model.Availability, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state, a.incident
}

// Handle dispatches one message.
func (a *Agent) Handle(_ context.Context, msg model.Message) error {
	switch msg.Topic {
	case model.TopicBidRequests:
		req, err := model.PayloadAs[model.BidRequest](msg)
		if err != nil {
			return err
		}
		return a.bid(req.Incident)
	case model.TopicDecisions:
		d, err := model.PayloadAs[model.DispatchDecision](msg)
		if err != nil {
			return err
		}
		if d.Status == model.StatusDispatched && d.WinnerID == a.station.ID {
			a.assign(d.IncidentID)
		}
		return nil
	case model.TopicMissionComplete:
		mc, err := model.PayloadAs[model.MissionComplete](msg)
		if err != nil {
			return err
		}
		if mc.StationID == a.station.ID {
			a.release(mc.IncidentID)
		}
		return nil
	default:
		return fmt.Errorf("unexpected topic %s", msg.Topic)
	}
}

// Score builds the bid for inc from the current availability snapshot.
func (a *Agent) Score(inc model.Incident) (model.Bid, error) {
	dist := geo.DistanceKM(a.station.Location, inc.Location)
	best, err := geo.BestVehicle(a.station.Vehicles, dist, a.factor)
	if err != nil {
		return model.Bid{}, fmt.Errorf("station %s: %w", a.station.ID, err)
	}
	state, _ := a.Availability()
	return model.Bid{
		IncidentID:  inc.ID,
		StationID:   a.station.ID,
		DistanceKM:  dist,
		ETAMinutes:  best.ETAMinutes,
		Capable:     geo.CapabilityMatch(inc.RequiresCapture, a.station.Equipment),
		Available:   state == model.AvailabilityFree,
		Vehicle:     best.Vehicle.Name,
		Terrain:     a.terrain,
		SubmittedAt: a.now(),
	}, nil
}

func (a *Agent) bid(inc model.Incident) error {
	b, err := a.Score(inc)
	if err != nil {
		return err
	}
	a.log.Debugw("bid", map[string]any{
		"incident":  b.IncidentID,
		"eta_min":   b.ETAMinutes,
		"distance":  b.DistanceKM,
		"vehicle":   b.Vehicle,
		"available": b.Available,
		"capable":   b.Capable,
	})
	return a.broker.Publish(model.TopicBids, model.NewMessage(a.Name(), inc.ID, b))
}

func (a *Agent) assign(incidentID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case a.state == model.AvailabilityDispatched && a.incident == incidentID:
		return
	case a.state == model.AvailabilityDispatched:
		a.log.Warnf("awarded %s while serving %s, keeping current mission", incidentID, a.incident)
		return
	}
	a.state = model.AvailabilityDispatched
	a.incident = incidentID
	a.log.Infof("dispatched to incident %s", incidentID)
}

func (a *Agent) release(incidentID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == model.AvailabilityFree {
		return
	}
	if incidentID != "" && incidentID != a.incident {
		a.log.Warnf("mission complete for %s ignored, serving %s", incidentID, a.incident)
		return
	}
	a.log.Infof("mission %s complete, available again", a.incident)
	a.state = model.AvailabilityFree
	a.incident = ""
}
