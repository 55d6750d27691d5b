// Package dispatch runs the proximity dispatch protocol: broadcast a bid
// request for each incident, collect bids for a bounded window, select
// exactly one winner and publish the decision.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/wildguard/core/logger"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/core/monitoring"
	"github.com/kilianp07/wildguard/internal/broker"
)

// round is one open bid window.
type round struct {
	incident model.Incident
	bids     chan model.Bid
	started  time.Time
}

// Coordinator is the single decision authority for incidents.
type Coordinator struct {
	cfg      Config
	broker   broker.Broker
	ledger   Ledger
	bounds   model.Boundary
	expected int
	log      logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	rounds   map[string]*round
	reserved map[string]string
	wg       sync.WaitGroup
}

// NewCoordinator creates a coordinator. expected is the roster size used to
// close a window early once every station answered; zero waits the full
// window. A nil ledger defaults to a MemoryLedger.
func NewCoordinator(cfg Config, b broker.Broker, ledger Ledger, bounds model.Boundary, expected int, log logger.Logger) (*Coordinator, error) {
	if b == nil {
		return nil, fmt.Errorf("dispatch: nil broker provided to NewCoordinator")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	if cfg.WaitFullWindow {
		expected = 0
	}
	return &Coordinator{
		cfg:      cfg,
		broker:   b,
		ledger:   ledger,
		bounds:   bounds,
		expected: expected,
		log:      logger.OrNop(log),
		now:      func() time.Time { return time.Now().UTC() },
		rounds:   make(map[string]*round),
		reserved: make(map[string]string),
	}, nil
}

// Name returns the subscriber name.
func (c *Coordinator) Name() string { return "coordinator" }

// Topics returns the topics the coordinator consumes.
func (c *Coordinator) Topics() []string {
	return []string{model.TopicIncidents, model.TopicBids, model.TopicMissionComplete}
}

// Handle routes one message.
func (c *Coordinator) Handle(ctx context.Context, msg model.Message) error {
	switch msg.Topic {
	case model.TopicIncidents:
		inc, err := model.PayloadAs[model.Incident](msg)
		if err != nil {
			return err
		}
		return c.open(ctx, inc)
	case model.TopicBids:
		bid, err := model.PayloadAs[model.Bid](msg)
		if err != nil {
			return err
		}
		c.route(bid)
		return nil
	case model.TopicMissionComplete:
		mc, err := model.PayloadAs[model.MissionComplete](msg)
		if err != nil {
			return err
		}
		c.mu.Lock()
		if inc, ok := c.reserved[mc.StationID]; ok && (mc.IncidentID == "" || mc.IncidentID == inc) {
			delete(c.reserved, mc.StationID)
			met.reserved.Set(float64(len(c.reserved)))
		}
		c.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("unexpected topic %s", msg.Topic)
	}
}

// Wait blocks until every open round finished or was abandoned.
func (c *Coordinator) Wait() { c.wg.Wait() }

// Decision returns the recorded decision for an incident.
func (c *Coordinator) Decision(ctx context.Context, incidentID string) (model.DispatchDecision, bool, error) {
	return c.ledger.Get(ctx, incidentID)
}

// Reserved returns the stations awarded by this coordinator and not yet released.
func (c *Coordinator) Reserved() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.reserved))
	for k, v := range c.reserved {
		out[k] = v
	}
	return out
}

func (c *Coordinator) open(ctx context.Context, inc model.Incident) error {
	if err := model.ValidateIncident(inc, c.bounds); err != nil {
		return fmt.Errorf("incident %s rejected: %w", inc.ID, err)
	}
	ok, err := c.ledger.Claim(ctx, inc.ID)
	if err != nil {
		return fmt.Errorf("claim incident %s: %w", inc.ID, err)
	}
	if !ok {
		c.log.Warnf("incident %s already dispatched or in progress, ignoring", inc.ID)
		return nil
	}

	size := 2 * c.expected
	if size < 16 {
		size = 16
	}
	r := &round{incident: inc, bids: make(chan model.Bid, size), started: c.now()}
	c.mu.Lock()
	c.rounds[inc.ID] = r
	c.mu.Unlock()
	met.openRounds.Inc()

	req := model.BidRequest{Incident: inc, Deadline: r.started.Add(c.cfg.BidWindow())}
	if err := c.broker.Publish(model.TopicBidRequests, model.NewMessage(c.Name(), inc.ID, req)); err != nil {
		c.mu.Lock()
		delete(c.rounds, inc.ID)
		c.mu.Unlock()
		met.openRounds.Dec()
		_ = c.ledger.Release(context.WithoutCancel(ctx), inc.ID)
		return fmt.Errorf("broadcast bid request for %s: %w", inc.ID, err)
	}
	c.log.Infof("bid request for incident %s (%s, %s) broadcast", inc.ID, inc.Species, inc.Severity)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.collect(ctx, r)
	}()
	return nil
}

// route hands a bid to its open round, or treats it as late.
func (c *Coordinator) route(bid model.Bid) {
	c.mu.Lock()
	r, ok := c.rounds[bid.IncidentID]
	if ok {
		select {
		case r.bids <- bid:
		default:
			c.log.Warnf("bid buffer full for %s, dropping bid from %s", bid.IncidentID, bid.StationID)
		}
	}
	c.mu.Unlock()
	if !ok {
		c.late(bid)
	}
}

func (c *Coordinator) late(bid model.Bid) {
	met.lateBids.Inc()
	c.log.Warnf("late bid from %s for incident %s discarded", bid.StationID, bid.IncidentID)
	if c.cfg.LateBidPolicy != LateBidAudit {
		return
	}
	if err := c.broker.Publish(model.TopicLateBids, model.NewMessage(c.Name(), bid.IncidentID, bid)); err != nil {
		c.log.Errorf("publish late bid: %v", err)
	}
}

//gocyclo:ignore
func (c *Coordinator) collect(ctx context.Context, r *round) {
	timer := time.NewTimer(c.cfg.BidWindow())
	defer timer.Stop()

	id := r.incident.ID
	seen := make(map[string]bool)
	var bids []model.Bid
	open := true
	for open {
		select {
		case <-ctx.Done():
			c.abandon(r, len(bids))
			return
		case <-timer.C:
			open = false
		case b := <-r.bids:
			if err := model.ValidateBid(b, id); err != nil {
				c.log.Warnf("invalid bid from %s: %v", b.StationID, err)
				continue
			}
			if seen[b.StationID] {
				c.log.Warnf("duplicate bid from %s for %s ignored", b.StationID, id)
				continue
			}
			seen[b.StationID] = true
			bids = append(bids, b)
			met.bids.Inc()
			if c.expected > 0 && len(bids) >= c.expected {
				open = false
			}
		}
	}

	c.mu.Lock()
	delete(c.rounds, id)
	reserved := make(map[string]bool, len(c.reserved))
	for st := range c.reserved {
		reserved[st] = true
	}
	decision := Select(r.incident, bids, reserved, c.now())
	if decision.Status == model.StatusDispatched {
		c.reserved[decision.WinnerID] = id
	}
	met.reserved.Set(float64(len(c.reserved)))
	c.mu.Unlock()
	met.openRounds.Dec()

	for drained := false; !drained; {
		select {
		case b := <-r.bids:
			c.late(b)
		default:
			drained = true
		}
	}

	if ctx.Err() != nil {
		c.unreserve(id, decision.WinnerID)
		c.abandon(r, len(bids))
		return
	}
	c.publish(ctx, r, decision)
}

func (c *Coordinator) publish(ctx context.Context, r *round, d model.DispatchDecision) {
	if err := c.ledger.Record(ctx, d); err != nil {
		if errors.Is(err, ErrAlreadyDecided) {
			c.unreserve(d.IncidentID, d.WinnerID)
			c.log.Warnf("incident %s was decided elsewhere, dropping local decision", d.IncidentID)
			return
		}
		d = c.unrecorded(ctx, d, err)
	}

	status := string(d.Status)
	met.bidWindow.WithLabelValues(status).Observe(d.DecidedAt.Sub(r.started).Seconds())
	met.decisions.WithLabelValues(status).Inc()
	for _, reason := range d.Rejections {
		met.rejections.WithLabelValues(string(reason)).Inc()
	}

	if err := c.broker.Publish(model.TopicDecisions, model.NewMessage(c.Name(), d.IncidentID, d)); err != nil {
		c.log.Errorf("publish decision for %s: %v", d.IncidentID, err)
		monitoring.CaptureException(err, map[string]string{"incident": d.IncidentID})
		// Stations never saw the award, so nothing would ever complete it.
		c.unreserve(d.IncidentID, d.WinnerID)
		return
	}
	monitoring.Breadcrumb("dispatch", fmt.Sprintf("incident %s %s", d.IncidentID, d.Status),
		map[string]any{"winner": d.WinnerID, "bids": len(d.Ranked)})
	if d.Status == model.StatusDispatched {
		w, _ := d.Winner()
		c.log.Infof("incident %s: dispatched %s (%s, ETA %.1f min, %.2f km) from %d bids",
			d.IncidentID, d.WinnerID, w.Vehicle, w.ETAMinutes, w.DistanceKM, len(d.Ranked))
		return
	}
	c.log.Warnf("incident %s: dispatch failed (%s) from %d bids", d.IncidentID, d.Reason, len(d.Ranked))
}

// unrecorded turns a decision the ledger could not store into a published
// failure. The winner's reservation and the incident claim are released so
// the station stays bookable and the incident can be reported again.
func (c *Coordinator) unrecorded(ctx context.Context, d model.DispatchDecision, err error) model.DispatchDecision {
	c.log.Errorf("record decision for %s: %v", d.IncidentID, err)
	monitoring.CaptureException(err, map[string]string{"incident": d.IncidentID})
	c.unreserve(d.IncidentID, d.WinnerID)
	if rerr := c.ledger.Release(context.WithoutCancel(ctx), d.IncidentID); rerr != nil {
		c.log.Errorf("release %s: %v", d.IncidentID, rerr)
	}
	d.Status = model.StatusDispatchFailed
	d.WinnerID = ""
	d.Reason = fmt.Sprintf("%v: %v", ErrNotRecorded, err)
	return d
}

func (c *Coordinator) unreserve(incidentID, stationID string) {
	if stationID == "" {
		return
	}
	c.mu.Lock()
	if c.reserved[stationID] == incidentID {
		delete(c.reserved, stationID)
	}
	met.reserved.Set(float64(len(c.reserved)))
	c.mu.Unlock()
}

// abandon discards a round on shutdown without emitting a decision.
func (c *Coordinator) abandon(r *round, partial int) {
	c.mu.Lock()
	_, open := c.rounds[r.incident.ID]
	delete(c.rounds, r.incident.ID)
	c.mu.Unlock()
	if open {
		met.openRounds.Dec()
	}
	if err := c.ledger.Release(context.Background(), r.incident.ID); err != nil {
		c.log.Errorf("release %s: %v", r.incident.ID, err)
	}
	c.log.Warnf("round for incident %s abandoned with %d partial bids", r.incident.ID, partial)
}
