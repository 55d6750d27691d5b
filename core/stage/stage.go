// Package stage runs the downstream pipeline stages triggered by dispatch
// decisions. Each stage asks the content service for a schema-conforming
// result, retries once, and degrades to a placeholder rather than blocking
// the incident.
package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/wildguard/core/content"
	"github.com/kilianp07/wildguard/core/geo"
	"github.com/kilianp07/wildguard/core/logger"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/internal/broker"
)

// maxAttempts bounds content requests per stage run.
const maxAttempts = 2

// Spec identifies a stage.
type Spec struct {
	Name  string
	Kind  content.Kind
	Topic string
	// OnFailure also runs the stage for dispatch_failed decisions.
	OnFailure bool
}

var (
	Assessment   = Spec{Name: "assessment", Kind: content.KindTriage, Topic: model.TopicAssessment}
	Treatment    = Spec{Name: "treatment", Kind: content.KindTreatment, Topic: model.TopicTreatment}
	Notification = Spec{Name: "notification", Kind: content.KindNotification, Topic: model.TopicNotification}
	Reasoning    = Spec{Name: "reasoning", Kind: content.KindDispatchReasoning, Topic: model.TopicReasoning, OnFailure: true}
)

// All returns every built-in stage.
func All() []Spec { return []Spec{Reasoning, Assessment, Treatment, Notification} }

// Announcer delivers a notification to the outside world.
type Announcer interface {
	Announce(ctx context.Context, subject, body string) error
}

// Options tunes a stage.
type Options struct {
	Timeout   time.Duration
	Places    *geo.Gazetteer
	Announcer Announcer
}

// Result is the payload published on the stage topic.
type Result struct {
	IncidentID string         `json:"incident_id"`
	Stage      string         `json:"stage"`
	Kind       content.Kind   `json:"kind"`
	StationID  string         `json:"station_id,omitempty"`
	Output     content.Result `json:"output"`
	Degraded   bool           `json:"degraded"`
	Error      string         `json:"error,omitempty"`
	Attempts   int            `json:"attempts"`
	Announced  bool           `json:"announced,omitempty"`
	ProducedAt time.Time      `json:"produced_at"`
}

// Stage is an agent producing one kind of content per decision.
type Stage struct {
	spec   Spec
	gen    content.Generator
	broker broker.Broker
	opts   Options
	log    logger.Logger
	now    func() time.Time

	incidents map[string]model.Incident
}

// New creates a stage. Handle is not safe for concurrent use; the agent
// runner serializes it.
func New(spec Spec, gen content.Generator, b broker.Broker, opts Options, log logger.Logger) (*Stage, error) {
	if gen == nil || b == nil {
		return nil, fmt.Errorf("stage %s: generator and broker are required", spec.Name)
	}
	if spec.Name == "" || spec.Topic == "" {
		return nil, fmt.Errorf("stage: incomplete spec %+v", spec)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Stage{
		spec:      spec,
		gen:       gen,
		broker:    b,
		opts:      opts,
		log:       logger.OrNop(log),
		now:       func() time.Time { return time.Now().UTC() },
		incidents: make(map[string]model.Incident),
	}, nil
}

func (s *Stage) Name() string { return "stage." + s.spec.Name }

// Topics listens to bid requests rather than raw incidents: the coordinator
// only broadcasts for incidents it accepted, and each of those rounds ends
// in a decision that evicts the cached entry.
func (s *Stage) Topics() []string {
	return []string{model.TopicBidRequests, model.TopicDecisions}
}

// Handle caches dispatched incidents and runs the stage for each decision.
func (s *Stage) Handle(ctx context.Context, msg model.Message) error {
	switch msg.Topic {
	case model.TopicBidRequests:
		req, err := model.PayloadAs[model.BidRequest](msg)
		if err != nil {
			return err
		}
		s.incidents[req.Incident.ID] = req.Incident
		return nil
	case model.TopicDecisions:
		d, err := model.PayloadAs[model.DispatchDecision](msg)
		if err != nil {
			return err
		}
		inc, ok := s.incidents[d.IncidentID]
		delete(s.incidents, d.IncidentID)
		if d.Status != model.StatusDispatched && !s.spec.OnFailure {
			return nil
		}
		if !ok {
			s.log.Warnf("%s: incident %s not seen, running with decision only", s.Name(), d.IncidentID)
			inc = model.Incident{ID: d.IncidentID}
		}
		res := s.Run(ctx, inc, d)
		return s.broker.Publish(s.spec.Topic, model.NewMessage(s.Name(), inc.ID, res))
	}
	return nil
}

// Run produces the stage result for inc and d without publishing it.
func (s *Stage) Run(ctx context.Context, inc model.Incident, d model.DispatchDecision) Result {
	in := content.Context{Incident: inc, Decision: &d, LocationName: s.opts.Places.Describe(inc.Location)}
	if w, ok := d.Winner(); ok {
		in.Winner = &w
	}
	res := Result{IncidentID: inc.ID, Stage: s.spec.Name, Kind: s.spec.Kind, StationID: d.WinnerID}

	start := time.Now()
	out, attempts, err := s.generate(ctx, in)
	contentLatency.WithLabelValues(string(s.spec.Kind)).Observe(time.Since(start).Seconds())
	res.Attempts = attempts
	if err != nil {
		s.log.Warnf("%s: incident %s degraded after %d attempts: %v", s.Name(), inc.ID, attempts, err)
		out, _ = content.Placeholder(s.spec.Kind, in)
		res.Degraded = true
		res.Error = err.Error()
	}
	res.Output = out
	outcome := "ok"
	if res.Degraded {
		outcome = "degraded"
	}
	stageResults.WithLabelValues(s.spec.Name, outcome).Inc()

	if n, ok := out.(content.Notification); ok && s.opts.Announcer != nil {
		subject := fmt.Sprintf("Wildlife alert: %s", inc.Species)
		if err := s.opts.Announcer.Announce(ctx, subject, n.MessageText); err != nil {
			s.log.Errorf("%s: announce incident %s: %v", s.Name(), inc.ID, err)
		} else {
			res.Announced = true
		}
	}
	res.ProducedAt = s.now()
	return res
}

func (s *Stage) generate(ctx context.Context, in content.Context) (content.Result, int, error) {
	var lastErr error
	attempt := 0
	for attempt < maxAttempts {
		attempt++
		cctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		out, err := s.gen.Generate(cctx, s.spec.Kind, in)
		cancel()
		if err == nil {
			err = content.Validate(out)
		}
		if err == nil && out.Kind() != s.spec.Kind {
			err = &content.SchemaError{Kind: s.spec.Kind, Err: fmt.Errorf("got %s result", out.Kind())}
		}
		if err == nil {
			return out, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, attempt, lastErr
}
