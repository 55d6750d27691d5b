package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/wildguard/core/logger"
	coremetrics "github.com/kilianp07/wildguard/core/metrics"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/core/monitoring"
	"github.com/kilianp07/wildguard/core/stage"
	"github.com/kilianp07/wildguard/internal/broker"
)

// Collector is the agent translating broker traffic into sink events.
type Collector struct {
	sink      coremetrics.MetricsSink
	log       logger.Logger
	incidents map[string]model.Incident
}

// NewCollector creates a collector recording into sink.
func NewCollector(sink coremetrics.MetricsSink, log logger.Logger) *Collector {
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Collector{sink: sink, log: logger.OrNop(log), incidents: make(map[string]model.Incident)}
}

func (c *Collector) Name() string { return "metrics" }

func (c *Collector) Topics() []string {
	return []string{
		model.TopicIncidents, model.TopicBids, model.TopicDecisions,
		model.TopicAssessment, model.TopicTreatment, model.TopicNotification, model.TopicReasoning,
	}
}

// Handle records one message. Sink errors are logged, not returned.
func (c *Collector) Handle(_ context.Context, msg model.Message) error {
	var err error
	switch msg.Topic {
	case model.TopicIncidents:
		inc, perr := model.PayloadAs[model.Incident](msg)
		if perr != nil {
			return perr
		}
		c.incidents[inc.ID] = inc
		if r, ok := c.sink.(coremetrics.IncidentRecorder); ok {
			err = r.RecordIncident(coremetrics.IncidentEvent{
				IncidentID: inc.ID, Species: inc.Species, Severity: inc.Severity.String(),
				Reporter: inc.Reporter, RequiresCapture: inc.RequiresCapture, Time: msg.Timestamp,
			})
		}
	case model.TopicBids:
		b, perr := model.PayloadAs[model.Bid](msg)
		if perr != nil {
			return perr
		}
		if r, ok := c.sink.(coremetrics.BidRecorder); ok {
			err = r.RecordBid(coremetrics.BidEvent{
				IncidentID: b.IncidentID, StationID: b.StationID, DistanceKM: b.DistanceKM,
				ETAMinutes: b.ETAMinutes, Capable: b.Capable, Available: b.Available, Time: msg.Timestamp,
			})
		}
	case model.TopicDecisions:
		d, perr := model.PayloadAs[model.DispatchDecision](msg)
		if perr != nil {
			return perr
		}
		err = c.sink.RecordDecision(c.decisionEvent(d, msg.Timestamp))
	default:
		res, perr := model.PayloadAs[stage.Result](msg)
		if perr != nil {
			return perr
		}
		if r, ok := c.sink.(coremetrics.StageRecorder); ok {
			err = r.RecordStage(coremetrics.StageEvent{
				IncidentID: res.IncidentID, Stage: res.Stage, Degraded: res.Degraded,
				Attempts: res.Attempts, Time: msg.Timestamp,
			})
		}
	}
	if err != nil {
		c.log.Warnf("metrics: record %s#%d: %v", msg.Topic, msg.Seq, err)
	}
	return nil
}

func (c *Collector) decisionEvent(d model.DispatchDecision, at time.Time) coremetrics.DecisionEvent {
	inc := c.incidents[d.IncidentID]
	delete(c.incidents, d.IncidentID)
	ev := coremetrics.DecisionEvent{
		IncidentID: d.IncidentID,
		Species:    inc.Species,
		Severity:   inc.Severity.String(),
		Status:     string(d.Status),
		WinnerID:   d.WinnerID,
		Bids:       len(d.Ranked),
		Rejected:   make(map[string]int),
		Reason:     d.Reason,
		Time:       at,
	}
	for _, reason := range d.Rejections {
		ev.Rejected[string(reason)]++
	}
	if w, ok := d.Winner(); ok {
		ev.ETAMinutes = w.ETAMinutes
		ev.DistanceKM = w.DistanceKM
	}
	return ev
}

// WatchDeliveryErrors records broker delivery failures until ctx is done.
// It must be the only reader of b.Errors().
func WatchDeliveryErrors(ctx context.Context, b broker.Broker, sink coremetrics.MetricsSink, log logger.Logger) {
	log = logger.OrNop(log)
	rec, _ := sink.(coremetrics.DeliveryFailureRecorder)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case de, ok := <-b.Errors():
				if !ok {
					return
				}
				monitoring.CaptureException(de, map[string]string{"subscriber": de.Subscriber, "topic": de.Topic})
				if rec != nil {
					if err := rec.RecordDeliveryFailure(coremetrics.DeliveryFailureEvent{
						Subscriber: de.Subscriber, Topic: de.Topic, Seq: de.Seq, Attempts: de.Attempts, Time: time.Now(),
					}); err != nil {
						log.Warnf("metrics: record delivery failure: %v", err)
					}
				}
			}
		}
	}()
}
