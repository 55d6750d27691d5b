package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/wildguard/core/logger"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/core/stage"
	"github.com/kilianp07/wildguard/internal/broker"
)

// Ingress accepts incidents and raw reports.
type Ingress interface {
	Submit(ctx context.Context, inc model.Incident) (model.Incident, error)
	SubmitReport(ctx context.Context, r model.FieldReport) (model.Incident, bool, error)
}

// DispatchOrder is sent to the winning station.
type DispatchOrder struct {
	IncidentID string         `json:"incident_id"`
	StationID  string         `json:"station_id"`
	Vehicle    string         `json:"vehicle"`
	ETAMinutes float64        `json:"eta_minutes"`
	Location   model.Location `json:"location"`
	IssuedAt   time.Time      `json:"issued_at"`
}

// Bridge connects field devices to the broker. It is an agent forwarding
// decisions and stage results to MQTT, and its MQTT handlers feed ingress.
type Bridge struct {
	conn       *Conn
	topics     Topics
	inboundQoS byte
	ingress    Ingress
	broker     broker.Broker
	log        logger.Logger
	timeout    time.Duration

	locations map[string]model.Location
}

// NewBridge connects to MQTT and subscribes to inbound topics.
func NewBridge(cfg Config, in Ingress, b broker.Broker, log logger.Logger) (*Bridge, error) {
	if in == nil || b == nil {
		return nil, fmt.Errorf("mqtt bridge: ingress and broker are required")
	}
	cfg.SetDefaults()
	br := &Bridge{
		topics:     Topics{Prefix: cfg.TopicPrefix},
		inboundQoS: 1,
		ingress:    in,
		broker:     b,
		log:        logger.OrNop(log),
		timeout:    10 * time.Second,
		locations:  make(map[string]model.Location),
	}
	if q, ok := cfg.QoS["inbound"]; ok {
		br.inboundQoS = q
	}
	conn, err := Dial(cfg, log, br.subscribe)
	if err != nil {
		return nil, err
	}
	br.conn = conn
	return br, nil
}

func (br *Bridge) subscribe(c paho.Client) {
	subs := []struct {
		topic string
		h     paho.MessageHandler
	}{
		{br.topics.Reports(), br.onReport},
		{br.topics.Incidents(), br.onIncident},
		{br.topics.MissionComplete(), br.onMissionComplete},
	}
	for _, s := range subs {
		if token := c.Subscribe(s.topic, br.inboundQoS, s.h); token.Wait() && token.Error() != nil {
			br.log.Errorf("subscribe %s: %v", s.topic, token.Error())
		}
	}
}

func (br *Bridge) onReport(_ paho.Client, msg paho.Message) {
	var r model.FieldReport
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		br.log.Warnf("mqtt: malformed report on %s: %v", msg.Topic(), err)
		return
	}
	if r.Source == "" {
		r.Source = "mqtt"
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.Background(), br.timeout)
	defer cancel()
	inc, degraded, err := br.ingress.SubmitReport(ctx, r)
	if err != nil {
		br.log.Warnf("mqtt: report rejected: %v", err)
		return
	}
	br.log.Infof("mqtt: report accepted as %s (degraded=%t)", inc.ID, degraded)
}

func (br *Bridge) onIncident(_ paho.Client, msg paho.Message) {
	var inc model.Incident
	if err := json.Unmarshal(msg.Payload(), &inc); err != nil {
		br.log.Warnf("mqtt: malformed incident on %s: %v", msg.Topic(), err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), br.timeout)
	defer cancel()
	if _, err := br.ingress.Submit(ctx, inc); err != nil {
		br.log.Warnf("mqtt: incident rejected: %v", err)
	}
}

func (br *Bridge) onMissionComplete(_ paho.Client, msg paho.Message) {
	stationID, ok := br.topics.StationFromComplete(msg.Topic())
	if !ok {
		br.log.Warnf("mqtt: unexpected completion topic %s", msg.Topic())
		return
	}
	var body struct {
		IncidentID string `json:"incident_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &body); err != nil || body.IncidentID == "" {
		br.log.Warnf("mqtt: completion from %s without incident id", stationID)
		return
	}
	mc := model.MissionComplete{StationID: stationID, IncidentID: body.IncidentID}
	if err := br.broker.Publish(model.TopicMissionComplete, model.NewMessage("mqtt", mc.IncidentID, mc)); err != nil {
		br.log.Errorf("mqtt: forward completion: %v", err)
	}
}

func (br *Bridge) Name() string { return "mqtt-bridge" }

func (br *Bridge) Topics() []string {
	return []string{model.TopicIncidents, model.TopicDecisions, model.TopicAssessment, model.TopicTreatment, model.TopicNotification, model.TopicReasoning}
}

// Handle publishes decisions, dispatch orders and stage results to MQTT.
// Incidents are only remembered for the dispatch order location.
func (br *Bridge) Handle(_ context.Context, msg model.Message) error {
	switch msg.Topic {
	case model.TopicIncidents:
		inc, err := model.PayloadAs[model.Incident](msg)
		if err != nil {
			return err
		}
		br.locations[inc.ID] = inc.Location
		return nil
	case model.TopicDecisions:
		d, err := model.PayloadAs[model.DispatchDecision](msg)
		if err != nil {
			return err
		}
		loc := br.locations[d.IncidentID]
		delete(br.locations, d.IncidentID)
		if err := br.conn.PublishJSON("decision", br.topics.Decision(d.IncidentID), d); err != nil {
			return err
		}
		w, ok := d.Winner()
		if !ok {
			return nil
		}
		order := DispatchOrder{
			IncidentID: d.IncidentID,
			StationID:  w.StationID,
			Vehicle:    w.Vehicle,
			ETAMinutes: w.ETAMinutes,
			Location:   loc,
			IssuedAt:   d.DecidedAt,
		}
		return br.conn.PublishJSON("dispatch", br.topics.StationDispatch(w.StationID), order)
	default:
		res, err := model.PayloadAs[stage.Result](msg)
		if err != nil {
			return err
		}
		return br.conn.PublishJSON("stage", br.topics.Stage(res.Stage, res.IncidentID), res)
	}
}

// Close disconnects from MQTT.
func (br *Bridge) Close() { br.conn.Disconnect() }
