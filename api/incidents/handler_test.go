package incidents

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wildguard/core/content"
	"github.com/kilianp07/wildguard/core/eventlog"
	"github.com/kilianp07/wildguard/core/ingress"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/internal/broker"
)

const token = "test-token"

var yala = model.Boundary{Name: "Yala", MinLat: 6.25, MaxLat: 6.45, MinLon: 81.30, MaxLon: 81.70}

type fakeDecisions map[string]model.DispatchDecision

func (f fakeDecisions) Decision(_ context.Context, id string) (model.DispatchDecision, bool, error) {
	d, ok := f[id]
	return d, ok, nil
}

type fakeStation struct {
	st       model.Station
	state    model.Availability
	incident string
}

func (f *fakeStation) Station() model.Station                     { return f.st }
func (f *fakeStation) Availability() (model.Availability, string) { return f.state, f.incident }

type env struct {
	router *gin.Engine
	bus    *broker.Bus
	events *eventlog.MemoryStore
	busy   *fakeStation
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	bus := broker.New(broker.Config{}, nil)
	t.Cleanup(bus.Close)
	norm := ingress.NewNormalizer(content.GeneratorFunc(func(_ context.Context, _ content.Kind, _ content.Context) (content.Result, error) {
		return content.NormalizedReport{Species: "leopard", Severity: "high", Confidence: 0.9}, nil
	}), time.Second, nil)
	gw, err := ingress.NewGateway(bus, yala, norm, nil)
	require.NoError(t, err)

	events := eventlog.NewMemoryStore()
	busy := &fakeStation{st: model.Station{ID: "Yala_HQ"}, state: model.AvailabilityDispatched, incident: "inc-7"}
	free := &fakeStation{st: model.Station{ID: "Kataragama"}}
	h := NewHandler(Deps{
		Ingress:   gw,
		Decisions: fakeDecisions{"inc-7": {IncidentID: "inc-7", Status: model.StatusDispatched, WinnerID: "Yala_HQ"}},
		Events:    events,
		Stations:  []Station{busy, free},
		Broker:    bus,
	}, nil)
	return &env{router: NewRouter(h, []string{token}, nil), bus: bus, events: events, busy: busy}
}

func (e *env) do(method, url string, body any, auth string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, url, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/stations", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/stations", nil, "wrong").Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/stations", nil, token).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/healthz", nil, "").Code)
}

func TestAuthDisabledWithoutTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", BearerAuth(nil, nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCreateIncident(t *testing.T) {
	e := newEnv(t)
	sub := e.bus.Subscribe("test", model.TopicIncidents)

	w := e.do(http.MethodPost, "/api/incidents", map[string]any{
		"species":  "elephant",
		"severity": "critical",
		"location": map[string]float64{"lat": 6.37, "lon": 81.52},
	}, token)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var inc model.Incident
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inc))
	assert.NotEmpty(t, inc.ID)
	assert.Equal(t, model.SeverityCritical, inc.Severity)

	select {
	case m := <-sub.C():
		assert.Equal(t, inc.ID, m.CorrelationID)
	case <-time.After(time.Second):
		t.Fatal("incident not published")
	}
}

func TestCreateIncidentRejected(t *testing.T) {
	e := newEnv(t)
	cases := map[string]struct {
		body any
		code int
	}{
		"missing species":  {map[string]any{"location": map[string]float64{"lat": 6.3, "lon": 81.4}}, http.StatusBadRequest},
		"bad severity":     {map[string]any{"species": "bear", "severity": "apocalyptic"}, http.StatusBadRequest},
		"bad reporter":     {map[string]any{"species": "bear", "reporter": "pilot", "location": map[string]float64{"lat": 6.3, "lon": 81.4}}, http.StatusBadRequest},
		"outside boundary": {map[string]any{"species": "bear", "location": map[string]float64{"lat": 7.9, "lon": 80.1}}, http.StatusUnprocessableEntity},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := e.do(http.MethodPost, "/api/incidents", tc.body, token)
			assert.Equal(t, tc.code, w.Code, w.Body.String())
		})
	}
}

func TestCreateReport(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/api/reports", model.FieldReport{
		Text:     "leopard stuck in a snare by the lake",
		Location: model.Location{Lat: 6.30, Lon: 81.40},
		Reporter: model.ReporterRanger,
	}, token)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp ReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Degraded)
	assert.Equal(t, "leopard", resp.Incident.Species)
	assert.Equal(t, model.SeverityHigh, resp.Incident.Severity)

	w = e.do(http.MethodPost, "/api/reports", map[string]any{"location": map[string]float64{"lat": 6.3, "lon": 81.4}}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestGetDecision(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/api/incidents/inc-7/decision", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var d model.DispatchDecision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, "Yala_HQ", d.WinnerID)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/incidents/inc-404/decision", nil, token).Code)
}

func TestGetTimeline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	require.NoError(t, e.events.Append(ctx, eventlog.Record{Seq: 2, Topic: model.TopicDecisions, Sender: "coordinator", CorrelationID: "inc-7", Timestamp: ts.Add(time.Second), Payload: json.RawMessage(`{"status":"dispatched"}`)}))
	require.NoError(t, e.events.Append(ctx, eventlog.Record{Seq: 1, Topic: model.TopicIncidents, Sender: "ingress", CorrelationID: "inc-7", Timestamp: ts, Payload: json.RawMessage(`{"id":"inc-7"}`)}))
	require.NoError(t, e.events.Append(ctx, eventlog.Record{Seq: 3, Topic: model.TopicIncidents, Sender: "ingress", CorrelationID: "inc-8", Timestamp: ts}))

	w := e.do(http.MethodGet, "/api/incidents/inc-7/timeline", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var got []TimelineEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, model.TopicIncidents, got[0].Topic)
	assert.Equal(t, model.TopicDecisions, got[1].Topic)
	assert.Equal(t, map[string]any{"status": "dispatched"}, got[1].Payload)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/incidents/inc-404/timeline", nil, token).Code)
}

func TestListStations(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/api/stations", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var got []StationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Yala_HQ", got[0].ID)
	assert.Equal(t, "dispatched", got[0].Availability)
	assert.Equal(t, "inc-7", got[0].IncidentID)
	assert.Equal(t, "free", got[1].Availability)
}

func TestCompleteMission(t *testing.T) {
	e := newEnv(t)
	sub := e.bus.Subscribe("test", model.TopicMissionComplete)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/api/stations/Atlantis/complete", nil, token).Code)
	assert.Equal(t, http.StatusConflict, e.do(http.MethodPost, "/api/stations/Kataragama/complete", nil, token).Code)
	assert.Equal(t, http.StatusConflict, e.do(http.MethodPost, "/api/stations/Yala_HQ/complete", CompleteRequest{IncidentID: "inc-9"}, token).Code)

	w := e.do(http.MethodPost, "/api/stations/Yala_HQ/complete", nil, token)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	select {
	case m := <-sub.C():
		mc, err := model.PayloadAs[model.MissionComplete](m)
		require.NoError(t, err)
		assert.Equal(t, model.MissionComplete{StationID: "Yala_HQ", IncidentID: "inc-7"}, mc)
	case <-time.After(time.Second):
		t.Fatal("mission complete not published")
	}
}
