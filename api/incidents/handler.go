// Package incidents exposes incident intake, dispatch decisions, timelines
// and station state over HTTP.
package incidents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/kilianp07/wildguard/core/eventlog"
	"github.com/kilianp07/wildguard/core/logger"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/internal/broker"
)

// Ingress accepts structured incidents and free-text reports.
type Ingress interface {
	Submit(ctx context.Context, inc model.Incident) (model.Incident, error)
	SubmitReport(ctx context.Context, r model.FieldReport) (model.Incident, bool, error)
}

// Decisions looks up recorded dispatch decisions.
type Decisions interface {
	Decision(ctx context.Context, incidentID string) (model.DispatchDecision, bool, error)
}

// Station is the view of a station agent the API needs.
type Station interface {
	Station() model.Station
	Availability() (model.Availability, string)
}

// Deps groups the handler's collaborators.
type Deps struct {
	Ingress   Ingress
	Decisions Decisions
	Events    eventlog.Store
	Stations  []Station
	Broker    broker.Broker
}

// Handler serves the /api routes.
type Handler struct {
	deps     Deps
	stations map[string]Station
	validate *validator.Validate
	log      logger.Logger
}

// NewHandler builds a Handler.
func NewHandler(deps Deps, log logger.Logger) *Handler {
	idx := make(map[string]Station, len(deps.Stations))
	for _, s := range deps.Stations {
		idx[s.Station().ID] = s
	}
	return &Handler{
		deps:     deps,
		stations: idx,
		validate: model.Validator(),
		log:      logger.OrNop(log),
	}
}

// RegisterRoutes mounts the routes on api.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	incidents := api.Group("/incidents")
	{
		incidents.POST("", h.createIncident)
		incidents.GET("/:id/decision", h.getDecision)
		incidents.GET("/:id/timeline", h.getTimeline)
	}
	api.POST("/reports", h.createReport)

	stations := api.Group("/stations")
	{
		stations.GET("", h.listStations)
		stations.POST("/:id/complete", h.completeMission)
	}
}

func (h *Handler) createIncident(c *gin.Context) {
	var req IncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": model.FromValidator(err).Error()})
		return
	}
	inc, err := h.deps.Ingress.Submit(c.Request.Context(), req.toModel())
	if err != nil {
		h.fail(c, "submit incident", err)
		return
	}
	c.JSON(http.StatusAccepted, inc)
}

func (h *Handler) createReport(c *gin.Context) {
	var req model.FieldReport
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}
	inc, degraded, err := h.deps.Ingress.SubmitReport(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "submit report", err)
		return
	}
	c.JSON(http.StatusAccepted, ReportResponse{Incident: inc, Degraded: degraded})
}

func (h *Handler) getDecision(c *gin.Context) {
	id := c.Param("id")
	d, ok, err := h.deps.Decisions.Decision(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get decision", err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no decision for incident " + id})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) getTimeline(c *gin.Context) {
	id := c.Param("id")
	recs, err := eventlog.Timeline(c.Request.Context(), h.deps.Events, id)
	if err != nil {
		h.fail(c, "get timeline", err)
		return
	}
	if len(recs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown incident " + id})
		return
	}
	out := make([]TimelineEntry, 0, len(recs))
	for _, r := range recs {
		var payload any
		if len(r.Payload) > 0 {
			if err := json.Unmarshal(r.Payload, &payload); err != nil {
				payload = string(r.Payload)
			}
		}
		out = append(out, TimelineEntry{Seq: r.Seq, Topic: r.Topic, Sender: r.Sender, Timestamp: r.Timestamp, Payload: payload})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) listStations(c *gin.Context) {
	out := make([]StationResponse, 0, len(h.deps.Stations))
	for _, s := range h.deps.Stations {
		state, inc := s.Availability()
		out = append(out, StationResponse{Station: s.Station(), Availability: state.String(), IncidentID: inc})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) completeMission(c *gin.Context) {
	id := c.Param("id")
	s, ok := h.stations[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown station " + id})
		return
	}
	var req CompleteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}
	state, current := s.Availability()
	if state != model.AvailabilityDispatched {
		c.JSON(http.StatusConflict, gin.H{"error": "station " + id + " is not on a mission"})
		return
	}
	if req.IncidentID == "" {
		req.IncidentID = current
	}
	if req.IncidentID != current {
		c.JSON(http.StatusConflict, gin.H{"error": "station " + id + " is serving " + current})
		return
	}
	mc := model.MissionComplete{StationID: id, IncidentID: req.IncidentID}
	if err := h.deps.Broker.Publish(model.TopicMissionComplete, model.NewMessage("api", req.IncidentID, mc)); err != nil {
		h.fail(c, "publish mission complete", err)
		return
	}
	c.JSON(http.StatusAccepted, mc)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	if model.IsValidationError(err) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": op + ": " + err.Error()})
		return
	}
	h.log.Errorf("api: %s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
