package incidents

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/wildguard/core/logger"
)

// Config configures the HTTP server.
type Config struct {
	Addr   string   `json:"addr"`
	Tokens []string `json:"tokens"`
}

// Server runs the API.
type Server struct {
	srv *http.Server
	log logger.Logger
}

// NewRouter returns the gin engine with /healthz and the authenticated /api
// group.
func NewRouter(h *Handler, tokens []string, log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	api := r.Group("/api", BearerAuth(tokens, log))
	h.RegisterRoutes(api)
	return r
}

// NewServer builds a server listening on cfg.Addr.
func NewServer(cfg Config, h *Handler, log logger.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	log = logger.OrNop(log)
	if len(cfg.Tokens) == 0 {
		log.Warnf("api: no tokens configured, authentication disabled")
	}
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(h, cfg.Tokens, log),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.log.Infof("api listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("api server: %v", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
