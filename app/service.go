// Package app assembles the wildguard engine from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kilianp07/wildguard/api/incidents"
	"github.com/kilianp07/wildguard/config"
	"github.com/kilianp07/wildguard/core/agent"
	"github.com/kilianp07/wildguard/core/content"
	"github.com/kilianp07/wildguard/core/dispatch"
	"github.com/kilianp07/wildguard/core/eventlog"
	"github.com/kilianp07/wildguard/core/geo"
	"github.com/kilianp07/wildguard/core/ingress"
	coremetrics "github.com/kilianp07/wildguard/core/metrics"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/core/monitoring"
	"github.com/kilianp07/wildguard/core/stage"
	"github.com/kilianp07/wildguard/core/station"
	"github.com/kilianp07/wildguard/infra/alert"
	infracontent "github.com/kilianp07/wildguard/infra/content"
	_ "github.com/kilianp07/wildguard/infra/eventlog"
	"github.com/kilianp07/wildguard/infra/ledger"
	"github.com/kilianp07/wildguard/infra/logger"
	"github.com/kilianp07/wildguard/infra/metrics"
	infamon "github.com/kilianp07/wildguard/infra/monitoring"
	"github.com/kilianp07/wildguard/infra/mqtt"
	"github.com/kilianp07/wildguard/internal/broker"
)

// Options adjusts New for embedded use such as the incident command.
type Options struct {
	// Generator replaces the configured content service.
	Generator content.Generator
	// DisableIO skips MQTT, the HTTP API and the metrics endpoint.
	DisableIO bool
}

// Service owns the broker and every agent running on it.
type Service struct {
	cfg  *config.Config
	opts Options
	log  logger.Logger

	Bus         *broker.Bus
	Gateway     *ingress.Gateway
	Coordinator *dispatch.Coordinator
	Stations    []*station.Agent
	Recorder    *eventlog.Recorder

	stages    []*stage.Stage
	collector *metrics.Collector
	sink      coremetrics.MetricsSink
	runner    *agent.Runner
	ledger    io.Closer
	bridge    *mqtt.Bridge
	api       *incidents.Server
	cancel    context.CancelFunc
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts Options) (svc *Service, err error) {
	if err := logger.Configure(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	}); err != nil {
		return nil, err
	}
	log := logger.New("service")
	mon, err := infamon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	monitoring.Init(mon)

	s := &Service{cfg: cfg, opts: opts, log: log}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.Bus = broker.New(cfg.Broker, logger.New("broker"))
	s.runner = agent.NewRunner(s.Bus, logger.New("runner"))

	if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	s.collector = metrics.NewCollector(s.sink, logger.New("metrics"))

	store, err := eventlog.NewStore(cfg.EventLog.Store)
	if err != nil {
		return nil, fmt.Errorf("event log store: %w", err)
	}
	last, err := eventlog.LastSeq(context.Background(), store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("event log last sequence: %w", err)
	}
	s.Bus.ResumeAfter(last)
	exporters, err := eventlog.NewSinks(cfg.EventLog.Exporters)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("event log exporters: %w", err)
	}
	s.Recorder = eventlog.NewRecorder(store, logger.New("eventlog"), exporters...)

	led, err := s.newLedger()
	if err != nil {
		return nil, err
	}

	s.Stations, err = station.FromRoster(cfg.Stations, cfg.Terrain, s.Bus, logger.New)
	if err != nil {
		return nil, err
	}
	s.Coordinator, err = dispatch.NewCoordinator(cfg.Dispatch, s.Bus, led, cfg.Boundary, len(s.Stations), logger.New("coordinator"))
	if err != nil {
		return nil, err
	}

	gen := opts.Generator
	if gen == nil {
		if gen, err = infracontent.New(cfg.Content, logger.New("content")); err != nil {
			return nil, err
		}
	}
	timeout := time.Duration(cfg.StageTOMS) * time.Millisecond
	norm := ingress.NewNormalizer(gen, timeout, logger.New("normalizer"))
	if s.Gateway, err = ingress.NewGateway(s.Bus, cfg.Boundary, norm, logger.New("ingress")); err != nil {
		return nil, err
	}

	stageOpts := stage.Options{Timeout: timeout, Places: geo.NewGazetteer(cfg.Places)}
	if cfg.Alerts.Enabled() {
		mailer, err := alert.NewMailer(cfg.Alerts, logger.New("alert"))
		if err != nil {
			return nil, err
		}
		stageOpts.Announcer = mailer
	}
	for _, spec := range stage.All() {
		st, err := stage.New(spec, gen, s.Bus, stageOpts, logger.New("stage."+spec.Name))
		if err != nil {
			return nil, err
		}
		s.stages = append(s.stages, st)
	}

	if opts.DisableIO {
		return s, nil
	}
	if cfg.MQTT.Enabled {
		if s.bridge, err = mqtt.NewBridge(cfg.MQTT.Config, s.Gateway, s.Bus, logger.New("mqtt")); err != nil {
			return nil, fmt.Errorf("mqtt bridge: %w", err)
		}
	}
	if cfg.API.Enabled {
		views := make([]incidents.Station, len(s.Stations))
		for i, a := range s.Stations {
			views[i] = a
		}
		h := incidents.NewHandler(incidents.Deps{
			Ingress:   s.Gateway,
			Decisions: s.Coordinator,
			Events:    s.Recorder.Store(),
			Stations:  views,
			Broker:    s.Bus,
		}, logger.New("api"))
		s.api = incidents.NewServer(cfg.API.Config, h, logger.New("api"))
	}
	return s, nil
}

func (s *Service) newLedger() (dispatch.Ledger, error) {
	if s.cfg.Ledger.Type != config.LedgerRedis {
		return dispatch.NewMemoryLedger(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	l, err := ledger.Dial(ctx, s.cfg.Ledger.Redis)
	if err != nil {
		return nil, err
	}
	s.ledger = l
	return l, nil
}

// Start subscribes every agent and starts the outer interfaces. It returns
// once the engine accepts incidents.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	// The recorder subscribes first so the log sees every message.
	s.runner.Start(ctx, s.Recorder)
	s.runner.Start(ctx, s.collector)
	for _, a := range s.Stations {
		s.runner.Start(ctx, a)
	}
	s.runner.Start(ctx, s.Coordinator)
	for _, st := range s.stages {
		s.runner.Start(ctx, st)
	}
	metrics.WatchDeliveryErrors(ctx, s.Bus, s.sink, s.log)

	if s.bridge != nil {
		s.runner.Start(ctx, s.bridge)
	}
	if s.api != nil {
		s.api.Start()
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" && !s.opts.DisableIO {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, nil, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	s.log.Infof("wildguard started with %d stations in %s", len(s.Stations), s.cfg.Boundary.Name)
}

// Run starts the service and blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	defer monitoring.Recover()
	s.Start(ctx)
	<-ctx.Done()
	return nil
}

// AwaitDecision polls the coordinator until incidentID is decided.
func (s *Service) AwaitDecision(ctx context.Context, incidentID string) (model.DispatchDecision, error) {
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for {
		d, ok, err := s.Coordinator.Decision(ctx, incidentID)
		if err != nil {
			return d, err
		}
		if ok {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return model.DispatchDecision{}, ctx.Err()
		case <-t.C:
		}
	}
}

// Close stops every component. Pending bid windows are abandoned.
func (s *Service) Close() error {
	var errs []error
	if s.api != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, s.api.Shutdown(ctx))
		cancel()
	}
	if s.bridge != nil {
		s.bridge.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.Bus != nil {
		s.Bus.Close()
	}
	if s.runner != nil {
		s.runner.Wait()
	}
	if s.Coordinator != nil {
		s.Coordinator.Wait()
	}
	if s.Recorder != nil {
		errs = append(errs, s.Recorder.Close())
	}
	if s.ledger != nil {
		errs = append(errs, s.ledger.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	monitoring.Flush(2 * time.Second)
	return errors.Join(errs...)
}
