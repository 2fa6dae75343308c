// Package service assembles the telemetry pipeline: broker, store,
// ingestion, alerting, fan-out, emitters, and the operator HTTP surface,
// started in dependency order and stopped in reverse.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Kevin-Teran/acuaponia-sub001/alerting"
	"github.com/Kevin-Teran/acuaponia-sub001/broker"
	"github.com/Kevin-Teran/acuaponia-sub001/config"
	"github.com/Kevin-Teran/acuaponia-sub001/directory"
	"github.com/Kevin-Teran/acuaponia-sub001/emitter"
	"github.com/Kevin-Teran/acuaponia-sub001/errors"
	"github.com/Kevin-Teran/acuaponia-sub001/fanout"
	"github.com/Kevin-Teran/acuaponia-sub001/health"
	"github.com/Kevin-Teran/acuaponia-sub001/ingest"
	"github.com/Kevin-Teran/acuaponia-sub001/metric"
	"github.com/Kevin-Teran/acuaponia-sub001/notify"
	"github.com/Kevin-Teran/acuaponia-sub001/store/postgres"
)

// stopTimeout bounds each component's shutdown during Stop.
const stopTimeout = 10 * time.Second

// Service owns every pipeline component and their start order.
type Service struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metric.Registry
	health  *health.Monitor

	store      *postgres.Store
	broker     *broker.Client
	hub        *fanout.Hub
	engine     *alerting.Engine
	dispatcher *notify.Dispatcher
	processor  *ingest.Processor
	supervisor *emitter.Supervisor
	api        *API
}

// New builds the full pipeline from configuration. Nothing is started;
// the caller drives the lifecycle through Start and Stop.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := metric.NewRegistry()
	m := registry.Metrics
	monitor := health.NewMonitor()

	st, err := postgres.New(ctx, postgres.Config{
		PostgresURL:   cfg.Store.PostgresDSN,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "Service", "New", "connect store")
	}

	dir, err := directory.NewJWTDirectory(directory.Config{
		Secret: cfg.Directory.JWTSecret,
		Issuer: cfg.Directory.JWTIssuer,
	})
	if err != nil {
		st.Close()
		return nil, errors.Wrap(err, "Service", "New", "build directory")
	}

	hub := fanout.NewHub(fanout.Config{
		Addr: cfg.Fanout.Addr,
		Path: cfg.Fanout.Path,
	}, dir, logger, m)

	var mailer notify.Mailer
	if cfg.Notify.Enabled {
		mailer, err = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			Username: cfg.Notify.SMTPUsername,
			Password: cfg.Notify.SMTPPassword,
			From:     cfg.Notify.From,
		})
		if err != nil {
			st.Close()
			return nil, errors.Wrap(err, "Service", "New", "build mailer")
		}
	}
	dispatcher := notify.NewDispatcher(notify.Config{
		Enabled:     cfg.Notify.Enabled,
		MaxInFlight: cfg.Notify.MaxInFlight,
	}, st, mailer, logger, m)

	engine, err := alerting.NewEngine(cfg.ThresholdBands(), st, hub, dispatcher, logger, m)
	if err != nil {
		st.Close()
		return nil, errors.Wrap(err, "Service", "New", "build alert engine")
	}

	brokerClient, err := broker.New(broker.Config{
		URL:            cfg.Broker.URL,
		ClientID:       cfg.Broker.ClientID,
		Username:       cfg.Broker.Username,
		Password:       cfg.Broker.Password,
		ConnectTimeout: time.Duration(cfg.Broker.ConnectTimeoutSec) * time.Second,
		ReconnectDelay: time.Duration(cfg.Broker.ReconnectDelaySec) * time.Second,
		MaxReconnects:  cfg.Broker.MaxReconnects,
	},
		broker.WithLogger(logger),
		broker.WithConnectedGauge(func(connected bool) {
			if connected {
				m.BrokerConnected.Set(1)
				monitor.UpdateHealthy("broker", "connected")
			} else {
				m.BrokerConnected.Set(0)
				monitor.UpdateDegraded("broker", "connection lost, reconnecting")
			}
		}),
		broker.WithOnReconnect(func() {
			m.BrokerReconnects.Inc()
		}),
		broker.WithOnFatal(func(err error) {
			monitor.UpdateUnhealthy("broker", "reconnect budget exhausted: "+err.Error())
		}),
	)
	if err != nil {
		st.Close()
		return nil, errors.Wrap(err, "Service", "New", "build broker client")
	}

	processor := ingest.NewProcessor(ingest.Config{
		Workers:   cfg.Ingest.Workers,
		QueueSize: cfg.Ingest.QueueSize,
	}, brokerClient, st, engine, hub, logger, m)

	supervisor := emitter.NewSupervisor(st, brokerClient, cfg.EmitterInterval(), logger, m)

	s := &Service{
		cfg:        cfg,
		logger:     logger,
		metrics:    registry,
		health:     monitor,
		store:      st,
		broker:     brokerClient,
		hub:        hub,
		engine:     engine,
		dispatcher: dispatcher,
		processor:  processor,
		supervisor: supervisor,
	}
	s.api = NewAPI(cfg.HTTP, s, logger)
	return s, nil
}

// Start brings the pipeline up: broker first so the subscription in the
// processor lands on a live connection, then the consumers, then the
// operator surfaces.
func (s *Service) Start(ctx context.Context) error {
	if err := s.broker.Connect(ctx); err != nil {
		return errors.Wrap(err, "Service", "Start", "connect broker")
	}
	s.health.UpdateHealthy("broker", "connected")

	if err := s.processor.Start(ctx); err != nil {
		return errors.Wrap(err, "Service", "Start", "start processor")
	}
	s.health.UpdateHealthy("ingest", "running")

	if err := s.hub.Start(ctx); err != nil {
		return errors.Wrap(err, "Service", "Start", "start fanout")
	}
	s.health.UpdateHealthy("fanout", "listening on "+s.cfg.Fanout.Addr)

	if err := s.api.Start(ctx); err != nil {
		return errors.Wrap(err, "Service", "Start", "start operator api")
	}
	s.health.UpdateHealthy("store", "connected")

	s.logger.Info("pipeline started",
		"component", "service",
		"broker", s.cfg.Broker.URL,
		"fanout", s.cfg.Fanout.Addr,
		"api", s.cfg.HTTP.Addr)
	return nil
}

// Stop tears the pipeline down in reverse start order. Errors are logged
// and collected; shutdown always runs to completion.
func (s *Service) Stop() {
	if err := s.api.Stop(stopTimeout); err != nil {
		s.logger.Error("operator api shutdown failed", "component", "service", "error", err)
	}
	s.supervisor.Shutdown()
	if err := s.hub.Stop(stopTimeout); err != nil {
		s.logger.Error("fanout shutdown failed", "component", "service", "error", err)
	}
	if err := s.processor.Stop(stopTimeout); err != nil {
		s.logger.Error("processor shutdown failed", "component", "service", "error", err)
	}
	s.broker.Close()
	s.store.Close()
	s.logger.Info("pipeline stopped", "component", "service")
}

// Health returns the aggregated component health.
func (s *Service) Health() health.Status {
	return s.health.Aggregate("pipeline")
}
