package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Kevin-Teran/acuaponia-sub001/config"
	"github.com/Kevin-Teran/acuaponia-sub001/errors"
	"github.com/Kevin-Teran/acuaponia-sub001/ingest"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// API is the operator HTTP surface: emitter lifecycle control, manual
// reading injection, health, and metrics.
type API struct {
	cfg    config.HTTPConfig
	svc    *Service
	logger *slog.Logger
	server *http.Server
}

// NewAPI builds the operator surface around an assembled service.
func NewAPI(cfg config.HTTPConfig, svc *Service, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	a := &API{cfg: cfg, svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", svc.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/emitters", a.handleListEmitters)
		r.Post("/emitters/{sensorID}/start", a.handleEmitterStart)
		r.Post("/emitters/{sensorID}/stop", a.handleEmitterStop)
		r.Post("/emitters/{sensorID}/pause", a.handleEmitterPause)
		r.Post("/emitters/{sensorID}/resume", a.handleEmitterResume)
		r.Post("/readings", a.handlePublishReading)
		r.Post("/alerts/{alertID}/resolve", a.handleResolveAlert)
		r.Get("/ingest/stats", a.handleIngestStats)
	})

	a.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a
}

// Start begins serving in the background. Listen errors after startup are
// logged, not returned.
func (a *API) Start(_ context.Context) error {
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("operator api listener failed", "component", "api", "error", err)
		}
	}()
	a.logger.Info("operator api listening", "component", "api", "addr", a.cfg.Addr)
	return nil
}

// Stop gracefully drains the listener.
func (a *API) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.server.Shutdown(ctx)
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := a.svc.Health()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (a *API) handleListEmitters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.supervisor.ListActive())
}

func (a *API) handleEmitterStart(w http.ResponseWriter, r *http.Request) {
	sensorID := chi.URLParam(r, "sensorID")
	if err := a.svc.supervisor.Start(r.Context(), sensorID); err != nil {
		if stderrors.Is(err, errors.ErrSensorNotFound) {
			writeError(w, http.StatusNotFound, "sensor not found")
			return
		}
		a.logger.Error("emitter start failed", "component", "api", "sensor_id", sensorID, "error", err)
		writeError(w, http.StatusInternalServerError, "emitter start failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sensor_id": sensorID, "status": string(types.EmitterActive)})
}

func (a *API) handleEmitterStop(w http.ResponseWriter, r *http.Request) {
	sensorID := chi.URLParam(r, "sensorID")
	a.svc.supervisor.Stop(sensorID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleEmitterPause(w http.ResponseWriter, r *http.Request) {
	sensorID := chi.URLParam(r, "sensorID")
	a.svc.supervisor.Pause(sensorID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleEmitterResume(w http.ResponseWriter, r *http.Request) {
	sensorID := chi.URLParam(r, "sensorID")
	a.svc.supervisor.Resume(sensorID)
	w.WriteHeader(http.StatusNoContent)
}

// publishRequest is a manual reading injected through the operator API.
// It takes the same path as a broker delivery so every pipeline step runs.
type publishRequest struct {
	SensorID string  `json:"sensor_id"`
	Value    float64 `json:"value"`
}

func (a *API) handlePublishReading(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SensorID == "" {
		writeError(w, http.StatusBadRequest, "sensor_id and value are required")
		return
	}

	sensor, err := a.svc.store.FindSensorByID(r.Context(), req.SensorID)
	if err != nil {
		if stderrors.Is(err, errors.ErrSensorNotFound) {
			writeError(w, http.StatusNotFound, "sensor not found")
			return
		}
		a.logger.Error("sensor lookup failed", "component", "api", "sensor_id", req.SensorID, "error", err)
		writeError(w, http.StatusInternalServerError, "sensor lookup failed")
		return
	}

	payload, err := json.Marshal(map[string]any{
		string(sensor.Kind): req.Value,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	if err := a.svc.broker.Publish(ingest.TopicFor(sensor.HardwareAddress), payload, 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "broker unavailable")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *API) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "alertID")
	if err := a.svc.store.ResolveAlert(r.Context(), alertID, time.Now().UTC()); err != nil {
		if errors.IsInvalid(err) {
			writeError(w, http.StatusNotFound, "alert not found or already resolved")
			return
		}
		a.logger.Error("alert resolution failed", "component", "api", "alert_id", alertID, "error", err)
		writeError(w, http.StatusInternalServerError, "alert resolution failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleIngestStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.processor.Stats())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
