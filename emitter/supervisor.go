// Package emitter supervises synthetic sensor emitters: periodic tasks
// that fabricate plausible readings and publish them through the broker,
// one per sensor, for testing the pipeline end to end.
package emitter

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Kevin-Teran/acuaponia-sub001/errors"
	"github.com/Kevin-Teran/acuaponia-sub001/ingest"
	"github.com/Kevin-Teran/acuaponia-sub001/metric"
	"github.com/Kevin-Teran/acuaponia-sub001/store"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// Publisher is the outbound half of the broker the supervisor needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte) error
}

// DefaultInterval is the period between synthetic readings.
const DefaultInterval = 5 * time.Second

// entry pairs the operator-visible state with the private timer plumbing.
// An entry exists if and only if the supervisor holds it in the registry;
// cancel is nil exactly while the entry is paused.
type entry struct {
	state  types.EmitterState
	sensor types.Sensor
	gen    *generator
	cancel context.CancelFunc
}

// Supervisor owns the sensorID -> emitter registry. All lifecycle
// operations go through the mutex so per-sensor transitions are atomic;
// cross-sensor operations are independent.
type Supervisor struct {
	store     store.Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *metric.Metrics
	interval  time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

// NewSupervisor creates a supervisor with no registered emitters.
func NewSupervisor(st store.Store, pub Publisher, interval time.Duration, logger *slog.Logger, metrics *metric.Metrics) *Supervisor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		store:     st,
		publisher: pub,
		logger:    logger,
		metrics:   metrics,
		interval:  interval,
		entries:   make(map[string]*entry),
	}
}

// Start registers and schedules an emitter for the sensor. A second start
// for the same sensor is a no-op, not an error: at most one emitter per
// sensor. An unknown sensor returns a not-found error for the operator
// surface.
func (s *Supervisor) Start(ctx context.Context, sensorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[sensorID]; exists {
		return nil
	}

	sensor, err := s.findSensor(ctx, sensorID)
	if err != nil {
		return err
	}

	gen := newGenerator(sensor.Kind)
	if last, ok := s.store.LastReading(ctx, sensor.ID); ok {
		// Continue the walk from the sensor's cached value instead of
		// jumping back to the kind baseline.
		gen.seed(last)
	}

	e := &entry{
		state: types.EmitterState{
			SensorID:   sensor.ID,
			SensorName: sensor.Name,
			TankName:   sensor.TankName,
			OwnerName:  sensor.OwnerName,
			Kind:       sensor.Kind,
			Status:     types.EmitterActive,
			StartedAt:  time.Now().UTC(),
		},
		sensor: sensor,
		gen:    gen,
	}
	s.schedule(e)
	s.entries[sensorID] = e
	s.updateGauge()

	s.logger.Info("emitter started",
		"component", "emitter", "sensor_id", sensorID, "kind", sensor.Kind, "interval", s.interval)
	return nil
}

// Stop cancels the emitter's timer and removes it entirely. No-op when
// absent.
func (s *Supervisor) Stop(sensorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sensorID]
	if !ok {
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	delete(s.entries, sensorID)
	s.updateGauge()
	s.logger.Info("emitter stopped", "component", "emitter", "sensor_id", sensorID)
}

// Pause cancels the timer but keeps the entry, preserving StartedAt and
// the display metadata captured at start. No-op unless active.
func (s *Supervisor) Pause(sensorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sensorID]
	if !ok || e.state.Status != types.EmitterActive {
		return
	}
	e.cancel()
	e.cancel = nil
	e.state.Status = types.EmitterPaused
	s.updateGauge()
	s.logger.Info("emitter paused", "component", "emitter", "sensor_id", sensorID)
}

// Resume re-schedules a paused emitter. No-op when absent or already
// active.
func (s *Supervisor) Resume(sensorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sensorID]
	if !ok || e.state.Status != types.EmitterPaused {
		return
	}
	s.schedule(e)
	e.state.Status = types.EmitterActive
	s.updateGauge()
	s.logger.Info("emitter resumed", "component", "emitter", "sensor_id", sensorID)
}

// ListActive returns a snapshot of every registered emitter, active and
// paused, without exposing timer handles.
func (s *Supervisor) ListActive() []types.EmitterState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.EmitterState, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.state)
	}
	return out
}

// Shutdown stops every emitter.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if e.cancel != nil {
			e.cancel()
		}
		delete(s.entries, id)
	}
	s.updateGauge()
}

// schedule launches the periodic publish loop for an entry. Cancellation
// is synchronous from the caller's perspective: no in-flight publish is
// awaited, matching the fire-and-forget publish contract.
func (s *Supervisor) schedule(e *entry) {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	topic := ingest.TopicFor(e.sensor.HardwareAddress)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.publishOnce(topic, e)
			}
		}
	}()
}

func (s *Supervisor) publishOnce(topic string, e *entry) {
	value := e.gen.next()
	payload, err := json.Marshal(map[string]any{
		string(e.state.Kind): value,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Error("synthetic payload marshal failed", "component", "emitter", "error", err)
		return
	}

	// Publish errors are ignorable by contract; losing one synthetic
	// reading must not bring an emitter down.
	if err := s.publisher.Publish(topic, payload, 0); err != nil {
		s.logger.Debug("synthetic publish dropped",
			"component", "emitter", "sensor_id", e.state.SensorID, "error", err)
	}
}

func (s *Supervisor) findSensor(ctx context.Context, sensorID string) (types.Sensor, error) {
	sensor, err := s.store.FindSensorByID(ctx, sensorID)
	if err != nil {
		return types.Sensor{}, errors.WrapInvalid(errors.ErrSensorNotFound, "Supervisor", "Start", sensorID)
	}
	return sensor, nil
}

func (s *Supervisor) updateGauge() {
	if s.metrics == nil {
		return
	}
	active := 0
	for _, e := range s.entries {
		if e.state.Status == types.EmitterActive {
			active++
		}
	}
	s.metrics.EmittersActive.Set(float64(active))
}
