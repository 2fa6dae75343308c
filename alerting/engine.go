// Package alerting evaluates readings against per-kind threshold bands and
// turns breaches into alert records.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Kevin-Teran/acuaponia-sub001/errors"
	"github.com/Kevin-Teran/acuaponia-sub001/metric"
	"github.com/Kevin-Teran/acuaponia-sub001/store"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// AlertSink receives created alerts for live delivery.
type AlertSink interface {
	EmitAlert(a types.Alert)
}

// Notifier receives high-severity alerts for out-of-band delivery.
// Implementations must return immediately; delivery is detached.
type Notifier interface {
	Notify(a types.Alert)
}

// DefaultThresholds returns the built-in safety envelopes for recirculating
// aquaculture tanks. Deployments override per kind through configuration.
func DefaultThresholds() map[types.MeasurementKind]types.ThresholdBand {
	return map[types.MeasurementKind]types.ThresholdBand{
		types.KindTemperature:     {CriticalLow: 18, Low: 22, High: 28, CriticalHigh: 32},
		types.KindPH:              {CriticalLow: 6.0, Low: 6.5, High: 7.5, CriticalHigh: 8.0},
		types.KindDissolvedOxygen: {CriticalLow: 4, Low: 5, High: 10, CriticalHigh: 12},
	}
}

// Engine is the stateless threshold evaluator. Every breaching reading
// produces a new alert: no debounce or hysteresis is applied, so a stuck
// sensor will produce a stream of alerts. The suppression policy is an
// open product question and is intentionally not decided here.
type Engine struct {
	thresholds map[types.MeasurementKind]types.ThresholdBand
	store      store.Store
	sink       AlertSink
	notifier   Notifier
	logger     *slog.Logger
	metrics    *metric.Metrics
}

// NewEngine builds the engine. Bands must satisfy the ordering invariant
// criticalLow < low < high < criticalHigh.
func NewEngine(
	thresholds map[types.MeasurementKind]types.ThresholdBand,
	st store.Store,
	sink AlertSink,
	notifier Notifier,
	logger *slog.Logger,
	metrics *metric.Metrics,
) (*Engine, error) {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds()
	}
	for kind, band := range thresholds {
		if !band.Valid() {
			return nil, errors.WrapInvalid(
				fmt.Errorf("threshold band for %s violates ordering: %+v", kind, band),
				"Engine", "NewEngine", "validate thresholds")
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		thresholds: thresholds,
		store:      st,
		sink:       sink,
		notifier:   notifier,
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Evaluate compares a value against the band for its kind and returns the
// alert candidate, or nil when the value sits inside [low, high] or the
// kind has no configured band. Critical bands are checked first so
// critical always wins over warning.
func (e *Engine) Evaluate(sensor types.Sensor, kind types.MeasurementKind, value float64) *types.Alert {
	band, ok := e.thresholds[kind]
	if !ok {
		return nil
	}

	var (
		severity  types.Severity
		threshold float64
		high      bool
	)
	switch {
	case value <= band.CriticalLow:
		severity, threshold, high = types.SeverityCritical, band.CriticalLow, false
	case value >= band.CriticalHigh:
		severity, threshold, high = types.SeverityCritical, band.CriticalHigh, true
	case value < band.Low:
		severity, threshold, high = types.SeverityHigh, band.Low, false
	case value > band.High:
		severity, threshold, high = types.SeverityHigh, band.High, true
	default:
		return nil
	}

	direction := "below"
	if high {
		direction = "above"
	}
	return &types.Alert{
		ID:          uuid.NewString(),
		SensorID:    sensor.ID,
		SensorName:  sensor.Name,
		TankName:    sensor.TankName,
		Kind:        kind,
		Type:        types.AlertTypeFor(kind, high),
		Severity:    severity,
		Message: fmt.Sprintf("%s on sensor %s is %.2f%s, %s threshold %.2f%s",
			kind, sensor.Name, value, kind.Unit(), direction, threshold, kind.Unit()),
		Value:       value,
		Threshold:   threshold,
		OwnerUserID: sensor.OwnerUserID,
		CreatedAt:   time.Now().UTC(),
	}
}

// Process evaluates a reading and, on breach, persists the alert, always
// forwards it to the live sink, and notifies out-of-band only for HIGH and
// CRITICAL severities. A persistence failure is logged but does not
// suppress delivery: threshold breaches are safety-critical.
func (e *Engine) Process(ctx context.Context, sensor types.Sensor, kind types.MeasurementKind, value float64) *types.Alert {
	alert := e.Evaluate(sensor, kind, value)
	if alert == nil {
		return nil
	}

	if err := e.store.CreateAlert(ctx, *alert); err != nil {
		e.logger.Error("alert persistence failed",
			"component", "alerting", "sensor_id", sensor.ID, "type", alert.Type, "error", err)
	}
	if e.metrics != nil {
		e.metrics.AlertsCreated.WithLabelValues(string(alert.Severity)).Inc()
	}
	e.logger.Warn("threshold breach",
		"component", "alerting", "sensor_id", sensor.ID,
		"type", alert.Type, "severity", alert.Severity, "value", value, "threshold", alert.Threshold)

	if e.sink != nil {
		e.sink.EmitAlert(*alert)
	}
	if e.notifier != nil && alert.Severity.Notifiable() {
		e.notifier.Notify(*alert)
	}
	return alert
}
