// Package ingest turns raw broker messages into persisted readings and
// feeds the downstream alert and fan-out consumers.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Kevin-Teran/acuaponia-sub001/broker"
	"github.com/Kevin-Teran/acuaponia-sub001/errors"
	"github.com/Kevin-Teran/acuaponia-sub001/metric"
	"github.com/Kevin-Teran/acuaponia-sub001/pkg/worker"
	"github.com/Kevin-Teran/acuaponia-sub001/store"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// Subscriber is the inbound half of the broker the processor needs.
type Subscriber interface {
	Subscribe(pattern string, qos byte, handler broker.MessageHandler) error
}

// ReadingSink receives persisted readings for live delivery.
type ReadingSink interface {
	EmitReading(r types.Reading)
}

// Evaluator is invoked for every ingested value. The returned alert, if
// any, has already been persisted and forwarded by the evaluator.
type Evaluator interface {
	Process(ctx context.Context, sensor types.Sensor, kind types.MeasurementKind, value float64) *types.Alert
}

// message is one routed delivery queued for processing.
type message struct {
	topic       string
	hardwareRef string
	payload     []byte
	receivedAt  time.Time
}

// Config sizes the ingestion worker pool. Workers is the partition
// count: messages for one sensor always run on the same partition, so
// per-sensor delivery order is preserved while distinct sensors process
// in parallel.
type Config struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
}

// DefaultConfig returns the default pool sizing.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 512}
}

// Processor owns the broker subscription and the pipeline steps for each
// incoming message. Messages are handed to a bounded worker pool keyed by
// hardware reference, so the broker delivery goroutine never waits on
// persistence and readings for one sensor keep their delivery order.
type Processor struct {
	subscriber Subscriber
	store      store.Store
	evaluator  Evaluator
	sink       ReadingSink
	logger     *slog.Logger
	metrics    *metric.Metrics
	pool       *worker.KeyedPool[message]
}

// NewProcessor wires the processor. Evaluator and sink may be nil in
// partial deployments; persistence is always on.
func NewProcessor(
	cfg Config,
	sub Subscriber,
	st store.Store,
	evaluator Evaluator,
	sink ReadingSink,
	logger *slog.Logger,
	metrics *metric.Metrics,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		subscriber: sub,
		store:      st,
		evaluator:  evaluator,
		sink:       sink,
		logger:     logger,
		metrics:    metrics,
	}

	var opts []worker.KeyedOption[message]
	if metrics != nil {
		opts = append(opts, worker.WithKeyedQueueDepthGauge[message](metrics.IngestQueueDepth))
	}
	p.pool = worker.NewKeyedPool(cfg.Workers, cfg.QueueSize, p.process, opts...)
	return p
}

// Start launches the worker pool and opens the wildcard subscription.
func (p *Processor) Start(ctx context.Context) error {
	if err := p.pool.Start(ctx); err != nil {
		return errors.Wrap(err, "Processor", "Start", "start pool")
	}
	if err := p.subscriber.Subscribe(SubscribePattern, 1, p.onMessage); err != nil {
		return errors.Wrap(err, "Processor", "Start", "subscribe")
	}
	p.logger.Info("ingestion started", "component", "ingest", "pattern", SubscribePattern)
	return nil
}

// Stop drains the worker pool.
func (p *Processor) Stop(timeout time.Duration) error {
	return p.pool.Stop(timeout)
}

// onMessage runs on the broker delivery goroutine and must not block.
// Routing happens here so the hardware reference can key the pool
// partition, pinning each sensor's messages to one worker.
func (p *Processor) onMessage(topic string, payload []byte) {
	hardwareRef, err := ParseTopic(topic)
	if err != nil {
		p.dropped("bad_topic")
		p.logger.Debug("unroutable topic dropped", "component", "ingest", "topic", topic)
		return
	}

	err = p.pool.Submit(hardwareRef, message{
		topic:       topic,
		hardwareRef: hardwareRef,
		payload:     payload,
		receivedAt:  time.Now().UTC(),
	})
	if err != nil {
		p.dropped("queue_full")
		p.logger.Warn("message dropped, ingestion queue full", "component", "ingest", "topic", topic)
	}
}

// process is the worker-side entry: decode the payload and handle each
// observation in delivery order.
func (p *Processor) process(ctx context.Context, msg message) error {
	observations, ts, warnings, err := DecodePayload(msg.payload, msg.receivedAt)
	for _, w := range warnings {
		p.logger.Warn("payload value skipped", "component", "ingest", "topic", msg.topic, "reason", w)
	}
	if err != nil {
		p.dropped("bad_payload")
		p.logger.Warn("undecodable payload dropped", "component", "ingest", "topic", msg.topic)
		return err
	}

	for _, obs := range observations {
		p.Handle(ctx, msg.hardwareRef, obs.Kind, obs.Value, ts)
	}
	return nil
}

// Handle runs the ingestion steps for one observation. Each step's failure
// is caught and logged independently: only an unknown sensor aborts, since
// there is nothing to persist or evaluate. A persistence failure does not
// suppress evaluation, a threshold breach must still be raised even when
// the durable write failed.
func (p *Processor) Handle(ctx context.Context, hardwareRef string, kind types.MeasurementKind, value float64, ts time.Time) {
	sensor, err := p.store.FindSensorByHardwareRef(ctx, hardwareRef)
	if err != nil {
		p.dropped("unknown_sensor")
		p.logger.Warn("reading for unknown hardware reference dropped",
			"component", "ingest", "hardware_ref", hardwareRef, "error", err)
		return
	}

	reading := types.Reading{
		ID:        uuid.NewString(),
		SensorID:  sensor.ID,
		TankID:    sensor.TankID,
		Kind:      kind,
		Value:     value,
		Timestamp: ts,
	}

	if err := p.store.CreateReading(ctx, reading); err != nil {
		p.logger.Error("reading persistence failed",
			"component", "ingest", "sensor_id", sensor.ID, "error", err)
	} else if p.metrics != nil {
		p.metrics.ReadingsIngested.WithLabelValues(string(kind)).Inc()
	}

	// Best-effort cache refresh; a failure here never blocks evaluation.
	if err := p.store.UpdateSensorCache(ctx, sensor.ID, value, ts); err != nil {
		p.logger.Warn("sensor cache update failed",
			"component", "ingest", "sensor_id", sensor.ID, "error", err)
	}

	if p.evaluator != nil {
		p.evaluator.Process(ctx, sensor, kind, value)
	}
	if p.sink != nil {
		p.sink.EmitReading(reading)
	}
}

// Stats exposes worker pool statistics for the operator surface.
func (p *Processor) Stats() worker.PoolStats {
	return p.pool.Stats()
}

func (p *Processor) dropped(reason string) {
	if p.metrics != nil {
		p.metrics.ReadingsDropped.WithLabelValues(reason).Inc()
	}
}
