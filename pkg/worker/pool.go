// Package worker provides a generic bounded worker pool. The ingestion
// processor uses it to hand incoming broker messages off the delivery
// goroutine: a slow persistence backend throttles throughput but never
// stalls the connection's keep-alive.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pool processes work items of type T on a fixed set of goroutines behind
// a bounded queue. Submit never blocks: when the queue is full the item is
// dropped and counted.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error

	workChan chan T
	wg       *sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	queueDepth prometheus.Gauge
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithQueueDepthGauge wires a gauge that tracks the live queue depth.
func WithQueueDepthGauge[T any](g prometheus.Gauge) Option[T] {
	return func(p *Pool[T]) {
		p.queueDepth = g
	}
}

// NewPool creates a worker pool. workers and queueSize fall back to
// defaults when non-positive; a nil processor panics since the pool is
// useless without one.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 512
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit queues work for processing. Returns ErrQueueFull instead of
// blocking when the queue is saturated.
func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.workChan <- work:
		p.submitted.Add(1)
		if p.queueDepth != nil {
			p.queueDepth.Set(float64(len(p.workChan)))
		}
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Start launches the workers. The context is passed through to the
// processor and cancels in-flight work on shutdown.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	p.wg = &sync.WaitGroup{}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.started = true
	return nil
}

// Stop closes the queue and waits up to timeout for workers to drain.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}

	close(p.workChan)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.stopped = true
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns current pool statistics.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

// PoolStats represents worker pool statistics.
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}
			err := p.processor(ctx, work)
			p.processed.Add(1)
			if err != nil {
				p.failed.Add(1)
			}
			if p.queueDepth != nil {
				p.queueDepth.Set(float64(len(p.workChan)))
			}
		}
	}
}
