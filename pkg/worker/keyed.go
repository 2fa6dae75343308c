package worker

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// KeyedPool partitions work across single-goroutine pools by key. Items
// that share a key always land on the same partition, so they are
// processed in submission order; distinct keys spread across partitions
// and run in parallel. queueSize bounds each partition's queue.
type KeyedPool[T any] struct {
	partitions []*Pool[T]
	queueDepth prometheus.Gauge
}

// KeyedOption configures a KeyedPool.
type KeyedOption[T any] func(*KeyedPool[T])

// WithKeyedQueueDepthGauge wires a gauge tracking the summed queue depth
// across partitions.
func WithKeyedQueueDepthGauge[T any](g prometheus.Gauge) KeyedOption[T] {
	return func(kp *KeyedPool[T]) {
		kp.queueDepth = g
	}
}

// NewKeyedPool creates a keyed pool with the given number of partitions.
// Values fall back to the same defaults as NewPool.
func NewKeyedPool[T any](partitions, queueSize int, processor func(context.Context, T) error, opts ...KeyedOption[T]) *KeyedPool[T] {
	if partitions <= 0 {
		partitions = 4
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	kp := &KeyedPool[T]{}
	for _, opt := range opts {
		opt(kp)
	}

	proc := processor
	if kp.queueDepth != nil {
		proc = func(ctx context.Context, work T) error {
			err := processor(ctx, work)
			kp.queueDepth.Set(float64(kp.Stats().QueueDepth))
			return err
		}
	}

	kp.partitions = make([]*Pool[T], partitions)
	for i := range kp.partitions {
		kp.partitions[i] = NewPool(1, queueSize, proc)
	}
	return kp
}

// Submit queues work on the partition its key hashes to. Returns
// ErrQueueFull instead of blocking when that partition is saturated.
func (kp *KeyedPool[T]) Submit(key string, work T) error {
	err := kp.partitions[kp.partition(key)].Submit(work)
	if err == nil && kp.queueDepth != nil {
		kp.queueDepth.Set(float64(kp.Stats().QueueDepth))
	}
	return err
}

// Start launches every partition's worker.
func (kp *KeyedPool[T]) Start(ctx context.Context) error {
	for _, p := range kp.partitions {
		if err := p.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop drains every partition, waiting up to timeout for each.
func (kp *KeyedPool[T]) Stop(timeout time.Duration) error {
	var firstErr error
	for _, p := range kp.partitions {
		if err := p.Stop(timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats aggregates statistics across partitions. Workers reports the
// partition count; QueueSize the summed capacity.
func (kp *KeyedPool[T]) Stats() PoolStats {
	out := PoolStats{Workers: len(kp.partitions)}
	for _, p := range kp.partitions {
		s := p.Stats()
		out.QueueSize += s.QueueSize
		out.QueueDepth += s.QueueDepth
		out.Submitted += s.Submitted
		out.Processed += s.Processed
		out.Failed += s.Failed
		out.Dropped += s.Dropped
	}
	return out
}

func (kp *KeyedPool[T]) partition(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(kp.partitions)))
}
