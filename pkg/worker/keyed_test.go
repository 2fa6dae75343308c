package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyedItem struct {
	key string
	seq int
}

func TestKeyedPool_SameKeyProcessesInOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
	)
	pool := NewKeyedPool(4, 16, func(_ context.Context, item keyedItem) error {
		// Stall the first item so a later one would overtake it if the
		// key did not pin both to the same partition.
		if item.seq == 1 {
			time.Sleep(100 * time.Millisecond)
		}
		mu.Lock()
		seen = append(seen, item.seq)
		mu.Unlock()
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit("sensor-a", keyedItem{key: "sensor-a", seq: 1}))
	require.NoError(t, pool.Submit("sensor-a", keyedItem{key: "sensor-a", seq: 2}))
	require.NoError(t, pool.Stop(time.Second))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, seen)
}

func TestKeyedPool_DistinctKeysRunInParallel(t *testing.T) {
	started := make(chan string, 2)
	release := make(chan struct{})
	pool := NewKeyedPool(4, 4, func(_ context.Context, item keyedItem) error {
		started <- item.key
		<-release
		return nil
	})

	// Pick two keys that land on different partitions.
	keyA := "k0"
	keyB := ""
	for i := 1; i < 32; i++ {
		candidate := fmt.Sprintf("k%d", i)
		if pool.partition(candidate) != pool.partition(keyA) {
			keyB = candidate
			break
		}
	}
	require.NotEmpty(t, keyB)

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(keyA, keyedItem{key: keyA}))
	require.NoError(t, pool.Submit(keyB, keyedItem{key: keyB}))

	// Both must be in flight at once even though each blocks.
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("second key never started while the first was blocked")
		}
	}
	close(release)
	require.NoError(t, pool.Stop(time.Second))
}

func TestKeyedPool_SaturatedPartitionDrops(t *testing.T) {
	block := make(chan struct{})
	pool := NewKeyedPool(1, 1, func(_ context.Context, item keyedItem) error {
		<-block
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit("k", keyedItem{seq: 1}))

	// One item may be in flight plus one queued; keep submitting until
	// the queue rejects.
	var sawFull bool
	for i := 0; i < 4; i++ {
		if err := pool.Submit("k", keyedItem{seq: 2 + i}); err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			sawFull = true
			break
		}
	}
	assert.True(t, sawFull)
	assert.Greater(t, pool.Stats().Dropped, int64(0))

	close(block)
	require.NoError(t, pool.Stop(time.Second))
}

func TestKeyedPool_SubmitBeforeStart(t *testing.T) {
	pool := NewKeyedPool(2, 4, func(_ context.Context, _ keyedItem) error { return nil })
	err := pool.Submit("k", keyedItem{})
	assert.ErrorIs(t, err, ErrPoolNotStarted)
}

func TestKeyedPool_StatsAggregateAcrossPartitions(t *testing.T) {
	pool := NewKeyedPool(3, 8, func(_ context.Context, _ keyedItem) error { return nil })
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 9; i++ {
		require.NoError(t, pool.Submit(fmt.Sprintf("k%d", i), keyedItem{seq: i}))
	}
	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.Equal(t, 3, stats.Workers)
	assert.Equal(t, int64(9), stats.Submitted)
	assert.Equal(t, int64(9), stats.Processed)
}
