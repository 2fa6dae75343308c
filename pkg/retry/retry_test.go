package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_Success(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
	}

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_AllAttemptsFail(t *testing.T) {
	ctx := context.Background()
	cfg := Fixed(3, 10*time.Millisecond)

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return errors.New("persistent error")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "retry failed after 3 attempts")
}

func TestDo_FixedDelayBudget(t *testing.T) {
	// The fixed config never makes more attempts than its budget and
	// keeps a constant inter-attempt delay.
	ctx := context.Background()
	delay := 20 * time.Millisecond
	cfg := Fixed(4, delay)

	var stamps []time.Time
	err := Do(ctx, cfg, func() error {
		stamps = append(stamps, time.Now())
		return errors.New("down")
	})

	require.Error(t, err)
	require.Len(t, stamps, 4)
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, delay-5*time.Millisecond, "attempt %d fired early", i+1)
		assert.Less(t, gap, 10*delay, "attempt %d fired far too late", i+1)
	}
}

func TestDo_NonRetryable(t *testing.T) {
	ctx := context.Background()
	cfg := Fixed(5, 10*time.Millisecond)

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return NonRetryable(errors.New("bad input"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "non-retryable errors must short-circuit")
	assert.True(t, IsNonRetryable(err))
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Fixed(10, 5*time.Second)

	attempts := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(ctx, cfg, func() error {
		attempts++
		return errors.New("down")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Second, "cancel must interrupt the backoff sleep")
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func() error {
		attempts++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoWithResult(t *testing.T) {
	cfg := Fixed(3, 5*time.Millisecond)

	attempts := 0
	got, err := DoWithResult(context.Background(), cfg, func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, attempts)
}

func TestFixed(t *testing.T) {
	cfg := Fixed(10, 5*time.Second)
	assert.Equal(t, 10, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.InitialDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
	assert.Equal(t, 1.0, cfg.Multiplier)
	assert.False(t, cfg.AddJitter)
}
