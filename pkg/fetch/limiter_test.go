package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_FirstRequestPassesImmediately(t *testing.T) {
	l := NewLimiter(5*time.Second, testLogger())

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_WaitsOutInterval(t *testing.T) {
	l := NewLimiter(80*time.Millisecond, testLogger())
	l.Touch()

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestLimiter_NoWaitAfterIntervalElapsed(t *testing.T) {
	l := NewLimiter(10*time.Millisecond, testLogger())
	l.Touch()
	time.Sleep(30 * time.Millisecond)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestLimiter_ZeroIntervalDisables(t *testing.T) {
	l := NewLimiter(0, testLogger())
	l.Touch()

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestLimiter_CancelledContextInterruptsWait(t *testing.T) {
	l := NewLimiter(10*time.Second, testLogger())
	l.Touch()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
