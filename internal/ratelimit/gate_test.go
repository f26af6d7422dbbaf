package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/crate/internal/testutil"
)

func admitTimes(t *testing.T, gate *Gate, clock *testutil.FakeClock, n int, gap func() time.Duration) []time.Time {
	t.Helper()

	times := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		require.NoError(t, gate.Admit(context.Background()))
		times = append(times, clock.Now())
		if gap != nil {
			clock.Advance(gap())
		}
	}
	return times
}

func assertWindowCap(t *testing.T, times []time.Time, max int, window time.Duration) {
	t.Helper()

	for i := 0; i+max < len(times); i++ {
		span := times[i+max].Sub(times[i])
		assert.GreaterOrEqualf(t, span, window,
			"admissions %d..%d fit in %s, more than %d per window", i, i+max, span, max)
	}
}

func TestGateCapsBackToBackAdmissions(t *testing.T) {
	clock := testutil.NewFakeClock()
	gate := NewGate(60, WithClock(clock))

	times := admitTimes(t, gate, clock, 200, nil)

	assertWindowCap(t, times, 60, time.Minute)
	// The first 60 go out immediately.
	assert.Equal(t, times[0], times[59])
	assert.Equal(t, time.Minute, times[60].Sub(times[0]))
}

func TestGateCapsWithRandomGaps(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for round := 0; round < 20; round++ {
		clock := testutil.NewFakeClock()
		max := 1 + rng.IntN(10)
		gate := NewGate(max, WithClock(clock), WithWindow(10*time.Second))

		times := admitTimes(t, gate, clock, 100, func() time.Duration {
			return time.Duration(rng.IntN(3000)) * time.Millisecond
		})

		assertWindowCap(t, times, max, 10*time.Second)
	}
}

func TestGateCooldownTakesPrecedence(t *testing.T) {
	clock := testutil.NewFakeClock()
	gate := NewGate(60, WithClock(clock))
	start := clock.Now()

	gate.SignalCooldown(30 * time.Second)
	require.NoError(t, gate.Admit(context.Background()))

	assert.GreaterOrEqual(t, clock.Now().Sub(start), 30*time.Second)
	assert.True(t, gate.Stats().CooldownUntil.IsZero(), "cooldown should be consumed")
	assert.Equal(t, 1, gate.Stats().InWindow)
}

func TestGateLatestCooldownWins(t *testing.T) {
	clock := testutil.NewFakeClock()
	gate := NewGate(60, WithClock(clock))
	start := clock.Now()

	gate.SignalCooldown(45 * time.Second)
	gate.SignalCooldown(5 * time.Second)
	require.NoError(t, gate.Admit(context.Background()))

	assert.Equal(t, 5*time.Second, clock.Now().Sub(start))
}

func TestGateSignalExhaustedUsesConfiguredCooldown(t *testing.T) {
	clock := testutil.NewFakeClock()
	gate := NewGate(60, WithClock(clock), WithExhaustedCooldown(90*time.Second))
	start := clock.Now()

	gate.SignalExhausted()
	assert.Equal(t, start.Add(90*time.Second), gate.Stats().CooldownUntil)

	require.NoError(t, gate.Admit(context.Background()))
	assert.Equal(t, 90*time.Second, clock.Now().Sub(start))
}

func TestGateConcurrentCallersQueue(t *testing.T) {
	clock := testutil.NewFakeClock()
	gate := NewGate(5, WithClock(clock))
	start := clock.Now()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gate.Admit(context.Background()))
		}()
	}
	wg.Wait()

	// 20 admissions at 5 per minute need three full windows of waiting.
	assert.Equal(t, 3*time.Minute, clock.Now().Sub(start))
	assert.Equal(t, 5, gate.Stats().InWindow)
}

func TestGateCancelledWaitRecordsNothing(t *testing.T) {
	clock := testutil.NewFakeClock()
	gate := NewGate(1, WithClock(clock))
	require.NoError(t, gate.Admit(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gate.Admit(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gate.Stats().InWindow)
}

func TestGateWithSystemClock(t *testing.T) {
	gate := NewGate(2, WithWindow(100*time.Millisecond))
	start := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, gate.Admit(context.Background()))
	}

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestNewGateClampsMax(t *testing.T) {
	gate := NewGate(0)
	assert.Equal(t, 1, gate.Stats().Max)
}
