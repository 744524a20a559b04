package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfleet/printfleet/internal/application/session"
	"github.com/printfleet/printfleet/internal/domain/shared"
)

func newWorker(t *testing.T) (*session.Worker, *shared.MockClock) {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	return session.NewWorker(42, clock), clock
}

func TestNextBackoff_StaysWithinJitteredBounds(t *testing.T) {
	for attempt := 0; attempt < 12; attempt++ {
		for i := 0; i < 20; i++ {
			d := session.NextBackoff(attempt)
			// Never negative, never beyond cap + 20% jitter.
			assert.GreaterOrEqual(t, d, time.Duration(0), "attempt %d", attempt)
			assert.LessOrEqual(t, d, session.BackoffCap+time.Duration(float64(session.BackoffCap)*session.BackoffJitter), "attempt %d", attempt)
		}
	}
}

func TestNextBackoff_GrowsWithAttempts(t *testing.T) {
	// Strip jitter by bounding: attempt 0 is ~1s±20%, attempt 6 is ~60s±20%.
	early := session.NextBackoff(0)
	assert.Less(t, early, 2*time.Second)

	late := session.NextBackoff(6)
	assert.Greater(t, late, 40*time.Second)
}

func TestWorker_LifecycleHappyPath(t *testing.T) {
	w, _ := newWorker(t)
	assert.Equal(t, session.StatusPending, w.Status())

	require.NoError(t, w.Start())
	assert.Equal(t, session.StatusRunning, w.Status())

	require.NoError(t, w.Stop())
	assert.Equal(t, session.StatusStopped, w.Status())
}

func TestWorker_BackoffCycleEndsWithRestart(t *testing.T) {
	w, clock := newWorker(t)
	require.NoError(t, w.Start())

	w.IncrementReconnectCount()
	w.MarkReconnecting()
	assert.Equal(t, session.StatusReconnecting, w.Status())

	delay := w.MarkBackoff()
	assert.Equal(t, session.StatusBackoff, w.Status())
	assert.False(t, w.ReadyToReconnect())

	clock.Advance(delay)
	assert.True(t, w.ReadyToReconnect())

	require.NoError(t, w.Start())
	assert.Equal(t, session.StatusRunning, w.Status())
	assert.Equal(t, 1, w.ReconnectCount())

	w.ResetReconnectCount()
	assert.Zero(t, w.ReconnectCount())
}

func TestWorker_FailRecordsError(t *testing.T) {
	w, _ := newWorker(t)
	require.NoError(t, w.Start())

	cause := errors.New("credential decrypt failed")
	require.NoError(t, w.Fail(cause))

	assert.Equal(t, session.StatusFailed, w.Status())
	assert.Equal(t, cause, w.LastError())
}

func TestWorker_StopRejectedOnceTerminal(t *testing.T) {
	w, _ := newWorker(t)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())

	assert.Error(t, w.Stop())
}
