package job_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfleet/printfleet/internal/domain/job"
	"github.com/printfleet/printfleet/internal/domain/shared"
)

func newTestJob(t *testing.T) (*job.Job, *shared.MockClock) {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC))
	j, err := job.New("Bracket v2", 2, time.Hour, 1.5, 6.0, clock)
	require.NoError(t, err)
	return j, clock
}

func TestNew_RejectsInvalidInput(t *testing.T) {
	clock := shared.NewMockClock(time.Time{})

	_, err := job.New("", 2, time.Hour, 1, 1, clock)
	assert.Error(t, err)

	_, err = job.New("Bracket", 0, time.Hour, 1, 1, clock)
	assert.Error(t, err)

	_, err = job.New("Bracket", 6, time.Hour, 1, 1, clock)
	assert.Error(t, err)
}

func TestNew_ZeroDurationFallsBackToMinimum(t *testing.T) {
	clock := shared.NewMockClock(time.Time{})

	j, err := job.New("Bracket", 1, 0, 1, 1, clock)

	require.NoError(t, err)
	assert.Equal(t, job.MinEffectiveDuration, j.EffectiveDuration)
}

func TestJobLifecycle_HappyPath(t *testing.T) {
	j, clock := newTestJob(t)
	require.Equal(t, job.StatusSubmitted, j.Status)

	require.NoError(t, j.Approve(clock))
	assert.Equal(t, job.StatusPending, j.Status)

	clock.Advance(time.Minute)
	require.NoError(t, j.Schedule(7, clock.Now(), clock.Now().Add(time.Hour), 92, clock))
	assert.Equal(t, job.StatusScheduled, j.Status)
	assert.Equal(t, int64(7), *j.PrinterID)
	assert.Equal(t, 92, *j.MatchScore)

	require.NoError(t, j.StartPrinting(clock))
	assert.Equal(t, job.StatusPrinting, j.Status)
	assert.True(t, j.IsLocked)
	assert.NotNil(t, j.ActualStart)

	require.NoError(t, j.Complete(clock))
	assert.Equal(t, job.StatusCompleted, j.Status)
	assert.True(t, j.IsTerminal())
}

func TestComplete_IsIdempotentOnceTerminal(t *testing.T) {
	j, clock := newTestJob(t)
	require.NoError(t, j.Approve(clock))
	require.NoError(t, j.Schedule(1, clock.Now(), clock.Now().Add(time.Hour), 50, clock))
	require.NoError(t, j.StartPrinting(clock))
	require.NoError(t, j.Complete(clock))

	err := j.Complete(clock)

	assert.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, j.Status)
}

func TestSchedule_RejectsWrongSourceState(t *testing.T) {
	j, clock := newTestJob(t)

	err := j.Schedule(1, clock.Now(), clock.Now().Add(time.Hour), 10, clock)

	assert.Error(t, err)
	assert.Equal(t, job.StatusSubmitted, j.Status)
}

func TestResetJob_ClearsSchedulingDecision(t *testing.T) {
	j, clock := newTestJob(t)
	require.NoError(t, j.Approve(clock))
	require.NoError(t, j.Schedule(3, clock.Now(), clock.Now().Add(time.Hour), 77, clock))

	require.NoError(t, j.ResetJob(clock))

	assert.Equal(t, job.StatusPending, j.Status)
	assert.Nil(t, j.PrinterID)
	assert.Nil(t, j.ScheduledStart)
	assert.Nil(t, j.MatchScore)
}

func TestFail_FromScheduled(t *testing.T) {
	j, clock := newTestJob(t)
	require.NoError(t, j.Approve(clock))
	require.NoError(t, j.Schedule(1, clock.Now(), clock.Now().Add(time.Hour), 10, clock))

	require.NoError(t, j.Fail(job.FailUserCancelled, "operator cancelled before upload", clock))

	assert.Equal(t, job.StatusFailed, j.Status)
	require.NotNil(t, j.FailReason)
	assert.Equal(t, job.FailUserCancelled, *j.FailReason)
	assert.Contains(t, j.Notes, "operator cancelled before upload")
}

func TestAppendNote_Accumulates(t *testing.T) {
	j, clock := newTestJob(t)

	j.AppendNote("first", clock)
	j.AppendNote("second", clock)

	assert.Equal(t, "first\nsecond", j.Notes)
}

func TestAppendNote_IgnoresEmpty(t *testing.T) {
	j, clock := newTestJob(t)

	j.AppendNote("", clock)

	assert.Equal(t, "", j.Notes)
}

func TestCancel_FromEachValidSourceState(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(j *job.Job, clock shared.Clock)
	}{
		{"pending", func(j *job.Job, clock shared.Clock) { require.NoError(t, j.Approve(clock)) }},
		{"scheduled", func(j *job.Job, clock shared.Clock) {
			require.NoError(t, j.Approve(clock))
			require.NoError(t, j.Schedule(1, clock.Now(), clock.Now().Add(time.Hour), 1, clock))
		}},
		{"printing", func(j *job.Job, clock shared.Clock) {
			require.NoError(t, j.Approve(clock))
			require.NoError(t, j.Schedule(1, clock.Now(), clock.Now().Add(time.Hour), 1, clock))
			require.NoError(t, j.StartPrinting(clock))
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			j, clock := newTestJob(t)
			tc.setup(j, clock)

			err := j.Cancel(clock)

			assert.NoError(t, err)
			assert.Equal(t, job.StatusCancelled, j.Status)
		})
	}
}

func TestRequiredColors_DeduplicatesAcrossSlots(t *testing.T) {
	j, _ := newTestJob(t)
	j.ColorRequirements = map[int]job.ColorRequirement{
		0: {Color: "#FF0000", Grams: 10},
		1: {Color: "#00FF00", Grams: 5},
		2: {Color: "#FF0000", Grams: 3},
	}

	colors := j.RequiredColors()

	assert.Len(t, colors, 2)
	assert.Contains(t, colors, "#FF0000")
	assert.Contains(t, colors, "#00FF00")
}
