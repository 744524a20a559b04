package dispatcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfleet/printfleet/internal/application/dispatcher"
	"github.com/printfleet/printfleet/internal/domain/adapter"
	"github.com/printfleet/printfleet/internal/domain/artifact"
	"github.com/printfleet/printfleet/internal/domain/eventbus"
	"github.com/printfleet/printfleet/internal/domain/fleetstate"
	"github.com/printfleet/printfleet/internal/domain/job"
	"github.com/printfleet/printfleet/internal/domain/printer"
	"github.com/printfleet/printfleet/internal/domain/printrecord"
	"github.com/printfleet/printfleet/internal/domain/shared"
)

type fakeJobRepo struct {
	jobs map[int64]*job.Job
}

func (r *fakeJobRepo) Create(_ context.Context, j *job.Job) error { r.jobs[j.ID] = j; return nil }
func (r *fakeJobRepo) Update(_ context.Context, j *job.Job) error { r.jobs[j.ID] = j; return nil }
func (r *fakeJobRepo) FindByID(_ context.Context, id int64) (*job.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, shared.NewNotFoundError("job", id)
	}
	return j, nil
}
func (r *fakeJobRepo) Schedulable(_ context.Context) ([]*job.Job, error) { return nil, nil }
func (r *fakeJobRepo) Printing(_ context.Context) ([]*job.Job, error)    { return nil, nil }
func (r *fakeJobRepo) ByPrinterAndStatus(_ context.Context, printerID int64, statuses ...job.Status) ([]*job.Job, error) {
	var out []*job.Job
	for _, j := range r.jobs {
		if j.PrinterID == nil || *j.PrinterID != printerID {
			continue
		}
		for _, s := range statuses {
			if j.Status == s {
				out = append(out, j)
				break
			}
		}
	}
	return out, nil
}
func (r *fakeJobRepo) List(_ context.Context) ([]*job.Job, error) { return nil, nil }

type fakePrinterRepo struct {
	printers map[int64]*printer.Printer
}

func (r *fakePrinterRepo) Create(_ context.Context, p *printer.Printer) error { return nil }
func (r *fakePrinterRepo) Update(_ context.Context, p *printer.Printer) error { return nil }
func (r *fakePrinterRepo) FindByID(_ context.Context, id int64) (*printer.Printer, error) {
	p, ok := r.printers[id]
	if !ok {
		return nil, shared.NewNotFoundError("printer", id)
	}
	return p, nil
}
func (r *fakePrinterRepo) FindByName(_ context.Context, name string) (*printer.Printer, error) {
	return nil, shared.NewNotFoundError("printer", name)
}
func (r *fakePrinterRepo) ListActive(_ context.Context) ([]*printer.Printer, error) { return nil, nil }
func (r *fakePrinterRepo) List(_ context.Context) ([]*printer.Printer, error)       { return nil, nil }
func (r *fakePrinterRepo) Delete(_ context.Context, _ int64) error                  { return nil }
func (r *fakePrinterRepo) Slots(_ context.Context, _ int64) ([]*printer.FilamentSlot, error) {
	return nil, nil
}
func (r *fakePrinterRepo) UpsertSlot(_ context.Context, _ *printer.FilamentSlot) error { return nil }
func (r *fakePrinterRepo) SlotByNumber(_ context.Context, _ int64, slotNumber int) (*printer.FilamentSlot, error) {
	return nil, shared.NewNotFoundError("filament_slot", slotNumber)
}

type fakeArtifactRepo struct {
	artifacts map[int64]*artifact.PrintArtifact
}

func (r *fakeArtifactRepo) Create(_ context.Context, _ *artifact.PrintArtifact) error { return nil }
func (r *fakeArtifactRepo) FindByID(_ context.Context, id int64) (*artifact.PrintArtifact, error) {
	a, ok := r.artifacts[id]
	if !ok {
		return nil, shared.NewNotFoundError("artifact", id)
	}
	return a, nil
}
func (r *fakeArtifactRepo) FindByContentHash(_ context.Context, _ string) (*artifact.PrintArtifact, error) {
	return nil, nil
}
func (r *fakeArtifactRepo) List(_ context.Context) ([]*artifact.PrintArtifact, error) {
	return nil, nil
}

type fakePrintRecordRepo struct {
	records []*printrecord.PrintRecord
}

func (r *fakePrintRecordRepo) Create(_ context.Context, rec *printrecord.PrintRecord) error {
	r.records = append(r.records, rec)
	return nil
}
func (r *fakePrintRecordRepo) Update(_ context.Context, _ *printrecord.PrintRecord) error {
	return nil
}
func (r *fakePrintRecordRepo) FindByID(_ context.Context, id int64) (*printrecord.PrintRecord, error) {
	return nil, shared.NewNotFoundError("print_record", id)
}
func (r *fakePrintRecordRepo) FindInFlightByPrinterAndFilename(_ context.Context, _ int64, _ string) (*printrecord.PrintRecord, error) {
	return nil, nil
}
func (r *fakePrintRecordRepo) FindSoleInFlightByPrinter(_ context.Context, _ int64) (*printrecord.PrintRecord, error) {
	return nil, nil
}

// scriptedAdapter fails Upload a configurable number of times before
// succeeding, and records every call.
type scriptedAdapter struct {
	uploadFailures int
	uploadCalls    int
	startCalls     int
	stopCalls      int
}

func (a *scriptedAdapter) Connect(_ context.Context, _ chan<- adapter.StatusFrame) error { return nil }
func (a *scriptedAdapter) Disconnect(_ context.Context) error                            { return nil }
func (a *scriptedAdapter) Upload(_ context.Context, _ []byte, _ string) error {
	a.uploadCalls++
	if a.uploadCalls <= a.uploadFailures {
		return shared.NewTransportError("timed_out", "upload stalled")
	}
	return nil
}
func (a *scriptedAdapter) StartPrint(_ context.Context, _ adapter.StartOptions) error {
	a.startCalls++
	return nil
}
func (a *scriptedAdapter) Pause(_ context.Context) error                  { return nil }
func (a *scriptedAdapter) Resume(_ context.Context) error                 { return nil }
func (a *scriptedAdapter) Stop(_ context.Context) error                   { a.stopCalls++; return nil }
func (a *scriptedAdapter) SetFanSpeed(_ context.Context, _ int) error     { return nil }
func (a *scriptedAdapter) SetLights(_ context.Context, _ bool) error      { return nil }
func (a *scriptedAdapter) SkipObjects(_ context.Context, _ []string) error { return nil }
func (a *scriptedAdapter) TestConnection(_ context.Context) error         { return nil }

type fakeAdapterSource struct {
	adapters map[int64]adapter.Printer
}

func (s *fakeAdapterSource) Adapter(printerID int64) (adapter.Printer, bool) {
	a, ok := s.adapters[printerID]
	return a, ok
}

type recordingAccounting struct {
	completions []int64
}

func (r *recordingAccounting) OnJobCompleted(_ context.Context, j *job.Job, _ *printrecord.PrintRecord) error {
	r.completions = append(r.completions, j.ID)
	return nil
}

type fixture struct {
	jobs       *fakeJobRepo
	printers   *fakePrinterRepo
	arts       *fakeArtifactRepo
	records    *fakePrintRecordRepo
	adapter    *scriptedAdapter
	state      *fleetstate.Store
	bus        *eventbus.Bus
	accounting *recordingAccounting
	clock      *shared.MockClock
}

func newFixture(t *testing.T) (*dispatcher.Dispatcher, *fixture) {
	t.Helper()
	fx := &fixture{
		jobs:       &fakeJobRepo{jobs: make(map[int64]*job.Job)},
		printers:   &fakePrinterRepo{printers: make(map[int64]*printer.Printer)},
		arts:       &fakeArtifactRepo{artifacts: make(map[int64]*artifact.PrintArtifact)},
		records:    &fakePrintRecordRepo{},
		adapter:    &scriptedAdapter{},
		state:      fleetstate.New(),
		bus:        eventbus.New(),
		accounting: &recordingAccounting{},
		clock:      shared.NewMockClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)),
	}
	src := &fakeAdapterSource{adapters: map[int64]adapter.Printer{1: fx.adapter}}
	d := dispatcher.New(fx.jobs, fx.printers, fx.arts, fx.records, src, fx.bus, fx.state, fx.accounting, nil, fx.clock)
	return d, fx
}

func i64ptr(i int64) *int64 { return &i }

func (fx *fixture) addScheduledJob(t *testing.T, id int64, artifactID *int64) *job.Job {
	t.Helper()
	printerID := int64(1)
	start := fx.clock.Now()
	end := start.Add(time.Hour)
	j := &job.Job{
		ID: id, ItemName: "part", Priority: 3, Status: job.StatusScheduled,
		PrinterID: &printerID, ScheduledStart: &start, ScheduledEnd: &end,
		ArtifactID: artifactID, Material: "PLA", EffectiveDuration: time.Hour,
	}
	fx.jobs.jobs[id] = j
	return j
}

func (fx *fixture) addArtifact(t *testing.T, id int64, compatible []string) *artifact.PrintArtifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), "part.gcode")
	require.NoError(t, os.WriteFile(path, []byte("G28\nG1 X0 Y0\n"), 0o644))
	a := &artifact.PrintArtifact{
		ID: id, Format: artifact.FormatGCode, OriginalName: "part.gcode",
		StoragePath: path, CompatiblePrinterModels: compatible,
		PerSlotFilament: map[int]artifact.FilamentUse{},
	}
	fx.arts.artifacts[id] = a
	return a
}

func (fx *fixture) addPrinter(id int64, family string) {
	fx.printers.printers[id] = &printer.Printer{
		ID: id, Name: "bay-1", Kind: printer.KindMessageBus, ModelFamily: family,
		SlotCount: 4, Active: true,
	}
}

// confirmStart pre-seeds Fleet State with a frame confirming the uploaded
// file began printing, so awaitStartConfirmation returns on its first poll.
func (fx *fixture) confirmStart(remoteName string) {
	fx.state.Set(1, fleetstate.Snapshot{
		IsOnline:   true,
		IsPrinting: true,
		LastFrame:  &adapter.StatusFrame{PrinterID: 1, State: adapter.DeviceRunning, Filename: remoteName},
		UpdatedAt:  fx.clock.Now(),
	})
}

func TestDispatchJob_HappyPathWithUploadRetries(t *testing.T) {
	d, fx := newFixture(t)
	fx.addPrinter(1, "X1C")
	fx.addArtifact(t, 9, []string{"X1C"})
	j := fx.addScheduledJob(t, 100, i64ptr(9))
	fx.adapter.uploadFailures = 2
	fx.confirmStart("job_100_part.gcode")

	started := fx.bus.SubscribeJobStarted()
	defer fx.bus.UnsubscribeJobStarted(started)

	require.NoError(t, d.DispatchJob(context.Background(), 100, false))

	assert.Equal(t, 3, fx.adapter.uploadCalls)
	assert.Equal(t, 1, fx.adapter.startCalls)
	assert.Equal(t, job.StatusPrinting, j.Status)
	assert.True(t, j.IsLocked)
	require.NotNil(t, j.ActualStart)
	assert.Len(t, started, 1)
}

func TestDispatchJob_UploadExhaustionFailsJob(t *testing.T) {
	d, fx := newFixture(t)
	fx.addPrinter(1, "X1C")
	fx.addArtifact(t, 9, []string{"X1C"})
	j := fx.addScheduledJob(t, 100, i64ptr(9))
	fx.adapter.uploadFailures = 100

	err := d.DispatchJob(context.Background(), 100, false)

	var de *shared.DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "upload_failed", de.Kind)
	assert.Equal(t, dispatcher.MaxUploadAttempts, fx.adapter.uploadCalls)
	assert.Equal(t, job.StatusFailed, j.Status)
	require.NotNil(t, j.FailReason)
	assert.Equal(t, 0, fx.adapter.startCalls)
}

func TestDispatchJob_RejectsNonScheduledJob(t *testing.T) {
	d, fx := newFixture(t)
	fx.addPrinter(1, "X1C")
	j := fx.addScheduledJob(t, 100, i64ptr(9))
	j.Status = job.StatusPending

	err := d.DispatchJob(context.Background(), 100, false)

	var de *shared.DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "invalid_state", de.Kind)
}

func TestDispatchJob_FailsWithoutArtifact(t *testing.T) {
	d, fx := newFixture(t)
	fx.addPrinter(1, "X1C")
	fx.addScheduledJob(t, 100, nil)

	err := d.DispatchJob(context.Background(), 100, false)

	var de *shared.DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "no_artifact", de.Kind)
}

func TestDispatchJob_IncompatibleArtifactRejectedUnlessOverridden(t *testing.T) {
	d, fx := newFixture(t)
	fx.addPrinter(1, "X1C")
	fx.addArtifact(t, 9, []string{"PRUSA_MK4"})
	fx.addScheduledJob(t, 100, i64ptr(9))
	fx.confirmStart("job_100_part.gcode")

	err := d.DispatchJob(context.Background(), 100, false)
	var de *shared.DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "incompatible", de.Kind)

	// The advisory check yields to an explicit override.
	require.NoError(t, d.DispatchJob(context.Background(), 100, true))
	assert.Equal(t, job.StatusPrinting, fx.jobs.jobs[100].Status)
}

func TestCancel_PendingAndScheduledCancelDirectly(t *testing.T) {
	d, fx := newFixture(t)
	fx.addPrinter(1, "X1C")
	j := fx.addScheduledJob(t, 100, nil)

	require.NoError(t, d.Cancel(context.Background(), 100))
	assert.Equal(t, job.StatusCancelled, j.Status)
	assert.Equal(t, 0, fx.adapter.stopCalls)
}

func TestCancel_PrintingStopsHardwareAndWaitsForIdle(t *testing.T) {
	d, fx := newFixture(t)
	fx.addPrinter(1, "X1C")
	j := fx.addScheduledJob(t, 100, nil)
	require.NoError(t, j.StartPrinting(fx.clock))

	fx.state.Set(1, fleetstate.Snapshot{
		IsOnline:  true,
		LastFrame: &adapter.StatusFrame{PrinterID: 1, State: adapter.DeviceIdle},
		UpdatedAt: fx.clock.Now(),
	})

	require.NoError(t, d.Cancel(context.Background(), 100))
	assert.Equal(t, 1, fx.adapter.stopCalls)
	assert.Equal(t, job.StatusCancelled, j.Status)
}

func TestCancel_TerminalJobIsRejected(t *testing.T) {
	d, fx := newFixture(t)
	fx.addPrinter(1, "X1C")
	j := fx.addScheduledJob(t, 100, nil)
	require.NoError(t, j.StartPrinting(fx.clock))
	require.NoError(t, j.Complete(fx.clock))

	err := d.Cancel(context.Background(), 100)

	var ce *shared.ConflictError
	assert.ErrorAs(t, err, &ce)
}

func TestReconciler_CompletesSoleInFlightJobOnFinishedFrame(t *testing.T) {
	d, fx := newFixture(t)
	fx.addPrinter(1, "X1C")
	j := fx.addScheduledJob(t, 100, nil)
	require.NoError(t, j.StartPrinting(fx.clock))

	fx.state.Set(1, fleetstate.Snapshot{
		IsOnline:  true,
		LastFrame: &adapter.StatusFrame{PrinterID: 1, State: adapter.DeviceFinished, Filename: "job_100_part.gcode"},
		UpdatedAt: fx.clock.Now(),
	})

	r := dispatcher.NewReconciler(d, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, func() []int64 { return []int64{1} })
		close(done)
	}()

	// Give the subscriber a moment to register before publishing.
	require.Eventually(t, func() bool { return fx.bus.TotalSubscriberCount() > 0 }, time.Second, 5*time.Millisecond)
	fx.bus.PublishPrinterStateChanged(eventbus.PrinterStateChanged{PrinterID: 1, At: fx.clock.Now()})

	require.Eventually(t, func() bool { return j.Status == job.StatusCompleted }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(fx.accounting.completions) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(100), fx.accounting.completions[0])

	cancel()
	<-done
}

func TestReconciler_FailedFrameFailsJobWithReason(t *testing.T) {
	d, fx := newFixture(t)
	fx.addPrinter(1, "X1C")
	j := fx.addScheduledJob(t, 100, nil)
	require.NoError(t, j.StartPrinting(fx.clock))

	fx.state.Set(1, fleetstate.Snapshot{
		IsOnline: true,
		LastFrame: &adapter.StatusFrame{
			PrinterID: 1, State: adapter.DeviceFailed, Filename: "job_100_part.gcode",
			Errors: []adapter.ErrorCode{{AttrCode: "0C010300_00010001"}},
		},
		UpdatedAt: fx.clock.Now(),
	})

	r := dispatcher.NewReconciler(d, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, func() []int64 { return []int64{1} })
		close(done)
	}()

	require.Eventually(t, func() bool { return fx.bus.TotalSubscriberCount() > 0 }, time.Second, 5*time.Millisecond)
	fx.bus.PublishPrinterStateChanged(eventbus.PrinterStateChanged{PrinterID: 1, At: fx.clock.Now()})

	require.Eventually(t, func() bool { return j.Status == job.StatusFailed }, time.Second, 5*time.Millisecond)
	assert.Contains(t, j.Notes, "0C010300_00010001")
	assert.Empty(t, fx.accounting.completions)

	cancel()
	<-done
}

func TestReconciler_UnknownPrintCreatesUnlinkedRecord(t *testing.T) {
	d, fx := newFixture(t)
	fx.addPrinter(1, "X1C")
	// No job is printing on printer 1.

	fx.state.Set(1, fleetstate.Snapshot{
		IsOnline:  true,
		LastFrame: &adapter.StatusFrame{PrinterID: 1, State: adapter.DeviceFinished, Filename: "manual_benchy.gcode"},
		UpdatedAt: fx.clock.Now(),
	})

	r := dispatcher.NewReconciler(d, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, func() []int64 { return []int64{1} })
		close(done)
	}()

	require.Eventually(t, func() bool { return fx.bus.TotalSubscriberCount() > 0 }, time.Second, 5*time.Millisecond)
	fx.bus.PublishPrinterStateChanged(eventbus.PrinterStateChanged{PrinterID: 1, At: fx.clock.Now()})

	require.Eventually(t, func() bool { return len(fx.records.records) == 1 }, time.Second, 5*time.Millisecond)
	rec := fx.records.records[0]
	assert.Equal(t, "manual_benchy.gcode", rec.Filename)
	assert.Nil(t, rec.JobID)
	assert.Equal(t, printrecord.StatusCompleted, rec.Status)

	cancel()
	<-done
}
