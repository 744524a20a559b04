package steps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cucumber/godog"

	"github.com/printfleet/printfleet/internal/application/dispatcher"
	"github.com/printfleet/printfleet/internal/domain/adapter"
	"github.com/printfleet/printfleet/internal/domain/artifact"
	"github.com/printfleet/printfleet/internal/domain/eventbus"
	"github.com/printfleet/printfleet/internal/domain/fleetstate"
	"github.com/printfleet/printfleet/internal/domain/job"
	"github.com/printfleet/printfleet/internal/domain/printer"
	"github.com/printfleet/printfleet/internal/domain/shared"
)

type dispatchContext struct {
	jobs    *memJobRepo
	reposPr *memPrinterRepo
	arts    *memArtifactRepo
	records *memPrintRecordRepo
	hw      *flakyAdapter
	state   *fleetstate.Store
	bus     *eventbus.Bus
	auditor *recordingAudit
	clock   *shared.MockClock
	disp    *dispatcher.Dispatcher

	started     <-chan eventbus.JobStarted
	jobID       int64
	remoteName  string
	tmpDir      string
	dispatchErr error
}

func (c *dispatchContext) reset() {
	c.jobs = newMemJobRepo()
	c.reposPr = newMemPrinterRepo()
	c.arts = &memArtifactRepo{artifacts: make(map[int64]*artifact.PrintArtifact)}
	c.records = &memPrintRecordRepo{}
	c.hw = &flakyAdapter{}
	c.state = fleetstate.New()
	c.bus = eventbus.New()
	c.auditor = &recordingAudit{}
	c.clock = shared.NewMockClock(baseDay.Add(10 * time.Hour))
	src := &staticAdapterSource{adapters: map[int64]adapter.Printer{1: c.hw}}
	c.disp = dispatcher.New(c.jobs, c.reposPr, c.arts, c.records, src, c.bus, c.state, nil, nil, c.clock).WithAudit(c.auditor)
	c.started = c.bus.SubscribeJobStarted()
	c.jobID = 0
	c.remoteName = ""
	c.dispatchErr = nil
}

func (c *dispatchContext) aScheduledJobWithArtifact(printerID int64) error {
	if err := c.reposPr.Create(context.Background(), &printer.Printer{
		ID: printerID, Name: "bay-1", Kind: printer.KindMessageBus,
		ModelFamily: "X1C", SlotCount: 4, Active: true,
	}); err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "dispatch-bdd-*")
	if err != nil {
		return err
	}
	c.tmpDir = dir
	path := filepath.Join(dir, "part.gcode")
	if err := os.WriteFile(path, []byte("G28\n"), 0o644); err != nil {
		return err
	}
	c.arts.artifacts[1] = &artifact.PrintArtifact{
		ID: 1, Format: artifact.FormatGCode, OriginalName: "part.gcode",
		StoragePath: path, CompatiblePrinterModels: []string{"X1C"},
		PerSlotFilament: map[int]artifact.FilamentUse{},
	}

	c.jobID = 1
	artifactID := int64(1)
	start := c.clock.Now()
	end := start.Add(time.Hour)
	c.remoteName = "job_1_part.gcode"
	return c.jobs.Create(context.Background(), &job.Job{
		ID: c.jobID, ItemName: "part", Priority: 3, Status: job.StatusScheduled,
		PrinterID: &printerID, ScheduledStart: &start, ScheduledEnd: &end,
		ArtifactID: &artifactID, Material: "PLA", EffectiveDuration: time.Hour,
	})
}

func (c *dispatchContext) transportFailsFirstNUploads(n int) error {
	c.hw.uploadFailures = n
	return nil
}

func (c *dispatchContext) transportFailsEveryUpload() error {
	c.hw.uploadFailures = 1 << 30
	return nil
}

func (c *dispatchContext) printerReportsFileRunning() error {
	c.state.Set(1, fleetstate.Snapshot{
		IsOnline:   true,
		IsPrinting: true,
		LastFrame:  &adapter.StatusFrame{PrinterID: 1, State: adapter.DeviceRunning, Filename: c.remoteName},
		UpdatedAt:  c.clock.Now(),
	})
	return nil
}

func (c *dispatchContext) theJobIsDispatched() error {
	c.dispatchErr = c.disp.DispatchJob(context.Background(), c.jobID, false)
	if c.tmpDir != "" {
		_ = os.RemoveAll(c.tmpDir)
		c.tmpDir = ""
	}
	return nil
}

func (c *dispatchContext) dispatchSucceedsAfterAttempts(attempts int) error {
	if c.dispatchErr != nil {
		return fmt.Errorf("dispatch failed: %v", c.dispatchErr)
	}
	if c.hw.uploadCalls != attempts {
		return fmt.Errorf("expected %d upload attempts, got %d", attempts, c.hw.uploadCalls)
	}
	return nil
}

func (c *dispatchContext) theJobIsPrintingAndLocked() error {
	j, err := c.jobs.FindByID(context.Background(), c.jobID)
	if err != nil {
		return err
	}
	if j.Status != job.StatusPrinting {
		return fmt.Errorf("expected printing, got %s", j.Status)
	}
	if !j.IsLocked {
		return fmt.Errorf("expected the job to be locked")
	}
	return nil
}

func (c *dispatchContext) exactlyOneUploadSucceededAuditEntry() error {
	if n := c.auditor.countByAction("job.upload_succeeded"); n != 1 {
		return fmt.Errorf("expected exactly one upload-succeeded audit entry, got %d", n)
	}
	return nil
}

func (c *dispatchContext) exactlyOneJobStartedEvent() error {
	if n := len(c.started); n != 1 {
		return fmt.Errorf("expected exactly one job.started event, got %d", n)
	}
	return nil
}

func (c *dispatchContext) dispatchFailsWithKind(kind string) error {
	var de *shared.DispatchError
	if !errors.As(c.dispatchErr, &de) {
		return fmt.Errorf("expected a dispatch error, got %v", c.dispatchErr)
	}
	if de.Kind != kind {
		return fmt.Errorf("expected error kind %q, got %q", kind, de.Kind)
	}
	return nil
}

func (c *dispatchContext) theJobIsFailed() error {
	j, err := c.jobs.FindByID(context.Background(), c.jobID)
	if err != nil {
		return err
	}
	if j.Status != job.StatusFailed {
		return fmt.Errorf("expected failed, got %s", j.Status)
	}
	return nil
}

// InitializeDispatchScenario registers dispatch step definitions.
func InitializeDispatchScenario(sc *godog.ScenarioContext) {
	c := &dispatchContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})

	sc.Step(`^a scheduled job with a linked artifact on printer (\d+)$`, c.aScheduledJobWithArtifact)
	sc.Step(`^the printer transport fails the first (\d+) uploads$`, c.transportFailsFirstNUploads)
	sc.Step(`^the printer transport fails every upload$`, c.transportFailsEveryUpload)
	sc.Step(`^the printer reports the uploaded file as running$`, c.printerReportsFileRunning)
	sc.Step(`^the job is dispatched$`, c.theJobIsDispatched)
	sc.Step(`^the dispatch succeeds after (\d+) upload attempts$`, c.dispatchSucceedsAfterAttempts)
	sc.Step(`^the job is printing and locked$`, c.theJobIsPrintingAndLocked)
	sc.Step(`^exactly one upload-succeeded audit entry exists$`, c.exactlyOneUploadSucceededAuditEntry)
	sc.Step(`^exactly one job started event was published$`, c.exactlyOneJobStartedEvent)
	sc.Step(`^the dispatch fails with kind "([^"]+)"$`, c.dispatchFailsWithKind)
	sc.Step(`^the job is failed$`, c.theJobIsFailed)
}
