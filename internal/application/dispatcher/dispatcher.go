// Package dispatcher implements the per-job state machine that converts a
// scheduled assignment into hardware action, plus reconciliation of
// observed printer state back onto Jobs.
package dispatcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/printfleet/printfleet/internal/adapters/metrics"
	"github.com/printfleet/printfleet/internal/domain/adapter"
	"github.com/printfleet/printfleet/internal/domain/artifact"
	"github.com/printfleet/printfleet/internal/domain/eventbus"
	"github.com/printfleet/printfleet/internal/domain/fleetstate"
	"github.com/printfleet/printfleet/internal/domain/job"
	"github.com/printfleet/printfleet/internal/domain/printer"
	"github.com/printfleet/printfleet/internal/domain/printrecord"
	"github.com/printfleet/printfleet/internal/domain/shared"
	"github.com/printfleet/printfleet/internal/infrastructure/lockset"
)

// StartTimeout bounds how long Dispatch waits for a StatusFrame confirming
// the print actually began after StartPrint is called.
const StartTimeout = 30 * time.Second

// UploadBackoffSchedule is the fixed Upload retry delay sequence: three
// retries at 2s, 6s, 18s. Distinct from the Session Manager's exponential
// reconnect backoff — this one is a fixed, exhaustible schedule specific
// to one dispatch call.
var UploadBackoffSchedule = []time.Duration{2 * time.Second, 6 * time.Second, 18 * time.Second}

// MaxUploadAttempts is the total number of Upload attempts.
var MaxUploadAttempts = 1 + len(UploadBackoffSchedule)

// AdapterSource resolves the live, connected transport for a printer, owned
// by the Session Manager's Supervisor.
type AdapterSource interface {
	Adapter(printerID int64) (adapter.Printer, bool)
}

// AccountingService runs filament consumption deduction when a Job
// completes.
type AccountingService interface {
	OnJobCompleted(ctx context.Context, j *job.Job, pr *printrecord.PrintRecord) error
}

// AuditSink records dispatcher actions in the append-only audit log.
// Optional; attached via WithAudit.
type AuditSink interface {
	LogAudit(ctx context.Context, action, entityKind, entityID, actor, sourceIP string, detail map[string]interface{}) error
}

// Dispatcher converts scheduled Jobs into hardware action and reconciles
// observed printer state back onto them.
type Dispatcher struct {
	jobs         job.Repository
	printers     printer.Repository
	artifacts    artifact.Repository
	printrecords printrecord.Repository
	adapters     AdapterSource
	bus          *eventbus.Bus
	state        *fleetstate.Store
	accounting   AccountingService
	locks        *lockset.Set
	clock        shared.Clock
	audit        AuditSink
}

// New constructs a Dispatcher.
func New(
	jobs job.Repository,
	printers printer.Repository,
	artifacts artifact.Repository,
	printrecords printrecord.Repository,
	adapters AdapterSource,
	bus *eventbus.Bus,
	state *fleetstate.Store,
	accounting AccountingService,
	locks *lockset.Set,
	clock shared.Clock,
) *Dispatcher {
	if locks == nil {
		locks = lockset.New()
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Dispatcher{
		jobs: jobs, printers: printers, artifacts: artifacts, printrecords: printrecords,
		adapters: adapters, bus: bus, state: state, accounting: accounting, locks: locks, clock: clock,
	}
}

// WithAudit attaches an audit sink. Returns d for call chaining at wiring
// time.
func (d *Dispatcher) WithAudit(a AuditSink) *Dispatcher {
	d.audit = a
	return d
}

func jobLockKey(jobID int64) string { return fmt.Sprintf("job:%d", jobID) }

// DispatchJob moves a scheduled job onto hardware: state check, artifact
// resolution, compatibility check, upload with retry, start-print with
// confirmation. Serialized per job via the lockset so a concurrent retry
// can never race a cancellation.
func (d *Dispatcher) DispatchJob(ctx context.Context, jobID int64, overrideIncompatible bool) error {
	unlock := d.locks.Lock(jobLockKey(jobID))
	defer unlock()

	j, err := d.jobs.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("dispatcher: load job %d: %w", jobID, err)
	}

	// Step 1: reject if not scheduled or no printer assigned.
	if j.Status != job.StatusScheduled || j.PrinterID == nil {
		metrics.RecordDispatch(0, "invalid_state")
		return shared.NewDispatchError("invalid_state", fmt.Sprintf("job %d is not in a dispatchable state", jobID))
	}
	printerID := *j.PrinterID

	p, err := d.printers.FindByID(ctx, printerID)
	if err != nil {
		return fmt.Errorf("dispatcher: load printer %d: %w", printerID, err)
	}

	// Step 2: resolve the linked artifact.
	if j.ArtifactID == nil {
		metrics.RecordDispatch(printerID, "no_artifact")
		return shared.NewDispatchError("no_artifact", fmt.Sprintf("job %d has no linked artifact", jobID))
	}
	art, err := d.artifacts.FindByID(ctx, *j.ArtifactID)
	if err != nil {
		return fmt.Errorf("dispatcher: load artifact %d: %w", *j.ArtifactID, err)
	}

	// Step 3: compatibility check, advisory and overridable.
	if !overrideIncompatible {
		bw, bd := bedDimensionsFor(p.ModelFamily)
		if !art.CompatibleWith(p.ModelFamily) || !art.FitsBed(bw, bd) {
			metrics.RecordDispatch(printerID, "incompatible")
			return shared.NewDispatchError("incompatible", fmt.Sprintf("artifact %d is not declared compatible with printer %d", art.ID, p.ID))
		}
	}

	ap, ok := d.adapters.Adapter(printerID)
	if !ok {
		return shared.NewTransportError("unreachable", fmt.Sprintf("printer %d has no active session", printerID))
	}

	remoteName := fmt.Sprintf("job_%d_%s", jobID, art.OriginalName)

	// Step 4: upload with retry/backoff.
	if err := d.uploadWithRetry(ctx, ap, art, remoteName); err != nil {
		if failErr := j.Fail(job.FailOther, fmt.Sprintf("upload failed: %v", err), d.clock); failErr != nil {
			return fmt.Errorf("dispatcher: mark job %d failed after upload failure: %w", jobID, failErr)
		}
		if updErr := d.jobs.Update(ctx, j); updErr != nil {
			return fmt.Errorf("dispatcher: persist failed job %d: %w", jobID, updErr)
		}
		metrics.RecordDispatch(printerID, "upload_failed")
		return shared.NewDispatchError("upload_failed", fmt.Sprintf("job %d: upload exhausted retries: %v", jobID, err))
	}
	if d.audit != nil {
		_ = d.audit.LogAudit(ctx, "job.upload_succeeded", "job", fmt.Sprintf("%d", jobID), "dispatcher", "",
			map[string]interface{}{"remote_name": remoteName, "printer_id": printerID})
	}

	// Step 5: start print and wait for confirmation.
	if err := ap.StartPrint(ctx, adapter.StartOptions{RemoteName: remoteName, UseAMS: len(art.PerSlotFilament) > 0}); err != nil {
		metrics.RecordDispatch(printerID, "start_timeout")
		return shared.NewDispatchError("start_timeout", fmt.Sprintf("job %d: StartPrint call failed: %v", jobID, err))
	}
	if !d.awaitStartConfirmation(ctx, printerID, remoteName) {
		metrics.RecordDispatch(printerID, "start_timeout")
		return shared.NewDispatchError("start_timeout", fmt.Sprintf("job %d: no confirming StatusFrame within %s", jobID, StartTimeout))
	}

	// Step 6: commit the printing transition.
	if err := j.StartPrinting(d.clock); err != nil {
		return fmt.Errorf("dispatcher: transition job %d to printing: %w", jobID, err)
	}
	if err := d.jobs.Update(ctx, j); err != nil {
		return fmt.Errorf("dispatcher: persist started job %d: %w", jobID, err)
	}
	d.bus.PublishJobStarted(eventbus.JobStarted{JobID: jobID, PrinterID: printerID, At: d.clock.Now()})
	metrics.RecordDispatch(printerID, "started")
	return nil
}

func (d *Dispatcher) uploadWithRetry(ctx context.Context, ap adapter.Printer, art *artifact.PrintArtifact, remoteName string) error {
	raw, err := os.ReadFile(art.StoragePath)
	if err != nil {
		return fmt.Errorf("read artifact file %s: %w", art.StoragePath, err)
	}
	var lastErr error
	for attempt := 0; attempt < MaxUploadAttempts; attempt++ {
		if attempt > 0 {
			d.clock.Sleep(UploadBackoffSchedule[attempt-1])
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = ap.Upload(ctx, raw, remoteName)
		metrics.RecordUploadAttempt(lastErr == nil)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// awaitStartConfirmation polls Fleet State for a StatusFrame in {prepare,
// running} referencing remoteName within StartTimeout.
func (d *Dispatcher) awaitStartConfirmation(ctx context.Context, printerID int64, remoteName string) bool {
	deadline := d.clock.Now().Add(StartTimeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if snap, ok := d.state.Get(printerID); ok && snap.LastFrame != nil {
			f := snap.LastFrame
			if (f.State == adapter.DevicePrepare || f.State == adapter.DeviceRunning) && f.Filename == remoteName {
				return true
			}
		}
		if !d.clock.Now().Before(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// Cancel aborts a job: directly when pending or scheduled, via
// Adapter.Stop plus an idle confirmation wait when printing.
func (d *Dispatcher) Cancel(ctx context.Context, jobID int64) error {
	unlock := d.locks.Lock(jobLockKey(jobID))
	defer unlock()

	j, err := d.jobs.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("dispatcher: load job %d: %w", jobID, err)
	}

	switch j.Status {
	case job.StatusPending, job.StatusScheduled:
		if err := j.Cancel(d.clock); err != nil {
			return fmt.Errorf("dispatcher: cancel job %d: %w", jobID, err)
		}
		return d.jobs.Update(ctx, j)
	case job.StatusPrinting:
		if j.PrinterID == nil {
			return shared.NewConflictError(fmt.Sprintf("job %d is printing with no printer assigned", jobID))
		}
		ap, ok := d.adapters.Adapter(*j.PrinterID)
		if !ok {
			return shared.NewTransportError("unreachable", fmt.Sprintf("printer %d has no active session", *j.PrinterID))
		}
		if err := ap.Stop(ctx); err != nil {
			return fmt.Errorf("dispatcher: stop printer %d: %w", *j.PrinterID, err)
		}
		if !d.awaitIdleConfirmation(ctx, *j.PrinterID) {
			return shared.NewDispatchError("start_timeout", fmt.Sprintf("printer %d did not confirm idle after Stop", *j.PrinterID))
		}
		if err := j.Cancel(d.clock); err != nil {
			return fmt.Errorf("dispatcher: cancel job %d: %w", jobID, err)
		}
		return d.jobs.Update(ctx, j)
	default:
		return shared.NewConflictError(fmt.Sprintf("job %d cannot be cancelled from status %s", jobID, j.Status))
	}
}

func (d *Dispatcher) awaitIdleConfirmation(ctx context.Context, printerID int64) bool {
	deadline := d.clock.Now().Add(StartTimeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if snap, ok := d.state.Get(printerID); ok && snap.LastFrame != nil && snap.LastFrame.State == adapter.DeviceIdle {
			return true
		}
		if !d.clock.Now().Before(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
