package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/printfleet/printfleet/internal/domain/adapter"
	"github.com/printfleet/printfleet/internal/domain/eventbus"
	"github.com/printfleet/printfleet/internal/domain/job"
	"github.com/printfleet/printfleet/internal/domain/printrecord"
)

// Reconciler subscribes to printer.state_changed and matches observed
// hardware prints back onto Jobs in the printing state.
type Reconciler struct {
	d   *Dispatcher
	log *slog.Logger
}

// NewReconciler builds a Reconciler over an existing Dispatcher.
func NewReconciler(d *Dispatcher, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{d: d, log: log}
}

// Run subscribes to printer.state_changed for every printer id returned by
// printerIDs, one goroutine per printer (the bus keys this topic by printer
// id, mirroring how the Session Manager's own consumers are keyed), and
// reconciles every event until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, printerIDs func() []int64) {
	var wg sync.WaitGroup
	for _, id := range printerIDs() {
		ch := r.d.bus.SubscribePrinterStateChanged(id)
		wg.Add(1)
		go func(printerID int64, ch <-chan eventbus.PrinterStateChanged) {
			defer wg.Done()
			defer r.d.bus.UnsubscribePrinterStateChanged(printerID, ch)
			for {
				select {
				case <-ctx.Done():
					return
				case e, ok := <-ch:
					if !ok {
						return
					}
					r.handle(ctx, e)
				}
			}
		}(id, ch)
	}
	wg.Wait()
}

func (r *Reconciler) handle(ctx context.Context, e eventbus.PrinterStateChanged) {
	snap, ok := r.d.state.Get(e.PrinterID)
	if !ok || snap.LastFrame == nil {
		return
	}
	frame := *snap.LastFrame

	switch frame.State {
	case adapter.DeviceFinished:
		r.reconcileTerminal(ctx, e.PrinterID, frame, true, "")
	case adapter.DeviceFailed:
		reason := ""
		if len(frame.Errors) > 0 {
			reason = frame.Errors[len(frame.Errors)-1].AttrCode
		}
		r.reconcileTerminal(ctx, e.PrinterID, frame, false, reason)
	}
}

func (r *Reconciler) reconcileTerminal(ctx context.Context, printerID int64, frame adapter.StatusFrame, success bool, lastErrorCode string) {
	j, pr, err := r.matchJob(ctx, printerID, frame.Filename)
	if err != nil {
		r.log.Error("dispatcher: reconciliation match failed", "printer_id", printerID, "err", err)
		return
	}
	if j == nil {
		// No in-flight job could be matched; an unlinked PrintRecord is still
		// created so the observed print isn't lost.
		r.createUnlinkedRecord(ctx, printerID, frame, success)
		return
	}

	unlock := r.d.locks.Lock(jobLockKey(j.ID))
	defer unlock()

	if success {
		if err := j.Complete(r.d.clock); err != nil {
			r.log.Error("dispatcher: complete job failed", "job_id", j.ID, "err", err)
			return
		}
	} else {
		if err := j.Fail(job.FailOther, fmt.Sprintf("observed failure on printer %d (last error %s)", printerID, lastErrorCode), r.d.clock); err != nil {
			r.log.Error("dispatcher: fail job failed", "job_id", j.ID, "err", err)
			return
		}
	}
	if err := r.d.jobs.Update(ctx, j); err != nil {
		r.log.Error("dispatcher: persist reconciled job failed", "job_id", j.ID, "err", err)
		return
	}

	if pr != nil {
		pr.Status = printrecord.StatusCompleted
		if !success {
			pr.Status = printrecord.StatusFailed
		}
		now := r.d.clock.Now()
		pr.EndedAt = &now
		if err := r.d.printrecords.Update(ctx, pr); err != nil {
			r.log.Error("dispatcher: persist print record failed", "record_id", pr.ID, "err", err)
		}
	}

	if success {
		r.d.bus.PublishJobCompleted(eventbus.JobCompleted{JobID: j.ID, PrinterID: printerID, At: r.d.clock.Now()})
		if r.d.accounting != nil {
			if err := r.d.accounting.OnJobCompleted(ctx, j, pr); err != nil {
				r.log.Error("dispatcher: filament accounting failed", "job_id", j.ID, "err", err)
			}
		}
	} else {
		reason := job.FailOther
		r.d.bus.PublishJobFailed(eventbus.JobFailed{JobID: j.ID, PrinterID: printerID, FailReason: string(reason), At: r.d.clock.Now()})
	}
}

// matchJob implements the "filename or sole in-flight job" match rule.
func (r *Reconciler) matchJob(ctx context.Context, printerID int64, filename string) (*job.Job, *printrecord.PrintRecord, error) {
	if filename != "" {
		if pr, err := r.d.printrecords.FindInFlightByPrinterAndFilename(ctx, printerID, filename); err == nil && pr != nil && pr.JobID != nil {
			j, err := r.d.jobs.FindByID(ctx, *pr.JobID)
			if err != nil {
				return nil, nil, err
			}
			if j.Status == job.StatusPrinting {
				return j, pr, nil
			}
		}
	}

	printing, err := r.d.jobs.ByPrinterAndStatus(ctx, printerID, job.StatusPrinting)
	if err != nil {
		return nil, nil, err
	}
	if len(printing) != 1 {
		return nil, nil, nil
	}
	sole := printing[0]
	pr, err := r.d.printrecords.FindSoleInFlightByPrinter(ctx, printerID)
	if err != nil {
		return sole, nil, nil
	}
	return sole, pr, nil
}

func (r *Reconciler) createUnlinkedRecord(ctx context.Context, printerID int64, frame adapter.StatusFrame, success bool) {
	status := printrecord.StatusCompleted
	if !success {
		status = printrecord.StatusFailed
	}
	now := r.d.clock.Now()
	rec := &printrecord.PrintRecord{
		PrinterID:    printerID,
		Filename:     frame.Filename,
		ProgressPct:  frame.ProgressPct,
		RemainingMin: frame.RemainingMin,
		CurrentLayer: frame.CurrentLayer,
		TotalLayers:  frame.TotalLayers,
		Status:       status,
		StartedAt:    now,
		EndedAt:      &now,
	}
	if err := r.d.printrecords.Create(ctx, rec); err != nil {
		r.log.Error("dispatcher: create unlinked print record failed", "printer_id", printerID, "err", err)
	}
}
