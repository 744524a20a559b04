package alertdispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/printfleet/printfleet/internal/domain/alert"
	"github.com/printfleet/printfleet/internal/domain/eventbus"
	"github.com/printfleet/printfleet/internal/domain/hmscodes"
)

// Recipients resolves which user ids should receive a Notification for a
// given event kind, delegating to the external RBAC/user-directory
// collaborator this repository does not implement.
type Recipients func(ctx context.Context, kind string) []int64

// Subscribe wires the global (non-entity-keyed) bus topics relevant to
// alerting into Dispatch calls, running until ctx is cancelled. Intended to
// be launched by the daemon host alongside the Session Manager and
// Dispatcher reconciler.
func Subscribe(ctx context.Context, bus *eventbus.Bus, d *Dispatcher, recipients Recipients) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ch := bus.SubscribeJobFailed()
		defer bus.UnsubscribeJobFailed(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				d.Dispatch(ctx, Notification{
					Kind: string(eventbus.TopicJobFailed), Severity: alert.SeverityCritical,
					Title: fmt.Sprintf("Job %d failed", e.JobID), Message: e.FailReason,
					Recipients: recipients(ctx, string(eventbus.TopicJobFailed)),
					JobID:      &e.JobID, PrinterID: &e.PrinterID,
				})
			}
		}
	}()

	wg.Wait()
}

// SubscribeSpoolEvents wires one spool's inventory.spool_low/spool_empty
// feed into Dispatch calls. Both topics are keyed by spool id on the bus
// (unlike job.* topics), so the daemon host calls this once per spool it
// knows about, the same way SubscribePrinterErrors is called once per
// printer.
func SubscribeSpoolEvents(ctx context.Context, bus *eventbus.Bus, d *Dispatcher, recipients Recipients, spoolID int64) {
	low := bus.SubscribeInventorySpoolLow(spoolID)
	empty := bus.SubscribeInventorySpoolEmpty(spoolID)
	defer bus.UnsubscribeInventorySpoolLow(spoolID, low)
	defer bus.UnsubscribeInventorySpoolEmpty(spoolID, empty)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-low:
			if !ok {
				return
			}
			d.Dispatch(ctx, Notification{
				Kind: string(eventbus.TopicInventorySpoolLow), Severity: alert.SeverityWarning,
				Title:      fmt.Sprintf("Spool %d running low", e.SpoolID),
				Message:    fmt.Sprintf("%.0fg remaining", e.RemainingGrams),
				Recipients: recipients(ctx, string(eventbus.TopicInventorySpoolLow)),
				SpoolID:    &e.SpoolID,
			})
		case e, ok := <-empty:
			if !ok {
				return
			}
			d.Dispatch(ctx, Notification{
				Kind: string(eventbus.TopicInventorySpoolEmpty), Severity: alert.SeverityCritical,
				Title:      fmt.Sprintf("Spool %d is empty", e.SpoolID),
				Message:    "Replace the spool to resume printing.",
				Recipients: recipients(ctx, string(eventbus.TopicInventorySpoolEmpty)),
				SpoolID:    &e.SpoolID,
			})
		}
	}
}

// SubscribePrinterErrors wires one printer's printer.error feed into
// Dispatch calls. Called per active printer by the daemon host alongside
// session.Supervisor.Spawn, mirroring the per-printer keying of that topic.
func SubscribePrinterErrors(ctx context.Context, bus *eventbus.Bus, d *Dispatcher, recipients Recipients, printerID int64) {
	ch := bus.SubscribePrinterError(printerID)
	defer bus.UnsubscribePrinterError(printerID, ch)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			code := hmscodes.Lookup(e.Code)
			d.Dispatch(ctx, Notification{
				Kind: string(eventbus.TopicPrinterError), Severity: code.Severity,
				Title: fmt.Sprintf("Printer %d error", printerID), Message: code.Message,
				Recipients: recipients(ctx, string(eventbus.TopicPrinterError)),
				PrinterID:  &printerID,
			})
		}
	}
}
