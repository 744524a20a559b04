// Package accounting implements filament accounting: AMS slot
// reconciliation against tracked Spools, drift detection, and consumption
// deduction when a Job completes.
package accounting

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/printfleet/printfleet/internal/adapters/metrics"
	"github.com/printfleet/printfleet/internal/domain/adapter"
	"github.com/printfleet/printfleet/internal/domain/artifact"
	"github.com/printfleet/printfleet/internal/domain/colormatch"
	"github.com/printfleet/printfleet/internal/domain/eventbus"
	"github.com/printfleet/printfleet/internal/domain/job"
	"github.com/printfleet/printfleet/internal/domain/model"
	"github.com/printfleet/printfleet/internal/domain/printer"
	"github.com/printfleet/printfleet/internal/domain/printrecord"
	"github.com/printfleet/printfleet/internal/domain/shared"
	"github.com/printfleet/printfleet/internal/domain/spool"
	"github.com/printfleet/printfleet/internal/infrastructure/lockset"
)

// Accounting wires together the spool ledger, the filament library and the
// event bus to implement AMS reconciliation and consumption deduction.
type Accounting struct {
	spools    spool.Repository
	printers  printer.Repository
	models    model.Repository
	artifacts artifact.Repository
	bus       *eventbus.Bus
	catalog   colormatch.CatalogProvider
	ids       spool.IDGenerator
	locks     *lockset.Set
	clock     shared.Clock
}

// New constructs an Accounting engine. catalog and ids fall back to a no-op
// provider and a UUID-based generator respectively when nil.
func New(
	spools spool.Repository,
	printers printer.Repository,
	models model.Repository,
	artifacts artifact.Repository,
	bus *eventbus.Bus,
	catalog colormatch.CatalogProvider,
	ids spool.IDGenerator,
	locks *lockset.Set,
	clock shared.Clock,
) *Accounting {
	if catalog == nil {
		catalog = colormatch.NoopCatalogProvider{}
	}
	if ids == nil {
		ids = defaultIDGenerator{}
	}
	if locks == nil {
		locks = lockset.New()
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Accounting{
		spools: spools, printers: printers, models: models, artifacts: artifacts,
		bus: bus, catalog: catalog, ids: ids, locks: locks, clock: clock,
	}
}

func spoolLockKey(spoolID int64) string { return fmt.Sprintf("spool:%d", spoolID) }

// ReconcileSlot runs the five-step AMS sync algorithm for one
// hardware-reported slot. printerID and slot.SlotNumber locate the FilamentSlot
// being reconciled; slot carries the hardware-reported RFID/material/hex/percent.
func (a *Accounting) ReconcileSlot(ctx context.Context, printerID int64, slot adapter.LoadedSlot) error {
	fslot, err := a.printers.SlotByNumber(ctx, printerID, slot.SlotNumber)
	if err != nil {
		return fmt.Errorf("accounting: load slot %d on printer %d: %w", slot.SlotNumber, printerID, err)
	}

	// Step 1/2: RFID-driven binding.
	if slot.RFIDTag != nil && *slot.RFIDTag != "" {
		metrics.RecordReconciliation("rfid")
		return a.reconcileByRFID(ctx, printerID, fslot, slot)
	}

	// Drift detection: an assigned spool without an RFID whose reported hex
	// no longer matches its library color loses its confirmed status.
	if fslot.AssignedSpoolID != nil && slot.ColorHex != nil {
		if sp, err := a.spools.FindByID(ctx, *fslot.AssignedSpoolID); err == nil && sp != nil {
			if rgb, err := colormatch.ParseHex(*slot.ColorHex); err == nil {
				a.checkDrift(ctx, sp, fslot, rgb)
			}
		}
	}

	// Step 3: material+hex match against the local library.
	if slot.Material != nil && slot.ColorHex != nil {
		if lib, err := a.spools.LibraryByMaterialHex(ctx, *slot.Material, *slot.ColorHex); err == nil && lib != nil {
			metrics.RecordReconciliation("library")
			return a.applyLibraryMatch(ctx, fslot, lib, *slot.ColorHex)
		}
		if lib, err := a.spools.LibraryByHex(ctx, *slot.ColorHex); err == nil && lib != nil {
			metrics.RecordReconciliation("library")
			return a.applyLibraryMatch(ctx, fslot, lib, *slot.ColorHex)
		}
	}

	// Step 4: external catalog.
	if slot.Material != nil && slot.ColorHex != nil {
		if match, err := a.catalog.Lookup(ctx, *slot.Material, *slot.ColorHex); err == nil && match != nil {
			metrics.RecordReconciliation("catalog")
			fslot.Material = match.Material
			fslot.ColorLabel = match.ProductName
			fslot.ColorHex = *slot.ColorHex
			fslot.UpdatedAt = a.clock.Now()
			return a.printers.UpsertSlot(ctx, fslot)
		}
	}

	// Step 5: deterministic fallback decoder.
	if slot.ColorHex != nil {
		rgb, err := colormatch.ParseHex(*slot.ColorHex)
		if err == nil {
			metrics.RecordReconciliation("fallback")
			fslot.ColorLabel = colormatch.ClassifyName(rgb)
			fslot.ColorHex = rgb.Hex()
			if slot.Material != nil {
				fslot.Material = *slot.Material
			}
			fslot.UpdatedAt = a.clock.Now()
			return a.printers.UpsertSlot(ctx, fslot)
		}
	}
	return nil
}

func (a *Accounting) reconcileByRFID(ctx context.Context, printerID int64, fslot *printer.FilamentSlot, loaded adapter.LoadedSlot) error {
	unlock := a.locks.Lock(fmt.Sprintf("rfid:%s", *loaded.RFIDTag))
	defer unlock()

	sp, err := a.spools.FindByRFID(ctx, *loaded.RFIDTag)
	if err != nil {
		return fmt.Errorf("accounting: lookup spool by rfid: %w", err)
	}
	if sp == nil {
		// Step 2: auto-create, deriving library match from material+hex if any.
		libraryID := int64(0)
		if loaded.Material != nil && loaded.ColorHex != nil {
			if lib, err := a.spools.LibraryByMaterialHex(ctx, *loaded.Material, *loaded.ColorHex); err == nil && lib != nil {
				libraryID = lib.ID
			}
		}
		sp, err = spool.New(libraryID, 1000, a.clock)
		if err != nil {
			return fmt.Errorf("accounting: auto-create spool: %w", err)
		}
		qr := a.ids.NewQRCode()
		sp.QRCode = &qr
		sp.RFIDTag = loaded.RFIDTag
		if err := a.spools.Create(ctx, sp); err != nil {
			return fmt.Errorf("accounting: persist auto-created spool: %w", err)
		}
	}

	sp.BindToSlot(printerID, fslot.SlotNumber, a.clock)
	if loaded.RemainingPct != nil {
		sp.UpdateRemainingFromPercent(*loaded.RemainingPct, a.clock)
	}
	if err := a.spools.Update(ctx, sp); err != nil {
		return fmt.Errorf("accounting: persist spool binding: %w", err)
	}

	fslot.Bind(sp.ID, true, a.clock)
	if loaded.Material != nil {
		fslot.Material = *loaded.Material
	}
	if loaded.ColorHex != nil {
		fslot.ColorHex = *loaded.ColorHex
		if rgb, err := colormatch.ParseHex(*loaded.ColorHex); err == nil {
			a.checkDrift(ctx, sp, fslot, rgb)
		}
	}
	return a.printers.UpsertSlot(ctx, fslot)
}

func (a *Accounting) applyLibraryMatch(ctx context.Context, fslot *printer.FilamentSlot, lib *spool.FilamentLibrary, reportedHex string) error {
	fslot.Material = lib.Material
	fslot.ColorLabel = lib.ProductName
	fslot.ColorHex = reportedHex
	fslot.SpoolConfirmed = false // step 3: "leave spool binding unconfirmed"
	fslot.UpdatedAt = a.clock.Now()
	return a.printers.UpsertSlot(ctx, fslot)
}

// checkDrift implements the drift-detection rule: a slot with an assigned,
// non-RFID spool whose reported hex differs from the library hex beyond
// colormatch.DriftThreshold drops spool_confirmed.
func (a *Accounting) checkDrift(ctx context.Context, sp *spool.Spool, fslot *printer.FilamentSlot, reported colormatch.RGB) {
	if sp.RFIDTag != nil && *sp.RFIDTag != "" {
		return
	}
	lib, err := a.spools.LibraryByID(ctx, sp.LibraryID)
	if err != nil || lib == nil || lib.ColorHex == "" {
		return
	}
	libraryRGB, err := colormatch.ParseHex(lib.ColorHex)
	if err != nil {
		return
	}
	if colormatch.HasDrifted(reported, libraryRGB) {
		fslot.ClearConfirmation(a.clock)
	}
}

// OnJobCompleted implements the consumption-deduction precedence rule:
// Model color requirements first, then PrintArtifact per-slot grams, then
// a no-op warning. Satisfies dispatcher.AccountingService.
func (a *Accounting) OnJobCompleted(ctx context.Context, j *job.Job, pr *printrecord.PrintRecord) error {
	if j.PrinterID == nil {
		return nil
	}
	deductions, warn := a.resolveDeductions(ctx, j)
	if warn != "" {
		j.AppendNote(warn, a.clock)
	}
	for slotIndex, grams := range deductions {
		if grams <= 0 {
			continue
		}
		if err := a.deductSlot(ctx, j, slotIndex, grams); err != nil {
			return err
		}
	}
	return nil
}

// resolveDeductions returns the per-slot gram amount to deduct, per the
// precedence rule, plus a warning note when neither source is available.
func (a *Accounting) resolveDeductions(ctx context.Context, j *job.Job) (map[int]float64, string) {
	if j.ModelID != nil {
		if m, err := a.models.FindByID(ctx, *j.ModelID); err == nil && m != nil && len(m.ColorRequirements) > 0 {
			out := make(map[int]float64, len(m.ColorRequirements))
			for idx, req := range m.ColorRequirements {
				out[idx] = req.Grams
			}
			return out, ""
		}
	}
	if j.ArtifactID != nil {
		if art, err := a.artifacts.FindByID(ctx, *j.ArtifactID); err == nil && art != nil && len(art.PerSlotFilament) > 0 {
			out := make(map[int]float64, len(art.PerSlotFilament))
			for idx, use := range art.PerSlotFilament {
				out[idx] = use.UsedGrams
			}
			return out, ""
		}
	}
	return nil, fmt.Sprintf("accounting: job %d completed with no available consumption data (neither model nor artifact grams); nothing deducted", j.ID)
}

func (a *Accounting) deductSlot(ctx context.Context, j *job.Job, slotIndex int, grams float64) error {
	sp, err := a.spools.FindActiveBySlot(ctx, *j.PrinterID, slotIndex)
	if err != nil {
		return fmt.Errorf("accounting: locate active spool for printer %d slot %d: %w", *j.PrinterID, slotIndex, err)
	}
	if sp == nil {
		return nil
	}

	unlock := a.locks.Lock(spoolLockKey(sp.ID))
	defer unlock()

	result := sp.Deduct(grams, a.clock)
	metrics.RecordDeduction(result.Deducted)
	if err := a.spools.Update(ctx, sp); err != nil {
		return fmt.Errorf("accounting: persist spool %d deduction: %w", sp.ID, err)
	}

	usage := spool.NewUsage(sp.ID, j.ID, result.Deducted, fmt.Sprintf("job %d completion deduction", j.ID), a.clock)
	if err := a.spools.CreateUsage(ctx, usage); err != nil {
		return fmt.Errorf("accounting: persist usage record for spool %d: %w", sp.ID, err)
	}

	if a.bus == nil {
		return nil
	}
	if result.CrossedLowThreshold {
		metrics.RecordSpoolLow()
		a.bus.PublishInventorySpoolLow(eventbus.InventorySpoolLow{SpoolID: sp.ID, RemainingGrams: sp.RemainingGrams, At: a.clock.Now()})
	}
	if result.ReachedEmpty {
		metrics.RecordSpoolEmpty()
		a.bus.PublishInventorySpoolEmpty(eventbus.InventorySpoolEmpty{SpoolID: sp.ID, At: a.clock.Now()})
	}
	return nil
}

// defaultIDGenerator mints QR codes as "SPL-" plus the first eight hex
// characters of a fresh UUID, used when no generator is supplied.
type defaultIDGenerator struct{}

func (defaultIDGenerator) NewQRCode() string { return "SPL-" + uuid.NewString()[:8] }
