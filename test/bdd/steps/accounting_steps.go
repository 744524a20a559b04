package steps

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/printfleet/printfleet/internal/application/accounting"
	"github.com/printfleet/printfleet/internal/domain/adapter"
	"github.com/printfleet/printfleet/internal/domain/artifact"
	"github.com/printfleet/printfleet/internal/domain/eventbus"
	"github.com/printfleet/printfleet/internal/domain/job"
	"github.com/printfleet/printfleet/internal/domain/model"
	"github.com/printfleet/printfleet/internal/domain/printer"
	"github.com/printfleet/printfleet/internal/domain/shared"
	"github.com/printfleet/printfleet/internal/domain/spool"
)

type accountingContext struct {
	spools  *memSpoolRepo
	slots   *memPrinterRepo
	models  *memModelRepo
	arts    *memArtifactRepo
	bus     *eventbus.Bus
	clock   *shared.MockClock
	engine  *accounting.Accounting

	spoolID   int64
	lowEvents <-chan eventbus.InventorySpoolLow
	job       *job.Job
	rfidSpool *spool.Spool
}

func (c *accountingContext) reset() {
	c.spools = newMemSpoolRepo()
	c.slots = newMemPrinterRepo()
	c.models = &memModelRepo{models: make(map[int64]*model.Model)}
	c.arts = &memArtifactRepo{artifacts: make(map[int64]*artifact.PrintArtifact)}
	c.bus = eventbus.New()
	c.clock = shared.NewMockClock(baseDay.Add(10 * time.Hour))
	c.engine = accounting.New(c.spools, c.slots, c.models, c.arts, c.bus, nil, nil, nil, c.clock)
	c.spoolID = 0
	c.lowEvents = nil
	c.job = nil
	c.rfidSpool = nil
}

func (c *accountingContext) aSpoolLoadedAt(remaining float64, printerID int64, slotNumber int) error {
	s, err := spool.New(1, 1000, c.clock)
	if err != nil {
		return err
	}
	s.RemainingGrams = remaining
	s.BindToSlot(printerID, slotNumber, c.clock)
	if err := c.spools.Create(context.Background(), s); err != nil {
		return err
	}
	c.spoolID = s.ID
	c.lowEvents = c.bus.SubscribeInventorySpoolLow(s.ID)
	return nil
}

func (c *accountingContext) aCompletedJobWithModelGrams(printerID int64, grams float64, slotNumber int) error {
	c.models.models[1] = &model.Model{
		ID: 1, DisplayName: "scenario model",
		ColorRequirements: map[int]model.ColorRequirement{slotNumber: {Color: "Red", Grams: grams}},
	}
	modelID := int64(1)
	started := c.clock.Now().Add(-time.Hour)
	ended := c.clock.Now()
	c.job = &job.Job{
		ID: 1, ItemName: "scenario job", Priority: 3, Status: job.StatusCompleted,
		PrinterID: &printerID, ModelID: &modelID,
		ActualStart: &started, ActualEnd: &ended, IsLocked: true,
	}
	return nil
}

func (c *accountingContext) consumptionDeductionRuns() error {
	return c.engine.OnJobCompleted(context.Background(), c.job, nil)
}

func (c *accountingContext) theSpoolHasGramsRemaining(want float64) error {
	s, err := c.spools.FindByID(context.Background(), c.spoolID)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("spool %d not found", c.spoolID)
	}
	if math.Abs(s.RemainingGrams-want) > 0.001 {
		return fmt.Errorf("expected %.1f grams remaining, got %.1f", want, s.RemainingGrams)
	}
	return nil
}

func (c *accountingContext) exactlyOneUsageRecordExists(grams float64) error {
	usages, err := c.spools.UsagesBySpool(context.Background(), c.spoolID)
	if err != nil {
		return err
	}
	if len(usages) != 1 {
		return fmt.Errorf("expected exactly one usage record, got %d", len(usages))
	}
	u := usages[0]
	if u.JobID != c.job.ID || math.Abs(u.Grams-grams) > 0.001 {
		return fmt.Errorf("unexpected usage record {job: %d, grams: %.2f}", u.JobID, u.Grams)
	}
	return nil
}

func (c *accountingContext) noSpoolLowEventWasPublished() error {
	if n := len(c.lowEvents); n != 0 {
		return fmt.Errorf("expected no spool low events, got %d", n)
	}
	return nil
}

func (c *accountingContext) spoolLowPublishedExactlyOnce() error {
	if n := len(c.lowEvents); n != 1 {
		return fmt.Errorf("expected exactly one spool low event, got %d", n)
	}
	return nil
}

func (c *accountingContext) printerHasUnboundSlot(printerID int64, slotNumber int) error {
	return c.slots.UpsertSlot(context.Background(), &printer.FilamentSlot{
		PrinterID: printerID, SlotNumber: slotNumber,
	})
}

func (c *accountingContext) aStatusFrameReportsSlot(slotNumber int, rfid, material, hex string, pct float64) error {
	return c.engine.ReconcileSlot(context.Background(), 1, adapter.LoadedSlot{
		SlotNumber:   slotNumber,
		Material:     &material,
		ColorHex:     &hex,
		RemainingPct: &pct,
		RFIDTag:      &rfid,
	})
}

func (c *accountingContext) aSpoolWithRFIDExists(rfid string) error {
	s, err := c.spools.FindByRFID(context.Background(), rfid)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("no spool with RFID %q", rfid)
	}
	c.rfidSpool = s
	return nil
}

func (c *accountingContext) thatSpoolsQRCodeStartsWith(prefix string) error {
	if c.rfidSpool.QRCode == nil || !strings.HasPrefix(*c.rfidSpool.QRCode, prefix) {
		return fmt.Errorf("expected QR code with prefix %q, got %v", prefix, c.rfidSpool.QRCode)
	}
	return nil
}

func (c *accountingContext) thatSpoolHasGramsRemaining(want float64) error {
	if math.Abs(c.rfidSpool.RemainingGrams-want) > 0.001 {
		return fmt.Errorf("expected %.1f grams, got %.1f", want, c.rfidSpool.RemainingGrams)
	}
	return nil
}

func (c *accountingContext) slotIsBoundAndConfirmed(slotNumber int) error {
	slot, err := c.slots.SlotByNumber(context.Background(), 1, slotNumber)
	if err != nil {
		return err
	}
	if slot.AssignedSpoolID == nil || *slot.AssignedSpoolID != c.rfidSpool.ID {
		return fmt.Errorf("slot %d is not bound to spool %d", slotNumber, c.rfidSpool.ID)
	}
	if !slot.SpoolConfirmed {
		return fmt.Errorf("slot %d binding is not confirmed", slotNumber)
	}
	return nil
}

// InitializeAccountingScenario registers filament-accounting step
// definitions.
func InitializeAccountingScenario(sc *godog.ScenarioContext) {
	c := &accountingContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})

	sc.Step(`^a spool with ([\d.]+) grams remaining loaded at printer (\d+) slot (\d+)$`, c.aSpoolLoadedAt)
	sc.Step(`^a completed job on printer (\d+) whose model requires ([\d.]+) grams in slot (\d+)$`, c.aCompletedJobWithModelGrams)
	sc.Step(`^consumption deduction runs for the job$`, c.consumptionDeductionRuns)
	sc.Step(`^the spool has ([\d.]+) grams remaining$`, c.theSpoolHasGramsRemaining)
	sc.Step(`^exactly one usage record of ([\d.]+) grams exists for the job$`, c.exactlyOneUsageRecordExists)
	sc.Step(`^no spool low event was published$`, c.noSpoolLowEventWasPublished)
	sc.Step(`^a spool low event was published exactly once$`, c.spoolLowPublishedExactlyOnce)
	sc.Step(`^printer (\d+) has an unbound filament slot (\d+)$`, c.printerHasUnboundSlot)
	sc.Step(`^a status frame reports slot (\d+) with RFID "([^"]+)", material "([^"]+)", hex "([^"]+)" and ([\d.]+) percent remaining$`, c.aStatusFrameReportsSlot)
	sc.Step(`^a spool with RFID "([^"]+)" exists$`, c.aSpoolWithRFIDExists)
	sc.Step(`^that spool's QR code starts with "([^"]+)"$`, c.thatSpoolsQRCodeStartsWith)
	sc.Step(`^that spool has ([\d.]+) grams remaining$`, c.thatSpoolHasGramsRemaining)
	sc.Step(`^slot (\d+) is bound to that spool and confirmed$`, c.slotIsBoundAndConfirmed)
}
