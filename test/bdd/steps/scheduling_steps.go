package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/printfleet/printfleet/internal/application/scheduler"
	"github.com/printfleet/printfleet/internal/domain/eventbus"
	"github.com/printfleet/printfleet/internal/domain/job"
	"github.com/printfleet/printfleet/internal/domain/printer"
	"github.com/printfleet/printfleet/internal/domain/schedulerrun"
	"github.com/printfleet/printfleet/internal/domain/shared"
)

// baseDay anchors every "HH:MM" step value to one calendar day so scenario
// expectations are absolute times.
var baseDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func parseClock(value string) (time.Time, error) {
	nextDay := false
	if strings.HasSuffix(value, " next day") {
		nextDay = true
		value = strings.TrimSuffix(value, " next day")
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid HH:MM value %q: %w", value, err)
	}
	day := baseDay
	if nextDay {
		day = day.AddDate(0, 0, 1)
	}
	return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

type schedulingContext struct {
	jobs     *memJobRepo
	printers *memPrinterRepo
	runs     *memRunRepo
	bus      *eventbus.Bus

	blackoutStart string
	blackoutEnd   string
	printerID     int64
	jobID         int64
	lastRun       *schedulerrun.SchedulerRun
}

func (c *schedulingContext) reset() {
	c.jobs = newMemJobRepo()
	c.printers = newMemPrinterRepo()
	c.runs = &memRunRepo{}
	c.bus = eventbus.New()
	c.blackoutStart = ""
	c.blackoutEnd = ""
	c.printerID = 0
	c.jobID = 0
	c.lastRun = nil
}

func (c *schedulingContext) theBlackoutWindowIs(start, end string) error {
	c.blackoutStart = start
	c.blackoutEnd = end
	return nil
}

func (c *schedulingContext) aPrinterWithSlotsAndColorLoaded(slotCount int, color string) error {
	c.printerID++
	p := &printer.Printer{
		ID: c.printerID, Name: fmt.Sprintf("bay-%d", c.printerID),
		Kind: printer.KindMessageBus, SlotCount: slotCount, Active: true,
	}
	if err := c.printers.Create(context.Background(), p); err != nil {
		return err
	}
	return c.printers.UpsertSlot(context.Background(), &printer.FilamentSlot{
		PrinterID: c.printerID, SlotNumber: 1, Material: "PLA", ColorLabel: color,
	})
}

func (c *schedulingContext) aPendingJob(name, colors, duration string, priority int) error {
	dur, err := time.ParseDuration(duration)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", duration, err)
	}
	c.jobID++
	j := &job.Job{
		ID: c.jobID, ItemName: name, Quantity: 1, Priority: priority,
		EffectiveDuration: dur, Material: "PLA", Status: job.StatusPending,
		ColorRequirements: make(map[int]job.ColorRequirement),
		CreatedAt:         baseDay,
	}
	for i, color := range strings.Split(colors, ",") {
		j.ColorRequirements[i+1] = job.ColorRequirement{Color: strings.TrimSpace(color), Grams: 10}
	}
	return c.jobs.Create(context.Background(), j)
}

func (c *schedulingContext) theSchedulerRunsAt(clockValue string) error {
	now, err := parseClock(clockValue)
	if err != nil {
		return err
	}
	blackout, err := scheduler.ParseBlackoutWindow(c.blackoutStart, c.blackoutEnd)
	if err != nil {
		return err
	}
	s := scheduler.New(c.jobs, c.printers, c.runs, c.bus, shared.NewMockClock(now), scheduler.Config{Blackout: blackout})
	c.lastRun, err = s.Run(context.Background())
	return err
}

func (c *schedulingContext) theJobIsScheduledFromTo(start, end string) error {
	wantStart, err := parseClock(start)
	if err != nil {
		return err
	}
	wantEnd, err := parseClock(end)
	if err != nil {
		return err
	}
	j, err := c.jobs.FindByID(context.Background(), c.jobID)
	if err != nil {
		return err
	}
	if j.Status != job.StatusScheduled {
		return fmt.Errorf("expected job to be scheduled, got %s", j.Status)
	}
	if j.PrinterID == nil || *j.PrinterID != c.printerID {
		return fmt.Errorf("expected job on printer %d, got %v", c.printerID, j.PrinterID)
	}
	if !j.ScheduledStart.Equal(wantStart) {
		return fmt.Errorf("expected start %s, got %s", wantStart, j.ScheduledStart)
	}
	if !j.ScheduledEnd.Equal(wantEnd) {
		return fmt.Errorf("expected end %s, got %s", wantEnd, j.ScheduledEnd)
	}
	return nil
}

func (c *schedulingContext) theJobsMatchScoreIs(score int) error {
	j, err := c.jobs.FindByID(context.Background(), c.jobID)
	if err != nil {
		return err
	}
	if j.MatchScore == nil || *j.MatchScore != score {
		return fmt.Errorf("expected match score %d, got %v", score, j.MatchScore)
	}
	return nil
}

func (c *schedulingContext) theRunRecordsSetupBlocks(count int) error {
	if c.lastRun == nil {
		return fmt.Errorf("no scheduler run recorded")
	}
	if c.lastRun.SetupBlocks != count {
		return fmt.Errorf("expected %d setup blocks, got %d", count, c.lastRun.SetupBlocks)
	}
	return nil
}

func (c *schedulingContext) theJobRemainsPending() error {
	j, err := c.jobs.FindByID(context.Background(), c.jobID)
	if err != nil {
		return err
	}
	if j.Status != job.StatusPending {
		return fmt.Errorf("expected job to remain pending, got %s", j.Status)
	}
	return nil
}

func (c *schedulingContext) theRunNotesMention(fragment string) error {
	if c.lastRun == nil {
		return fmt.Errorf("no scheduler run recorded")
	}
	for _, note := range c.lastRun.Notes {
		if strings.Contains(note, fragment) {
			return nil
		}
	}
	return fmt.Errorf("no run note mentions %q (notes: %v)", fragment, c.lastRun.Notes)
}

// InitializeSchedulingScenario registers scheduling step definitions.
func InitializeSchedulingScenario(sc *godog.ScenarioContext) {
	c := &schedulingContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})

	sc.Step(`^the blackout window is "([^"]+)" to "([^"]+)"$`, c.theBlackoutWindowIs)
	sc.Step(`^a printer with (\d+) slots and (\w+) PLA loaded in slot 1$`, c.aPrinterWithSlotsAndColorLoaded)
	sc.Step(`^a pending PLA job "([^"]+)" requiring colors "([^"]+)" with duration "([^"]+)" and priority (\d+)$`, c.aPendingJob)
	sc.Step(`^the scheduler runs at "([^"]+)"$`, c.theSchedulerRunsAt)
	sc.Step(`^the job is scheduled on that printer from "([^"]+)" to "([^"]+)"$`, c.theJobIsScheduledFromTo)
	sc.Step(`^the job's match score is (\d+)$`, c.theJobsMatchScoreIs)
	sc.Step(`^the run records (\d+) setup blocks$`, c.theRunRecordsSetupBlocks)
	sc.Step(`^the job remains pending$`, c.theJobRemainsPending)
	sc.Step(`^the run notes mention "([^"]+)"$`, c.theRunNotesMention)
}
