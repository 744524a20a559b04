package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/printfleet/printfleet/internal/adapters/metrics"
	"github.com/printfleet/printfleet/internal/domain/eventbus"
	"github.com/printfleet/printfleet/internal/domain/job"
	"github.com/printfleet/printfleet/internal/domain/printer"
	"github.com/printfleet/printfleet/internal/domain/schedulerrun"
	"github.com/printfleet/printfleet/internal/domain/shared"
)

// DefaultHorizonDays and DefaultSetupBlockDuration are the planning
// defaults: a 7-day horizon and a 2h filament-swap setup block.
const (
	DefaultHorizonDays        = 7
	DefaultSetupBlockDuration = 2 * time.Hour
)

// Config parameterizes one Scheduler.
type Config struct {
	Blackout           BlackoutWindow
	HorizonDays        int
	SetupBlockDuration time.Duration
}

// Scheduler runs the greedy batch assignment pass. Runs are mutually
// exclusive process-wide.
type Scheduler struct {
	jobs    job.Repository
	printers printer.Repository
	runs    schedulerrun.Repository
	bus     *eventbus.Bus
	clock   shared.Clock
	cfg     Config

	mu sync.Mutex // one scheduler run at a time, process-wide
}

// New constructs a Scheduler. Zero-value Config fields fall back to the
// package defaults.
func New(jobs job.Repository, printers printer.Repository, runs schedulerrun.Repository, bus *eventbus.Bus, clock shared.Clock, cfg Config) *Scheduler {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = DefaultHorizonDays
	}
	if cfg.SetupBlockDuration <= 0 {
		cfg.SetupBlockDuration = DefaultSetupBlockDuration
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Scheduler{jobs: jobs, printers: printers, runs: runs, bus: bus, clock: clock, cfg: cfg}
}

// timeline tracks one printer's next-available moment, advanced
// monotonically as jobs are placed on it within a single run.
type timeline struct {
	printer *printer.Printer
	slots   []*printer.FilamentSlot
	cursor  time.Time
}

func (t *timeline) loadedColors() map[string]bool {
	colors := make(map[string]bool)
	for _, s := range t.slots {
		if s.ColorLabel != "" {
			colors[strings.ToLower(s.ColorLabel)] = true
		}
	}
	return colors
}

func (t *timeline) hasMaterial(material string) bool {
	if material == "" {
		return true
	}
	anyMaterialKnown := false
	for _, s := range t.slots {
		if s.Material == "" {
			continue
		}
		anyMaterialKnown = true
		if strings.EqualFold(s.Material, material) {
			return true
		}
	}
	// No slot has a recorded material yet (unconfigured AMS) — don't
	// disqualify a printer on the basis of information it hasn't reported.
	return !anyMaterialKnown
}

// Run executes one scheduling pass: it reads schedulable jobs and active
// printers, places as many as fit within the horizon, and writes a
// SchedulerRun audit record. It returns the run record.
func (s *Scheduler) Run(ctx context.Context) (*schedulerrun.SchedulerRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	horizonEnd := now.Add(time.Duration(s.cfg.HorizonDays) * 24 * time.Hour)

	candidates, err := s.jobs.Schedulable(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load schedulable jobs: %w", err)
	}
	sortCandidates(candidates)

	printers, err := s.printers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load active printers: %w", err)
	}
	printingJobs, err := s.jobs.Printing(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load printing jobs: %w", err)
	}
	printingEndByPrinter := make(map[int64]time.Time)
	for _, j := range printingJobs {
		if j.PrinterID == nil {
			continue
		}
		projected := now.Add(j.EffectiveDuration)
		if j.ActualStart != nil {
			projected = j.ActualStart.Add(j.EffectiveDuration)
		}
		if existing, ok := printingEndByPrinter[*j.PrinterID]; !ok || projected.After(existing) {
			printingEndByPrinter[*j.PrinterID] = projected
		}
	}

	timelines := make(map[int64]*timeline, len(printers))
	maxSlotCount := 0
	for _, p := range printers {
		slots, err := s.printers.Slots(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("scheduler: load slots for printer %d: %w", p.ID, err)
		}
		cursor := now
		if end, ok := printingEndByPrinter[p.ID]; ok && end.After(cursor) {
			cursor = end
		}
		timelines[p.ID] = &timeline{printer: p, slots: slots, cursor: cursor}
		if p.SlotCount > maxSlotCount {
			maxSlotCount = p.SlotCount
		}
	}

	run := &schedulerrun.SchedulerRun{RanAt: now}

	for _, j := range candidates {
		if err := s.placeOne(ctx, j, timelines, maxSlotCount, now, horizonEnd, run); err != nil {
			return nil, err
		}
	}

	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("scheduler: persist run: %w", err)
	}
	metrics.RecordSchedulerRun(run.ScheduledCount, run.SkippedCount, run.SetupBlocks, s.clock.Now().Sub(now).Seconds())
	return run, nil
}

func (s *Scheduler) placeOne(ctx context.Context, j *job.Job, timelines map[int64]*timeline, maxSlotCount int, now, horizonEnd time.Time, run *schedulerrun.SchedulerRun) error {
	duration := j.EffectiveDuration
	if duration <= 0 {
		duration = job.MinEffectiveDuration
	}
	requiredColors := j.RequiredColors()

	if len(requiredColors) > maxSlotCount {
		run.SkippedCount++
		run.Notes = append(run.Notes, fmt.Sprintf("job %d: color_requirement_exceeds_slots (needs %d, max printer has %d)", j.ID, len(requiredColors), maxSlotCount))
		return nil
	}

	type candidatePrinter struct {
		tl             *timeline
		matchScore     int
		earliestStart  time.Time
		setupNeeded    bool
	}
	var candidates []candidatePrinter

	for _, tl := range timelines {
		if tl.printer.SlotCount < len(requiredColors) {
			continue
		}
		if !tl.hasMaterial(j.Material) {
			continue
		}
		loaded := tl.loadedColors()
		matchScore := 0
		for _, c := range requiredColors {
			if loaded[strings.ToLower(c)] {
				matchScore++
			}
		}
		setupNeeded := matchScore < len(requiredColors)

		start := tl.cursor
		if setupNeeded {
			start = start.Add(s.cfg.SetupBlockDuration)
		}
		start = s.cfg.Blackout.PushOutsideBlackout(start, duration)

		candidates = append(candidates, candidatePrinter{tl: tl, matchScore: matchScore, earliestStart: start, setupNeeded: setupNeeded})
	}

	if len(candidates) == 0 {
		run.SkippedCount++
		run.Notes = append(run.Notes, fmt.Sprintf("job %d: no_candidate_printer", j.ID))
		return nil
	}

	sort.Slice(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if !ca.earliestStart.Equal(cb.earliestStart) {
			return ca.earliestStart.Before(cb.earliestStart)
		}
		if ca.matchScore != cb.matchScore {
			return ca.matchScore > cb.matchScore // −match_score ascending == match_score descending
		}
		return ca.tl.printer.ID < cb.tl.printer.ID
	})
	chosen := candidates[0]

	if chosen.earliestStart.Add(duration).After(horizonEnd) {
		run.SkippedCount++
		run.Notes = append(run.Notes, fmt.Sprintf("job %d: exceeds_horizon", j.ID))
		return nil
	}

	if j.Status == job.StatusScheduled {
		if err := j.ResetJob(s.clock); err != nil {
			return fmt.Errorf("scheduler: reset job %d before reschedule: %w", j.ID, err)
		}
	}

	end := chosen.earliestStart.Add(duration)
	if err := j.Schedule(chosen.tl.printer.ID, chosen.earliestStart, end, chosen.matchScore, s.clock); err != nil {
		return fmt.Errorf("scheduler: schedule job %d: %w", j.ID, err)
	}
	if err := s.jobs.Update(ctx, j); err != nil {
		return fmt.Errorf("scheduler: persist scheduled job %d: %w", j.ID, err)
	}

	chosen.tl.cursor = end
	run.ScheduledCount++
	if chosen.setupNeeded {
		run.SetupBlocks++
	}

	if s.bus != nil {
		s.bus.PublishJobScheduled(eventbus.JobScheduled{
			JobID:          j.ID,
			PrinterID:      chosen.tl.printer.ID,
			ScheduledStart: chosen.earliestStart,
			ScheduledEnd:   end,
			MatchScore:     chosen.matchScore,
			At:             now,
		})
	}
	return nil
}

// sortCandidates orders by (priority ASC, due_date ASC NULLS LAST,
// created_at ASC), with job id ascending as the final tie-break.
func sortCandidates(jobs []*job.Job) {
	sort.SliceStable(jobs, func(i, k int) bool {
		a, b := jobs[i], jobs[k]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if (a.DueDate == nil) != (b.DueDate == nil) {
			return b.DueDate == nil // non-nil due date sorts before nil
		}
		if a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate) {
			return a.DueDate.Before(*b.DueDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
