package steps

import (
	"context"
	"strings"

	"github.com/printfleet/printfleet/internal/domain/adapter"
	"github.com/printfleet/printfleet/internal/domain/artifact"
	"github.com/printfleet/printfleet/internal/domain/audit"
	"github.com/printfleet/printfleet/internal/domain/job"
	"github.com/printfleet/printfleet/internal/domain/model"
	"github.com/printfleet/printfleet/internal/domain/printer"
	"github.com/printfleet/printfleet/internal/domain/printrecord"
	"github.com/printfleet/printfleet/internal/domain/schedulerrun"
	"github.com/printfleet/printfleet/internal/domain/shared"
	"github.com/printfleet/printfleet/internal/domain/spool"
)

// In-memory repositories shared by the step packages. Each scenario builds
// fresh instances in its context's reset, so no cross-scenario state leaks.

type memJobRepo struct {
	jobs map[int64]*job.Job
}

func newMemJobRepo() *memJobRepo { return &memJobRepo{jobs: make(map[int64]*job.Job)} }

func (r *memJobRepo) Create(_ context.Context, j *job.Job) error { r.jobs[j.ID] = j; return nil }
func (r *memJobRepo) Update(_ context.Context, j *job.Job) error { r.jobs[j.ID] = j; return nil }
func (r *memJobRepo) FindByID(_ context.Context, id int64) (*job.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, shared.NewNotFoundError("job", id)
	}
	return j, nil
}
func (r *memJobRepo) Schedulable(_ context.Context) ([]*job.Job, error) {
	var out []*job.Job
	for _, j := range r.jobs {
		if (j.Status == job.StatusPending || j.Status == job.StatusScheduled) && !j.Hold && !j.IsLocked {
			out = append(out, j)
		}
	}
	return out, nil
}
func (r *memJobRepo) Printing(_ context.Context) ([]*job.Job, error) {
	var out []*job.Job
	for _, j := range r.jobs {
		if j.Status == job.StatusPrinting {
			out = append(out, j)
		}
	}
	return out, nil
}
func (r *memJobRepo) ByPrinterAndStatus(_ context.Context, printerID int64, statuses ...job.Status) ([]*job.Job, error) {
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
func (r *memJobRepo) List(_ context.Context) ([]*job.Job, error) {
	var out []*job.Job
	for _, j := range r.jobs {
		out = append(out, j)
	}
	return out, nil
}

type memPrinterRepo struct {
	printers map[int64]*printer.Printer
	slots    map[int64]map[int]*printer.FilamentSlot
}

func newMemPrinterRepo() *memPrinterRepo {
	return &memPrinterRepo{
		printers: make(map[int64]*printer.Printer),
		slots:    make(map[int64]map[int]*printer.FilamentSlot),
	}
}

func (r *memPrinterRepo) Create(_ context.Context, p *printer.Printer) error {
	r.printers[p.ID] = p
	return nil
}
func (r *memPrinterRepo) Update(_ context.Context, p *printer.Printer) error {
	r.printers[p.ID] = p
	return nil
}
func (r *memPrinterRepo) FindByID(_ context.Context, id int64) (*printer.Printer, error) {
	p, ok := r.printers[id]
	if !ok {
		return nil, shared.NewNotFoundError("printer", id)
	}
	return p, nil
}
func (r *memPrinterRepo) FindByName(_ context.Context, name string) (*printer.Printer, error) {
	for _, p := range r.printers {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, shared.NewNotFoundError("printer", name)
}
func (r *memPrinterRepo) ListActive(_ context.Context) ([]*printer.Printer, error) {
	var out []*printer.Printer
	for _, p := range r.printers {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}
func (r *memPrinterRepo) List(_ context.Context) ([]*printer.Printer, error) {
	var out []*printer.Printer
	for _, p := range r.printers {
		out = append(out, p)
	}
	return out, nil
}
func (r *memPrinterRepo) Delete(_ context.Context, id int64) error {
	delete(r.printers, id)
	delete(r.slots, id)
	return nil
}
func (r *memPrinterRepo) Slots(_ context.Context, printerID int64) ([]*printer.FilamentSlot, error) {
	var out []*printer.FilamentSlot
	for _, s := range r.slots[printerID] {
		out = append(out, s)
	}
	return out, nil
}
func (r *memPrinterRepo) UpsertSlot(_ context.Context, slot *printer.FilamentSlot) error {
	if r.slots[slot.PrinterID] == nil {
		r.slots[slot.PrinterID] = make(map[int]*printer.FilamentSlot)
	}
	r.slots[slot.PrinterID][slot.SlotNumber] = slot
	return nil
}
func (r *memPrinterRepo) SlotByNumber(_ context.Context, printerID int64, slotNumber int) (*printer.FilamentSlot, error) {
	s, ok := r.slots[printerID][slotNumber]
	if !ok {
		return nil, shared.NewNotFoundError("filament_slot", slotNumber)
	}
	return s, nil
}

type memRunRepo struct {
	runs []*schedulerrun.SchedulerRun
}

func (r *memRunRepo) Create(_ context.Context, run *schedulerrun.SchedulerRun) error {
	r.runs = append(r.runs, run)
	return nil
}
func (r *memRunRepo) Recent(_ context.Context, limit int) ([]*schedulerrun.SchedulerRun, error) {
	if limit > len(r.runs) {
		limit = len(r.runs)
	}
	return r.runs[len(r.runs)-limit:], nil
}

type memSpoolRepo struct {
	spools  map[int64]*spool.Spool
	usages  []*spool.Usage
	library map[int64]*spool.FilamentLibrary
	nextID  int64
}

func newMemSpoolRepo() *memSpoolRepo {
	return &memSpoolRepo{
		spools:  make(map[int64]*spool.Spool),
		library: make(map[int64]*spool.FilamentLibrary),
		nextID:  1,
	}
}

func (r *memSpoolRepo) Create(_ context.Context, s *spool.Spool) error {
	s.ID = r.nextID
	r.nextID++
	r.spools[s.ID] = s
	return nil
}
func (r *memSpoolRepo) Update(_ context.Context, s *spool.Spool) error {
	r.spools[s.ID] = s
	return nil
}
func (r *memSpoolRepo) FindByID(_ context.Context, id int64) (*spool.Spool, error) {
	return r.spools[id], nil
}
func (r *memSpoolRepo) FindByRFID(_ context.Context, rfidTag string) (*spool.Spool, error) {
	for _, s := range r.spools {
		if s.RFIDTag != nil && *s.RFIDTag == rfidTag {
			return s, nil
		}
	}
	return nil, nil
}
func (r *memSpoolRepo) FindActiveBySlot(_ context.Context, printerID int64, slotNumber int) (*spool.Spool, error) {
	for _, s := range r.spools {
		if s.Status == spool.StatusActive && s.PrinterID != nil && *s.PrinterID == printerID &&
			s.SlotNumber != nil && *s.SlotNumber == slotNumber {
			return s, nil
		}
	}
	return nil, nil
}
func (r *memSpoolRepo) List(_ context.Context) ([]*spool.Spool, error) {
	var out []*spool.Spool
	for _, s := range r.spools {
		out = append(out, s)
	}
	return out, nil
}
func (r *memSpoolRepo) CreateUsage(_ context.Context, u *spool.Usage) error {
	r.usages = append(r.usages, u)
	return nil
}
func (r *memSpoolRepo) UsagesBySpool(_ context.Context, spoolID int64) ([]*spool.Usage, error) {
	var out []*spool.Usage
	for _, u := range r.usages {
		if u.SpoolID == spoolID {
			out = append(out, u)
		}
	}
	return out, nil
}
func (r *memSpoolRepo) LibraryByID(_ context.Context, id int64) (*spool.FilamentLibrary, error) {
	return r.library[id], nil
}
func (r *memSpoolRepo) LibraryByMaterialHex(_ context.Context, material, hex string) (*spool.FilamentLibrary, error) {
	for _, l := range r.library {
		if strings.EqualFold(l.Material, material) && strings.EqualFold(l.ColorHex, hex) {
			return l, nil
		}
	}
	return nil, nil
}
func (r *memSpoolRepo) LibraryByHex(_ context.Context, hex string) (*spool.FilamentLibrary, error) {
	for _, l := range r.library {
		if strings.EqualFold(l.ColorHex, hex) {
			return l, nil
		}
	}
	return nil, nil
}
func (r *memSpoolRepo) ListLibrary(_ context.Context) ([]*spool.FilamentLibrary, error) {
	var out []*spool.FilamentLibrary
	for _, l := range r.library {
		out = append(out, l)
	}
	return out, nil
}

type memModelRepo struct {
	models map[int64]*model.Model
}

func (r *memModelRepo) Create(_ context.Context, _ *model.Model) error { return nil }
func (r *memModelRepo) Update(_ context.Context, _ *model.Model) error { return nil }
func (r *memModelRepo) FindByID(_ context.Context, id int64) (*model.Model, error) {
	return r.models[id], nil
}
func (r *memModelRepo) List(_ context.Context) ([]*model.Model, error) { return nil, nil }
func (r *memModelRepo) Delete(_ context.Context, _ int64) error        { return nil }

type memArtifactRepo struct {
	artifacts map[int64]*artifact.PrintArtifact
}

func (r *memArtifactRepo) Create(_ context.Context, _ *artifact.PrintArtifact) error { return nil }
func (r *memArtifactRepo) FindByID(_ context.Context, id int64) (*artifact.PrintArtifact, error) {
	a, ok := r.artifacts[id]
	if !ok {
		return nil, shared.NewNotFoundError("artifact", id)
	}
	return a, nil
}
func (r *memArtifactRepo) FindByContentHash(_ context.Context, _ string) (*artifact.PrintArtifact, error) {
	return nil, nil
}
func (r *memArtifactRepo) List(_ context.Context) ([]*artifact.PrintArtifact, error) {
	return nil, nil
}

type memPrintRecordRepo struct {
	records []*printrecord.PrintRecord
}

func (r *memPrintRecordRepo) Create(_ context.Context, rec *printrecord.PrintRecord) error {
	r.records = append(r.records, rec)
	return nil
}
func (r *memPrintRecordRepo) Update(_ context.Context, _ *printrecord.PrintRecord) error { return nil }
func (r *memPrintRecordRepo) FindByID(_ context.Context, id int64) (*printrecord.PrintRecord, error) {
	return nil, shared.NewNotFoundError("print_record", id)
}
func (r *memPrintRecordRepo) FindInFlightByPrinterAndFilename(_ context.Context, _ int64, _ string) (*printrecord.PrintRecord, error) {
	return nil, nil
}
func (r *memPrintRecordRepo) FindSoleInFlightByPrinter(_ context.Context, _ int64) (*printrecord.PrintRecord, error) {
	return nil, nil
}

// flakyAdapter fails a configurable number of uploads before succeeding.
type flakyAdapter struct {
	uploadFailures int
	uploadCalls    int
	startCalls     int
}

func (a *flakyAdapter) Connect(_ context.Context, _ chan<- adapter.StatusFrame) error { return nil }
func (a *flakyAdapter) Disconnect(_ context.Context) error                            { return nil }
func (a *flakyAdapter) Upload(_ context.Context, _ []byte, _ string) error {
	a.uploadCalls++
	if a.uploadCalls <= a.uploadFailures {
		return shared.NewTransportError("timed_out", "upload stalled")
	}
	return nil
}
func (a *flakyAdapter) StartPrint(_ context.Context, _ adapter.StartOptions) error {
	a.startCalls++
	return nil
}
func (a *flakyAdapter) Pause(_ context.Context) error                   { return nil }
func (a *flakyAdapter) Resume(_ context.Context) error                  { return nil }
func (a *flakyAdapter) Stop(_ context.Context) error                    { return nil }
func (a *flakyAdapter) SetFanSpeed(_ context.Context, _ int) error      { return nil }
func (a *flakyAdapter) SetLights(_ context.Context, _ bool) error       { return nil }
func (a *flakyAdapter) SkipObjects(_ context.Context, _ []string) error { return nil }
func (a *flakyAdapter) TestConnection(_ context.Context) error          { return nil }

type staticAdapterSource struct {
	adapters map[int64]adapter.Printer
}

func (s *staticAdapterSource) Adapter(printerID int64) (adapter.Printer, bool) {
	a, ok := s.adapters[printerID]
	return a, ok
}

// recordingAudit counts audit entries by action name.
type recordingAudit struct {
	entries []*audit.Entry
}

func (r *recordingAudit) LogAudit(_ context.Context, action, entityKind, entityID, actor, sourceIP string, detail map[string]interface{}) error {
	r.entries = append(r.entries, &audit.Entry{
		Action: action, EntityKind: entityKind, EntityID: entityID,
		Actor: actor, SourceIP: sourceIP, Detail: detail,
	})
	return nil
}

func (r *recordingAudit) countByAction(action string) int {
	n := 0
	for _, e := range r.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}
