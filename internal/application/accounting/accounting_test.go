package accounting_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type fakeSpoolRepo struct {
	spools  map[int64]*spool.Spool
	usages  []*spool.Usage
	library map[int64]*spool.FilamentLibrary
	nextID  int64
}

func newFakeSpoolRepo() *fakeSpoolRepo {
	return &fakeSpoolRepo{
		spools:  make(map[int64]*spool.Spool),
		library: make(map[int64]*spool.FilamentLibrary),
		nextID:  1,
	}
}

func (r *fakeSpoolRepo) Create(_ context.Context, s *spool.Spool) error {
	s.ID = r.nextID
	r.nextID++
	r.spools[s.ID] = s
	return nil
}

func (r *fakeSpoolRepo) Update(_ context.Context, s *spool.Spool) error {
	r.spools[s.ID] = s
	return nil
}

func (r *fakeSpoolRepo) FindByID(_ context.Context, id int64) (*spool.Spool, error) {
	return r.spools[id], nil
}

func (r *fakeSpoolRepo) FindByRFID(_ context.Context, rfidTag string) (*spool.Spool, error) {
	for _, s := range r.spools {
		if s.RFIDTag != nil && *s.RFIDTag == rfidTag {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSpoolRepo) FindActiveBySlot(_ context.Context, printerID int64, slotNumber int) (*spool.Spool, error) {
	for _, s := range r.spools {
		if s.Status == spool.StatusActive && s.PrinterID != nil && *s.PrinterID == printerID &&
			s.SlotNumber != nil && *s.SlotNumber == slotNumber {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSpoolRepo) List(_ context.Context) ([]*spool.Spool, error) {
	var out []*spool.Spool
	for _, s := range r.spools {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeSpoolRepo) CreateUsage(_ context.Context, u *spool.Usage) error {
	r.usages = append(r.usages, u)
	return nil
}

func (r *fakeSpoolRepo) UsagesBySpool(_ context.Context, spoolID int64) ([]*spool.Usage, error) {
	var out []*spool.Usage
	for _, u := range r.usages {
		if u.SpoolID == spoolID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeSpoolRepo) LibraryByID(_ context.Context, id int64) (*spool.FilamentLibrary, error) {
	return r.library[id], nil
}

func (r *fakeSpoolRepo) LibraryByMaterialHex(_ context.Context, material, hex string) (*spool.FilamentLibrary, error) {
	for _, l := range r.library {
		if strings.EqualFold(l.Material, material) && strings.EqualFold(l.ColorHex, hex) {
			return l, nil
		}
	}
	return nil, nil
}

func (r *fakeSpoolRepo) LibraryByHex(_ context.Context, hex string) (*spool.FilamentLibrary, error) {
	for _, l := range r.library {
		if strings.EqualFold(l.ColorHex, hex) {
			return l, nil
		}
	}
	return nil, nil
}

func (r *fakeSpoolRepo) ListLibrary(_ context.Context) ([]*spool.FilamentLibrary, error) {
	var out []*spool.FilamentLibrary
	for _, l := range r.library {
		out = append(out, l)
	}
	return out, nil
}

type fakeSlotRepo struct {
	slots map[int64]map[int]*printer.FilamentSlot
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{slots: make(map[int64]map[int]*printer.FilamentSlot)}
}

func (r *fakeSlotRepo) addSlot(printerID int64, slotNumber int) *printer.FilamentSlot {
	if r.slots[printerID] == nil {
		r.slots[printerID] = make(map[int]*printer.FilamentSlot)
	}
	s := &printer.FilamentSlot{PrinterID: printerID, SlotNumber: slotNumber}
	r.slots[printerID][slotNumber] = s
	return s
}

func (r *fakeSlotRepo) Create(_ context.Context, _ *printer.Printer) error { return nil }
func (r *fakeSlotRepo) Update(_ context.Context, _ *printer.Printer) error { return nil }
func (r *fakeSlotRepo) FindByID(_ context.Context, id int64) (*printer.Printer, error) {
	return nil, shared.NewNotFoundError("printer", id)
}
func (r *fakeSlotRepo) FindByName(_ context.Context, name string) (*printer.Printer, error) {
	return nil, shared.NewNotFoundError("printer", name)
}
func (r *fakeSlotRepo) ListActive(_ context.Context) ([]*printer.Printer, error) { return nil, nil }
func (r *fakeSlotRepo) List(_ context.Context) ([]*printer.Printer, error)       { return nil, nil }
func (r *fakeSlotRepo) Delete(_ context.Context, _ int64) error                  { return nil }

func (r *fakeSlotRepo) Slots(_ context.Context, printerID int64) ([]*printer.FilamentSlot, error) {
	var out []*printer.FilamentSlot
	for _, s := range r.slots[printerID] {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeSlotRepo) UpsertSlot(_ context.Context, slot *printer.FilamentSlot) error {
	if r.slots[slot.PrinterID] == nil {
		r.slots[slot.PrinterID] = make(map[int]*printer.FilamentSlot)
	}
	r.slots[slot.PrinterID][slot.SlotNumber] = slot
	return nil
}

func (r *fakeSlotRepo) SlotByNumber(_ context.Context, printerID int64, slotNumber int) (*printer.FilamentSlot, error) {
	s, ok := r.slots[printerID][slotNumber]
	if !ok {
		return nil, shared.NewNotFoundError("filament_slot", slotNumber)
	}
	return s, nil
}

type fakeModelRepo struct {
	models map[int64]*model.Model
}

func (r *fakeModelRepo) Create(_ context.Context, _ *model.Model) error { return nil }
func (r *fakeModelRepo) Update(_ context.Context, _ *model.Model) error { return nil }
func (r *fakeModelRepo) FindByID(_ context.Context, id int64) (*model.Model, error) {
	return r.models[id], nil
}
func (r *fakeModelRepo) List(_ context.Context) ([]*model.Model, error) { return nil, nil }
func (r *fakeModelRepo) Delete(_ context.Context, _ int64) error        { return nil }

type fakeArtifactRepo struct {
	artifacts map[int64]*artifact.PrintArtifact
}

func (r *fakeArtifactRepo) Create(_ context.Context, _ *artifact.PrintArtifact) error { return nil }
func (r *fakeArtifactRepo) FindByID(_ context.Context, id int64) (*artifact.PrintArtifact, error) {
	return r.artifacts[id], nil
}
func (r *fakeArtifactRepo) FindByContentHash(_ context.Context, _ string) (*artifact.PrintArtifact, error) {
	return nil, nil
}
func (r *fakeArtifactRepo) List(_ context.Context) ([]*artifact.PrintArtifact, error) {
	return nil, nil
}

type fixedIDs struct{ qr string }

func (f fixedIDs) NewQRCode() string { return f.qr }

type fixture struct {
	spools *fakeSpoolRepo
	slots  *fakeSlotRepo
	models *fakeModelRepo
	arts   *fakeArtifactRepo
	bus    *eventbus.Bus
	clock  *shared.MockClock
}

func newFixture(t *testing.T) (*accounting.Accounting, *fixture) {
	t.Helper()
	fx := &fixture{
		spools: newFakeSpoolRepo(),
		slots:  newFakeSlotRepo(),
		models: &fakeModelRepo{models: make(map[int64]*model.Model)},
		arts:   &fakeArtifactRepo{artifacts: make(map[int64]*artifact.PrintArtifact)},
		bus:    eventbus.New(),
		clock:  shared.NewMockClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)),
	}
	a := accounting.New(fx.spools, fx.slots, fx.models, fx.arts, fx.bus, nil, fixedIDs{qr: "SPL-a1b2c3d4"}, nil, fx.clock)
	return a, fx
}

func strptr(s string) *string    { return &s }
func f64ptr(f float64) *float64  { return &f }
func i64ptr(i int64) *int64      { return &i }

func activeSpoolAt(fx *fixture, printerID int64, slotNumber int, remaining float64) *spool.Spool {
	s, _ := spool.New(1, remaining, fx.clock)
	s.InitialGrams = 1000
	s.RemainingGrams = remaining
	s.BindToSlot(printerID, slotNumber, fx.clock)
	_ = fx.spools.Create(context.Background(), s)
	return s
}

func completedJob(fx *fixture, id, printerID int64) *job.Job {
	started := fx.clock.Now().Add(-time.Hour)
	ended := fx.clock.Now()
	return &job.Job{
		ID: id, ItemName: "part", Priority: 3, Status: job.StatusCompleted,
		PrinterID: &printerID, ActualStart: &started, ActualEnd: &ended, IsLocked: true,
	}
}

func TestOnJobCompleted_DeductsFromModelRequirements(t *testing.T) {
	a, fx := newFixture(t)
	sp := activeSpoolAt(fx, 1, 1, 500)
	fx.models.models[7] = &model.Model{
		ID: 7, DisplayName: "Clip",
		ColorRequirements: map[int]model.ColorRequirement{1: {Color: "Red", Grams: 42.5}},
	}
	j := completedJob(fx, 100, 1)
	j.ModelID = i64ptr(7)

	require.NoError(t, a.OnJobCompleted(context.Background(), j, nil))

	assert.InDelta(t, 457.5, sp.RemainingGrams, 0.001)
	require.Len(t, fx.spools.usages, 1)
	assert.Equal(t, sp.ID, fx.spools.usages[0].SpoolID)
	assert.Equal(t, int64(100), fx.spools.usages[0].JobID)
	assert.InDelta(t, 42.5, fx.spools.usages[0].Grams, 0.001)
}

func TestOnJobCompleted_FallsBackToArtifactGrams(t *testing.T) {
	a, fx := newFixture(t)
	sp := activeSpoolAt(fx, 1, 2, 300)
	fx.arts.artifacts[9] = &artifact.PrintArtifact{
		ID: 9,
		PerSlotFilament: map[int]artifact.FilamentUse{
			2: {Material: "PLA", ColorHex: "#0000FF", UsedGrams: 25},
		},
	}
	j := completedJob(fx, 101, 1)
	j.ArtifactID = i64ptr(9)

	require.NoError(t, a.OnJobCompleted(context.Background(), j, nil))

	assert.InDelta(t, 275, sp.RemainingGrams, 0.001)
	require.Len(t, fx.spools.usages, 1)
}

func TestOnJobCompleted_NoConsumptionDataDeductsNothing(t *testing.T) {
	a, fx := newFixture(t)
	sp := activeSpoolAt(fx, 1, 1, 500)
	j := completedJob(fx, 102, 1)

	require.NoError(t, a.OnJobCompleted(context.Background(), j, nil))

	assert.InDelta(t, 500, sp.RemainingGrams, 0.001)
	assert.Empty(t, fx.spools.usages)
	assert.Contains(t, j.Notes, "nothing deducted")
}

func TestOnJobCompleted_SpoolLowEmittedExactlyOncePerCrossing(t *testing.T) {
	a, fx := newFixture(t)
	sp := activeSpoolAt(fx, 1, 1, 110)
	ch := fx.bus.SubscribeInventorySpoolLow(sp.ID)
	defer fx.bus.UnsubscribeInventorySpoolLow(sp.ID, ch)

	fx.models.models[7] = &model.Model{
		ID:                7,
		DisplayName:       "Clip",
		ColorRequirements: map[int]model.ColorRequirement{1: {Color: "Red", Grams: 20}},
	}
	first := completedJob(fx, 100, 1)
	first.ModelID = i64ptr(7)
	second := completedJob(fx, 101, 1)
	second.ModelID = i64ptr(7)

	require.NoError(t, a.OnJobCompleted(context.Background(), first, nil))
	require.NoError(t, a.OnJobCompleted(context.Background(), second, nil))

	assert.InDelta(t, 70, sp.RemainingGrams, 0.001)
	assert.Len(t, ch, 1)
}

func TestOnJobCompleted_SpoolEmptyMarksStatusAndPublishes(t *testing.T) {
	a, fx := newFixture(t)
	sp := activeSpoolAt(fx, 1, 1, 15)
	ch := fx.bus.SubscribeInventorySpoolEmpty(sp.ID)
	defer fx.bus.UnsubscribeInventorySpoolEmpty(sp.ID, ch)

	fx.models.models[7] = &model.Model{
		ID:                7,
		DisplayName:       "Clip",
		ColorRequirements: map[int]model.ColorRequirement{1: {Color: "Red", Grams: 40}},
	}
	j := completedJob(fx, 100, 1)
	j.ModelID = i64ptr(7)

	require.NoError(t, a.OnJobCompleted(context.Background(), j, nil))

	assert.Equal(t, 0.0, sp.RemainingGrams)
	assert.Equal(t, spool.StatusEmpty, sp.Status)
	assert.Len(t, ch, 1)
}

func TestReconcileSlot_RFIDAutoAdoption(t *testing.T) {
	a, fx := newFixture(t)
	slot := fx.slots.addSlot(1, 2)

	err := a.ReconcileSlot(context.Background(), 1, adapter.LoadedSlot{
		SlotNumber:   2,
		Material:     strptr("PLA"),
		ColorHex:     strptr("#FF0000"),
		RemainingPct: f64ptr(80),
		RFIDTag:      strptr("TAG-ABC"),
	})
	require.NoError(t, err)

	sp, err := fx.spools.FindByRFID(context.Background(), "TAG-ABC")
	require.NoError(t, err)
	require.NotNil(t, sp)
	assert.Equal(t, "SPL-a1b2c3d4", *sp.QRCode)
	assert.InDelta(t, 800, sp.RemainingGrams, 0.001)
	require.NotNil(t, sp.PrinterID)
	assert.Equal(t, int64(1), *sp.PrinterID)
	assert.Equal(t, 2, *sp.SlotNumber)

	require.NotNil(t, slot.AssignedSpoolID)
	assert.Equal(t, sp.ID, *slot.AssignedSpoolID)
	assert.True(t, slot.SpoolConfirmed)
}

func TestReconcileSlot_RFIDRebindIsIdempotent(t *testing.T) {
	a, fx := newFixture(t)
	fx.slots.addSlot(1, 2)
	frame := adapter.LoadedSlot{
		SlotNumber:   2,
		Material:     strptr("PLA"),
		ColorHex:     strptr("#FF0000"),
		RemainingPct: f64ptr(80),
		RFIDTag:      strptr("TAG-ABC"),
	}

	require.NoError(t, a.ReconcileSlot(context.Background(), 1, frame))
	firstCount := len(fx.spools.spools)
	sp, _ := fx.spools.FindByRFID(context.Background(), "TAG-ABC")
	firstRemaining := sp.RemainingGrams

	require.NoError(t, a.ReconcileSlot(context.Background(), 1, frame))

	assert.Equal(t, firstCount, len(fx.spools.spools), "second pass must not create another spool")
	sp, _ = fx.spools.FindByRFID(context.Background(), "TAG-ABC")
	assert.Equal(t, firstRemaining, sp.RemainingGrams)
	slot, _ := fx.slots.SlotByNumber(context.Background(), 1, 2)
	assert.True(t, slot.SpoolConfirmed)
}

func TestReconcileSlot_LibraryMatchLeavesBindingUnconfirmed(t *testing.T) {
	a, fx := newFixture(t)
	slot := fx.slots.addSlot(1, 1)
	fx.spools.library[1] = &spool.FilamentLibrary{
		ID: 1, Brand: "Prusament", ProductName: "Galaxy Black", Material: "PLA", ColorHex: "#1A1A1A",
	}

	err := a.ReconcileSlot(context.Background(), 1, adapter.LoadedSlot{
		SlotNumber: 1,
		Material:   strptr("PLA"),
		ColorHex:   strptr("#1A1A1A"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Galaxy Black", slot.ColorLabel)
	assert.Equal(t, "PLA", slot.Material)
	assert.False(t, slot.SpoolConfirmed)
}

func TestReconcileSlot_FallbackDecoderNamesRawHex(t *testing.T) {
	a, fx := newFixture(t)
	slot := fx.slots.addSlot(1, 1)

	err := a.ReconcileSlot(context.Background(), 1, adapter.LoadedSlot{
		SlotNumber: 1,
		Material:   strptr("PETG"),
		ColorHex:   strptr("#FE0402"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Red", slot.ColorLabel)
	assert.Equal(t, "#fe0402", slot.ColorHex)
	assert.Equal(t, "PETG", slot.Material)
}

func TestReconcileSlot_DriftClearsConfirmation(t *testing.T) {
	a, fx := newFixture(t)
	fx.spools.library[1] = &spool.FilamentLibrary{
		ID: 1, Brand: "Generic", ProductName: "True Red", Material: "PLA", ColorHex: "#FF0000",
	}
	sp := activeSpoolAt(fx, 1, 1, 800)
	slot := fx.slots.addSlot(1, 1)
	slot.Bind(sp.ID, true, fx.clock)

	// Reported green is far beyond the drift threshold from the library red.
	err := a.ReconcileSlot(context.Background(), 1, adapter.LoadedSlot{
		SlotNumber: 1,
		Material:   strptr("PLA"),
		ColorHex:   strptr("#00FF00"),
	})
	require.NoError(t, err)

	assert.False(t, slot.SpoolConfirmed)
}

func TestReconcileSlot_NoDriftKeepsConfirmation(t *testing.T) {
	a, fx := newFixture(t)
	fx.spools.library[1] = &spool.FilamentLibrary{
		ID: 1, Brand: "Generic", ProductName: "True Red", Material: "PLA", ColorHex: "#FF0000",
	}
	sp := activeSpoolAt(fx, 1, 1, 800)
	slot := fx.slots.addSlot(1, 1)
	slot.Bind(sp.ID, true, fx.clock)

	// A nearby red is within the threshold; confirmation survives even
	// though the fallback decoder step re-applies display attributes.
	err := a.ReconcileSlot(context.Background(), 1, adapter.LoadedSlot{
		SlotNumber: 1,
		Material:   strptr("ABS"),
		ColorHex:   strptr("#F80402"),
	})
	require.NoError(t, err)

	assert.True(t, slot.SpoolConfirmed)
}
