// Package spool holds Spool, FilamentLibrary and SpoolUsage: the
// authoritative record of tracked physical filament and its consumption.
package spool

import (
	"time"

	"github.com/printfleet/printfleet/internal/domain/shared"
)

// Status is the lifecycle state of a tracked Spool.
type Status string

const (
	StatusActive   Status = "active"
	StatusEmpty    Status = "empty"
	StatusArchived Status = "archived"
)

// LowStockThresholdGrams is the default remaining-grams level below which
// inventory.spool_low is published.
const LowStockThresholdGrams = 100.0

// Spool is a tracked physical filament spool.
type Spool struct {
	ID                int64
	LibraryID         int64
	InitialGrams      float64
	RemainingGrams    float64
	EmptySpoolGrams   float64
	RFIDTag           *string
	QRCode            *string
	Status            Status

	// Location is exactly one of: printer+slot binding, a storage location
	// string, or unassigned. PrinterID/SlotNumber are both nonzero together
	// when bound to a printer slot.
	PrinterID       *int64
	SlotNumber      *int
	StorageLocation *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New constructs a Spool with remaining = initial, status active, and no
// location (unassigned).
func New(libraryID int64, initialGrams float64, clock shared.Clock) (*Spool, error) {
	if initialGrams < 0 {
		return nil, shared.NewValidationError("initial_grams", "must be non-negative")
	}
	now := clock.Now()
	return &Spool{
		LibraryID:      libraryID,
		InitialGrams:   initialGrams,
		RemainingGrams: initialGrams,
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// BindToSlot places the spool on a printer slot, clearing any storage
// location (location is exactly one of printer-slot / storage / unassigned).
func (s *Spool) BindToSlot(printerID int64, slotNumber int, clock shared.Clock) {
	s.PrinterID = &printerID
	s.SlotNumber = &slotNumber
	s.StorageLocation = nil
	s.UpdatedAt = clock.Now()
}

// MoveToStorage clears any printer binding and sets a storage location.
func (s *Spool) MoveToStorage(location string, clock shared.Clock) {
	s.PrinterID = nil
	s.SlotNumber = nil
	s.StorageLocation = &location
	s.UpdatedAt = clock.Now()
}

// Unassign clears both printer binding and storage location.
func (s *Spool) Unassign(clock shared.Clock) {
	s.PrinterID = nil
	s.SlotNumber = nil
	s.StorageLocation = nil
	s.UpdatedAt = clock.Now()
}

// DeductResult reports the outcome of a Deduct call, used by the filament
// accounting engine to decide which inventory events to publish.
type DeductResult struct {
	CrossedLowThreshold bool
	ReachedEmpty        bool
	Deducted            float64
}

// Deduct decrements RemainingGrams by grams (floored at 0), updating
// status to empty when it reaches zero, and reports whether the low-stock
// threshold was crossed by this specific call so the caller publishes
// inventory.spool_low exactly once per crossing.
func (s *Spool) Deduct(grams float64, clock shared.Clock) DeductResult {
	before := s.RemainingGrams
	after := before - grams
	if after < 0 {
		after = 0
	}
	s.RemainingGrams = after
	s.UpdatedAt = clock.Now()

	result := DeductResult{Deducted: before - after}
	if before >= LowStockThresholdGrams && after < LowStockThresholdGrams {
		result.CrossedLowThreshold = true
	}
	if after == 0 && s.Status != StatusEmpty {
		s.Status = StatusEmpty
		result.ReachedEmpty = true
	}
	return result
}

// UpdateRemainingFromPercent sets RemainingGrams from a hardware-reported
// remaining percentage during AMS reconciliation.
func (s *Spool) UpdateRemainingFromPercent(remainingPct float64, clock shared.Clock) {
	s.RemainingGrams = s.InitialGrams * (remainingPct / 100.0)
	s.UpdatedAt = clock.Now()
}

// FilamentLibrary is a catalog entry describing a filament product.
type FilamentLibrary struct {
	ID          int64
	Brand       string
	ProductName string
	Material    string
	ColorHex    string
	CostPerGram float64
}

// Usage is the append-only ledger row written on every deduction.
type Usage struct {
	ID        int64
	SpoolID   int64
	JobID     int64
	Grams     float64
	Notes     string
	CreatedAt time.Time
}

// NewUsage records a deduction against a spool for a job.
func NewUsage(spoolID, jobID int64, grams float64, notes string, clock shared.Clock) *Usage {
	return &Usage{
		SpoolID:   spoolID,
		JobID:     jobID,
		Grams:     grams,
		Notes:     notes,
		CreatedAt: clock.Now(),
	}
}
