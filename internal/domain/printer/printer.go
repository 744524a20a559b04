// Package printer holds the Printer and FilamentSlot entities: the
// addressable hardware a Session Manager supervises and a Scheduler assigns
// Jobs to.
package printer

import (
	"fmt"
	"time"

	"github.com/printfleet/printfleet/internal/domain/shared"
)

// Kind identifies the vendor transport family a Printer speaks.
type Kind string

const (
	KindMessageBus    Kind = "MESSAGE_BUS"
	KindHTTPPoll      Kind = "HTTP_POLL"
	KindFileSession   Kind = "FILE_SESSION"
)

// MinSlots and MaxSlots bound the number of FilamentSlots a Printer carries.
const (
	MinSlots = 1
	MaxSlots = 16
)

// Printer is a single piece of networked hardware under fleet control.
// Credentials are held decrypted only transiently, in memory, for the
// duration of an Adapter call; the State Store persists them sealed via
// internal/infrastructure/crypto.
type Printer struct {
	ID               int64
	Name             string
	Kind             Kind
	Host             string
	CredentialsBlob  string // ciphertext; Sealer.Open yields "serial|access_code" or vendor-specific payload
	ModelFamily      string
	SlotCount        int
	Active           bool
	LifetimePrintSec int64
	PrintCount       int
	HoursSinceServ   float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// New constructs a Printer, validating slot-count bounds.
func New(name string, kind Kind, host string, slotCount int, clock shared.Clock) (*Printer, error) {
	if name == "" {
		return nil, shared.NewValidationError("name", "must not be empty")
	}
	if slotCount < MinSlots || slotCount > MaxSlots {
		return nil, shared.NewValidationError("slot_count", fmt.Sprintf("must be between %d and %d", MinSlots, MaxSlots))
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	now := clock.Now()
	return &Printer{
		Name:      name,
		Kind:      kind,
		Host:      host,
		SlotCount: slotCount,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RecordCompletedPrint advances the lifetime counters after a Job completes
// on this Printer.
func (p *Printer) RecordCompletedPrint(durationSec int64, clock shared.Clock) {
	p.LifetimePrintSec += durationSec
	p.PrintCount++
	p.HoursSinceServ += float64(durationSec) / 3600.0
	p.UpdatedAt = clock.Now()
}

// Deactivate marks the Printer inactive; callers must first confirm no
// non-terminal Job references it, since an inactive Printer can never be
// scheduled.
func (p *Printer) Deactivate(clock shared.Clock) {
	p.Active = false
	p.UpdatedAt = clock.Now()
}

func (p *Printer) Activate(clock shared.Clock) {
	p.Active = true
	p.UpdatedAt = clock.Now()
}

// FilamentSlot is one AMS/feeder channel bound to exactly one Printer.
type FilamentSlot struct {
	ID               int64
	PrinterID        int64
	SlotNumber       int // 1..printer.SlotCount
	Material         string
	ColorLabel       string
	ColorHex         string
	AssignedSpoolID  *int64
	SpoolConfirmed   bool
	UpdatedAt        time.Time
}

// ValidateSlotNumber enforces the 1 ≤ slot_number ≤ printer.slot_count
// invariant.
func ValidateSlotNumber(slotNumber, printerSlotCount int) error {
	if slotNumber < 1 || slotNumber > printerSlotCount {
		return shared.NewValidationError("slot_number", fmt.Sprintf("must be between 1 and %d", printerSlotCount))
	}
	return nil
}

// Bind attaches a Spool to this slot, marking confirmation state.
func (s *FilamentSlot) Bind(spoolID int64, confirmed bool, clock shared.Clock) {
	s.AssignedSpoolID = &spoolID
	s.SpoolConfirmed = confirmed
	s.UpdatedAt = clock.Now()
}

// Unbind clears any spool assignment, e.g. when a spool is removed from the printer.
func (s *FilamentSlot) Unbind(clock shared.Clock) {
	s.AssignedSpoolID = nil
	s.SpoolConfirmed = false
	s.UpdatedAt = clock.Now()
}

// ClearConfirmation drops confirmed status without unbinding — used by
// drift detection when the reported hex no longer matches the bound spool.
func (s *FilamentSlot) ClearConfirmation(clock shared.Clock) {
	s.SpoolConfirmed = false
	s.UpdatedAt = clock.Now()
}
