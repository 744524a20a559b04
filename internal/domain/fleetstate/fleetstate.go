// Package fleetstate holds the in-memory Fleet State (component E):
// one Snapshot per printer, written only by the owning session worker
// and read by value so callers never see a pointer into live state.
package fleetstate

import (
	"sync"
	"time"

	"github.com/printfleet/printfleet/internal/domain/adapter"
)

// CurrentPrint summarizes the in-flight job on a printer, if any.
type CurrentPrint struct {
	JobID        int64
	Filename     string
	ProgressPct  *float64
	RemainingMin *int
	CurrentLayer *int
	TotalLayers  *int
}

// DefaultOnlineWindow is how recently a StatusFrame must have arrived for
// a printer to count as online. Liveness is derived from it at read time,
// never stored.
const DefaultOnlineWindow = 90 * time.Second

// Snapshot is an immutable, point-in-time view of one printer's state.
type Snapshot struct {
	PrinterID    int64
	IsOnline     bool
	IsPrinting   bool
	LastFrame    *adapter.StatusFrame
	CurrentPrint *CurrentPrint
	UpdatedAt    time.Time
}

// OnlineAt derives liveness: the stored flag says a transport is bound,
// but a printer only counts as online when its last frame also arrived
// within window of now. window <= 0 means DefaultOnlineWindow.
func (s Snapshot) OnlineAt(now time.Time, window time.Duration) bool {
	if window <= 0 {
		window = DefaultOnlineWindow
	}
	return s.IsOnline && now.Sub(s.UpdatedAt) < window
}

// Store is the single process-wide Fleet State table. One session worker
// per printer is the sole writer for its key; any number of readers may
// call Get concurrently.
type Store struct {
	mu        sync.RWMutex
	snapshots map[int64]Snapshot
}

// New constructs an empty Store.
func New() *Store {
	return &Store{snapshots: make(map[int64]Snapshot)}
}

// Set replaces the snapshot for printerID. Only the owning session worker
// for that printer should call Set.
func (s *Store) Set(printerID int64, snap Snapshot) {
	snap.PrinterID = printerID
	s.mu.Lock()
	s.snapshots[printerID] = snap
	s.mu.Unlock()
}

// Get returns a copy of the current snapshot for printerID and whether one
// exists yet.
func (s *Store) Get(printerID int64) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[printerID]
	return snap, ok
}

// All returns a copy of every current snapshot, keyed by printer id.
func (s *Store) All() map[int64]Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]Snapshot, len(s.snapshots))
	for k, v := range s.snapshots {
		out[k] = v
	}
	return out
}

// MarkOffline flips a printer's snapshot to offline without discarding the
// last known frame, used when a session worker loses its transport.
func (s *Store) MarkOffline(printerID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshots[printerID]
	snap.PrinterID = printerID
	snap.IsOnline = false
	snap.IsPrinting = false
	snap.CurrentPrint = nil
	snap.UpdatedAt = at
	s.snapshots[printerID] = snap
}

// Delete removes a printer's snapshot entirely, used when a printer is
// deactivated or deleted.
func (s *Store) Delete(printerID int64) {
	s.mu.Lock()
	delete(s.snapshots, printerID)
	s.mu.Unlock()
}
