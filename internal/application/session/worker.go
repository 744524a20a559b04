// Package session implements the per-printer session layer: one
// goroutine-per-printer supervisor owning exactly one ProtocolAdapter
// instance, with reconnect backoff and a liveness watchdog.
package session

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/printfleet/printfleet/internal/domain/shared"
)

// Status is the lifecycle state of a session Worker.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusRunning      Status = "RUNNING"
	StatusReconnecting Status = "RECONNECTING"
	StatusBackoff      Status = "BACKOFF"
	StatusCompleted    Status = "COMPLETED"
	StatusFailed       Status = "FAILED"
	StatusStopped      Status = "STOPPED"
)

// BackoffBase, BackoffCap and BackoffJitter parameterize the session's
// exponential reconnect backoff: base 1s, cap 60s, 20% jitter. Unlike the
// Dispatcher's fixed upload-retry schedule, the session never gives up
// while the Printer remains active — the backoff only spaces out attempts,
// it never exhausts them.
const (
	BackoffBase   = 1 * time.Second
	BackoffCap    = 60 * time.Second
	BackoffJitter = 0.20
)

// NextBackoff computes the delay before reconnect attempt number attempt
// (0-indexed): base doubled per attempt, capped, then jittered by ±20%.
func NextBackoff(attempt int) time.Duration {
	delay := BackoffBase
	if attempt > 0 {
		shift := attempt
		if shift > 6 { // 1s<<6 == 64s already exceeds the 60s cap
			shift = 6
		}
		delay = BackoffBase << uint(shift)
	}
	if delay > BackoffCap {
		delay = BackoffCap
	}
	jitterWindow := time.Duration(float64(delay) * BackoffJitter)
	if jitterWindow <= 0 {
		return delay
	}
	offset := time.Duration(rand.Int63n(int64(2*jitterWindow+1))) - jitterWindow
	d := delay + offset
	if d < 0 {
		d = 0
	}
	return d
}

// Worker tracks the lifecycle of one printer's session. It owns no
// transport state itself — internal/adapters/protocol implementations and
// the Supervisor's run loop hold that — it is purely the state machine
// that decides whether the run loop should be connected, backing off, or
// torn down.
type Worker struct {
	printerID int64

	lifecycle *shared.LifecycleStateMachine

	reconnecting bool
	backoffUntil *time.Time

	reconnectCount int

	clock shared.Clock
}

// NewWorker creates a Worker for printerID in the Pending state. If clock
// is nil, shared.NewRealClock() is used.
func NewWorker(printerID int64, clock shared.Clock) *Worker {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Worker{
		printerID: printerID,
		lifecycle: shared.NewLifecycleStateMachine(clock),
		clock:     clock,
	}
}

func (w *Worker) PrinterID() int64        { return w.printerID }
func (w *Worker) ReconnectCount() int      { return w.reconnectCount }
func (w *Worker) CreatedAt() time.Time     { return w.lifecycle.CreatedAt() }
func (w *Worker) UpdatedAt() time.Time     { return w.lifecycle.UpdatedAt() }
func (w *Worker) StartedAt() *time.Time    { return w.lifecycle.StartedAt() }
func (w *Worker) StoppedAt() *time.Time    { return w.lifecycle.StoppedAt() }
func (w *Worker) LastError() error         { return w.lifecycle.LastError() }
func (w *Worker) RuntimeDuration() time.Duration { return w.lifecycle.RuntimeDuration() }

// Status maps the underlying lifecycle status plus the session-specific
// Reconnecting/Backoff sub-states onto the Worker's reported status.
func (w *Worker) Status() Status {
	if w.backoffUntil != nil {
		return StatusBackoff
	}
	if w.reconnecting {
		return StatusReconnecting
	}
	switch w.lifecycle.Status() {
	case shared.LifecycleStatusPending:
		return StatusPending
	case shared.LifecycleStatusRunning:
		return StatusRunning
	case shared.LifecycleStatusCompleted:
		return StatusCompleted
	case shared.LifecycleStatusFailed:
		return StatusFailed
	case shared.LifecycleStatusStopped:
		return StatusStopped
	default:
		return StatusPending
	}
}

// Start transitions the worker to Running; the supervisor calls it just
// before Connect.
func (w *Worker) Start() error {
	status := w.Status()
	if status != StatusPending && status != StatusStopped && status != StatusBackoff && status != StatusReconnecting {
		return fmt.Errorf("session: cannot start worker for printer %d in %s state", w.printerID, status)
	}
	w.reconnecting = false
	w.backoffUntil = nil
	if w.lifecycle.Status() == shared.LifecycleStatusPending || w.lifecycle.Status() == shared.LifecycleStatusStopped {
		return w.lifecycle.Start()
	}
	w.lifecycle.UpdateTimestamp()
	return nil
}

// MarkReconnecting records a lost transport that is about to retry
// immediately (no backoff elapsed yet).
func (w *Worker) MarkReconnecting() {
	w.reconnecting = true
	w.backoffUntil = nil
	w.lifecycle.UpdateTimestamp()
}

// MarkBackoff schedules the next reconnect attempt using NextBackoff,
// indexed by the current reconnect count. The session never exhausts its
// reconnect budget — only the caller's own deactivate/delete check ends
// retries.
func (w *Worker) MarkBackoff() time.Duration {
	delay := NextBackoff(w.reconnectCount)
	until := w.clock.Now().Add(delay)
	w.backoffUntil = &until
	w.reconnecting = false
	w.lifecycle.UpdateTimestamp()
	return delay
}

// ReadyToReconnect reports whether a scheduled backoff has elapsed.
func (w *Worker) ReadyToReconnect() bool {
	if w.backoffUntil == nil {
		return true
	}
	return !w.clock.Now().Before(*w.backoffUntil)
}

// IncrementReconnectCount advances the reconnect attempt counter, called
// each time Connect is retried after a disconnect.
func (w *Worker) IncrementReconnectCount() {
	w.reconnectCount++
	w.lifecycle.UpdateTimestamp()
}

// ResetReconnectCount clears the reconnect counter after a sustained
// successful connection, so a later unrelated disconnect gets a fresh
// backoff budget.
func (w *Worker) ResetReconnectCount() {
	w.reconnectCount = 0
}

// Fail transitions the worker to Failed, recording err. Used for
// unrecoverable setup errors (credential decrypt, adapter construction) —
// never for a transport disconnect, which always backs off and retries.
func (w *Worker) Fail(err error) error {
	status := w.Status()
	if status == StatusCompleted || status == StatusStopped {
		return fmt.Errorf("session: cannot fail worker for printer %d in %s state", w.printerID, status)
	}
	w.reconnecting = false
	w.backoffUntil = nil
	return w.lifecycle.Fail(err)
}

// Stop tears the worker down cleanly, used on hot-reconfiguration and on
// daemon shutdown.
func (w *Worker) Stop() error {
	status := w.Status()
	if status == StatusCompleted || status == StatusStopped {
		return fmt.Errorf("session: cannot stop worker for printer %d in %s state", w.printerID, status)
	}
	w.reconnecting = false
	w.backoffUntil = nil
	return w.lifecycle.Stop()
}

func (w *Worker) String() string {
	return fmt.Sprintf("Worker[printer=%d, status=%s, reconnects=%d]",
		w.printerID, w.Status(), w.reconnectCount)
}
