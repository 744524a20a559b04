package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/printfleet/printfleet/internal/adapters/metrics"
	"github.com/printfleet/printfleet/internal/domain/adapter"
	"github.com/printfleet/printfleet/internal/domain/eventbus"
	"github.com/printfleet/printfleet/internal/domain/fleetstate"
	"github.com/printfleet/printfleet/internal/domain/hmscodes"
	"github.com/printfleet/printfleet/internal/domain/printer"
	"github.com/printfleet/printfleet/internal/domain/shared"
	"github.com/printfleet/printfleet/internal/infrastructure/crypto"
	"github.com/printfleet/printfleet/internal/infrastructure/lockset"
)

// AdapterFactory builds the concrete ProtocolAdapter for a Printer given its
// decrypted Credentials.
type AdapterFactory func(p *printer.Printer, creds adapter.Credentials) (adapter.Printer, error)

// handle pairs a Worker's state machine with the goroutine and cancel func
// that drive it.
type handle struct {
	worker *Worker
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns one goroutine per active Printer. Hot-reconfiguration
// tears a worker down and re-spawns it rather than mutating it in place.
type Supervisor struct {
	mu       sync.Mutex
	workers  map[int64]*handle
	adapters map[int64]adapter.Printer // set while connected; read by the Dispatcher to issue Upload/StartPrint/Stop

	printers printer.Repository
	sealer   *crypto.Sealer
	factory  AdapterFactory
	bus      *eventbus.Bus
	state    *fleetstate.Store
	locks    *lockset.Set
	clock    shared.Clock
	log      *slog.Logger
}

// New constructs a Supervisor. sealer decrypts Printer.CredentialsBlob into
// transient adapter.Credentials before each Connect/TestConnection call;
// plaintext credentials never outlive the call.
func New(
	printers printer.Repository,
	sealer *crypto.Sealer,
	factory AdapterFactory,
	bus *eventbus.Bus,
	state *fleetstate.Store,
	clock shared.Clock,
	log *slog.Logger,
) *Supervisor {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		workers:  make(map[int64]*handle),
		adapters: make(map[int64]adapter.Printer),
		printers: printers,
		sealer:   sealer,
		factory:  factory,
		bus:      bus,
		state:    state,
		locks:    lockset.New(),
		clock:    clock,
		log:      log,
	}
}

// Spawn starts (or, if already running, is a no-op for) a session worker for
// printerID.
func (s *Supervisor) Spawn(ctx context.Context, printerID int64) error {
	s.mu.Lock()
	if _, exists := s.workers[printerID]; exists {
		s.mu.Unlock()
		return nil
	}
	workerCtx, cancel := context.WithCancel(ctx)
	h := &handle{
		worker: NewWorker(printerID, s.clock),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.workers[printerID] = h
	s.mu.Unlock()

	go s.runLoop(workerCtx, h)
	return nil
}

// Reconfigure tears down the current worker for printerID, if any, and
// spawns a fresh one against the updated Printer row.
func (s *Supervisor) Reconfigure(ctx context.Context, printerID int64) error {
	s.Stop(printerID)
	return s.Spawn(ctx, printerID)
}

// Stop tears down the worker for printerID, waiting for its goroutine to
// exit. Safe to call when no worker is running.
func (s *Supervisor) Stop(printerID int64) {
	s.mu.Lock()
	h, exists := s.workers[printerID]
	if exists {
		delete(s.workers, printerID)
	}
	s.mu.Unlock()
	if !exists {
		return
	}
	h.cancel()
	<-h.done
}

// StopAll tears down every running worker, used on daemon shutdown within
// the 5s cancellation budget.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.workers))
	for id := range s.workers {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.Stop(id)
	}
}

// Adapter returns the live, connected transport for printerID, if one is
// currently connected. Used by the Dispatcher to issue Upload/StartPrint/Stop
// against the session worker's own connection rather than opening a
// second one.
func (s *Supervisor) Adapter(printerID int64) (adapter.Printer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ap, ok := s.adapters[printerID]
	return ap, ok
}

// Snapshot returns the Worker state for printerID, if a worker is running.
func (s *Supervisor) Snapshot(printerID int64) (*Worker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.workers[printerID]
	if !ok {
		return nil, false
	}
	return h.worker, true
}

// RunLivenessWatchdog marks printers offline when no StatusFrame has
// arrived within window (<= 0 means fleetstate.DefaultOnlineWindow),
// scanning at a third of the window. Runs until ctx is cancelled; the
// daemon host launches it alongside the session workers.
func (s *Supervisor) RunLivenessWatchdog(ctx context.Context, window time.Duration) {
	if window <= 0 {
		window = fleetstate.DefaultOnlineWindow
	}
	ticker := time.NewTicker(window / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.clock.Now()
			for id, snap := range s.state.All() {
				if snap.IsOnline && !snap.OnlineAt(now, window) {
					s.state.MarkOffline(id, now)
					s.bus.PublishPrinterStateChanged(eventbus.PrinterStateChanged{PrinterID: id, At: now})
				}
			}
		}
	}
}

func (s *Supervisor) runLoop(ctx context.Context, h *handle) {
	defer close(h.done)
	w := h.worker
	printerID := w.PrinterID()

	for {
		if ctx.Err() != nil {
			_ = w.Stop()
			return
		}

		p, err := s.printers.FindByID(ctx, printerID)
		if err != nil || p == nil || !p.Active {
			_ = w.Stop()
			s.state.Delete(printerID)
			return
		}

		creds, err := s.decryptCredentials(p)
		if err != nil {
			_ = w.Fail(err)
			s.log.Error("session: credential decrypt failed", "printer_id", printerID, "err", err)
			return
		}

		ap, err := s.factory(p, creds)
		if err != nil {
			_ = w.Fail(err)
			s.log.Error("session: adapter construction failed", "printer_id", printerID, "err", err)
			return
		}

		if err := w.Start(); err != nil {
			s.log.Error("session: start rejected", "printer_id", printerID, "err", err)
			return
		}

		sink := make(chan adapter.StatusFrame, 16)
		connectErr := ap.Connect(ctx, sink)
		if connectErr != nil {
			if !s.backoffAndRetry(ctx, w, connectErr) {
				return
			}
			continue
		}

		w.ResetReconnectCount()
		metrics.RecordSessionConnect(printerID)
		s.state.Set(printerID, fleetstate.Snapshot{IsOnline: true, UpdatedAt: s.clock.Now()})
		s.bus.PublishPrinterConnected(eventbus.PrinterConnected{PrinterID: printerID, At: s.clock.Now()})
		s.mu.Lock()
		s.adapters[printerID] = ap
		s.mu.Unlock()

		s.consume(ctx, printerID, sink)
		_ = ap.Disconnect(ctx)
		s.mu.Lock()
		delete(s.adapters, printerID)
		s.mu.Unlock()
		metrics.RecordSessionDisconnect(printerID)
		s.state.MarkOffline(printerID, s.clock.Now())
		s.bus.PublishPrinterDisconnected(eventbus.PrinterDisconnected{PrinterID: printerID, Reason: "transport closed", At: s.clock.Now()})

		if ctx.Err() != nil {
			_ = w.Stop()
			return
		}
		if !s.backoffAndRetry(ctx, w, fmt.Errorf("session: transport closed")) {
			return
		}
	}
}

// backoffAndRetry records a disconnect, waits out the worker's exponential
// backoff, and reports whether the caller should attempt
// another connect. The session never gives up while the Printer stays
// active — only ctx cancellation (daemon shutdown or Supervisor.Stop) ends
// the retry loop; the caller's own Printer.Active check on the next
// iteration handles deactivate/delete.
func (s *Supervisor) backoffAndRetry(ctx context.Context, w *Worker, cause error) bool {
	w.IncrementReconnectCount()
	w.MarkReconnecting()
	s.state.MarkOffline(w.PrinterID(), s.clock.Now())
	delay := w.MarkBackoff()
	metrics.RecordReconnectBackoff(delay.Seconds())
	s.log.Warn("session: reconnecting after transport failure", "printer_id", w.PrinterID(), "err", cause, "delay", delay)
	// shared.Clock exposes Sleep, not a cancellable timer; MockClock's Sleep
	// is instant so tests never actually wait, and RealClock's Sleep is
	// bounded by the 60s backoff cap plus 20% jitter (at most 72s), so a
	// post-sleep ctx check is
	// sufficient here rather than plumbing a separate timer type.
	s.clock.Sleep(delay)
	return ctx.Err() == nil
}

// consume drains frames from sink, serializing processing per-printer via
// lockset so frame ordering is preserved even though the bus
// publish underneath is itself non-blocking.
func (s *Supervisor) consume(ctx context.Context, printerID int64, sink <-chan adapter.StatusFrame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sink:
			if !ok {
				return
			}
			unlock := s.locks.Lock(fmt.Sprintf("printer:%d", printerID))
			s.handleFrame(printerID, frame)
			unlock()
		}
	}
}

func (s *Supervisor) handleFrame(printerID int64, frame adapter.StatusFrame) {
	metrics.RecordStatusFrame(printerID)
	isPrinting := frame.State == adapter.DevicePrepare || frame.State == adapter.DeviceRunning || frame.State == adapter.DevicePaused

	snap := fleetstate.Snapshot{
		IsOnline:   true,
		IsPrinting: isPrinting,
		LastFrame:  &frame,
		UpdatedAt:  s.clock.Now(),
	}
	if isPrinting {
		snap.CurrentPrint = &fleetstate.CurrentPrint{
			Filename:     frame.Filename,
			ProgressPct:  frame.ProgressPct,
			RemainingMin: frame.RemainingMin,
			CurrentLayer: frame.CurrentLayer,
			TotalLayers:  frame.TotalLayers,
		}
	}
	s.state.Set(printerID, snap)

	s.bus.PublishPrinterStateChanged(eventbus.PrinterStateChanged{
		PrinterID:  printerID,
		IsOnline:   true,
		IsPrinting: isPrinting,
		At:         snap.UpdatedAt,
	})

	for _, e := range frame.Errors {
		code := hmscodes.Lookup(e.AttrCode)
		s.bus.PublishPrinterHMSCode(eventbus.PrinterHMSCode{PrinterID: printerID, AttrCode: e.AttrCode, At: snap.UpdatedAt})
		s.bus.PublishPrinterError(eventbus.PrinterError{PrinterID: printerID, Code: e.AttrCode, Message: code.Message, At: snap.UpdatedAt})
	}
}

func (s *Supervisor) decryptCredentials(p *printer.Printer) (adapter.Credentials, error) {
	if p.CredentialsBlob == "" {
		return adapter.Credentials{Host: p.Host}, nil
	}
	plain, err := s.sealer.Open(p.CredentialsBlob)
	if err != nil {
		return adapter.Credentials{}, fmt.Errorf("session: decrypt credentials for printer %d: %w", p.ID, err)
	}
	return adapter.Credentials{Host: p.Host, Secret: plain}, nil
}
