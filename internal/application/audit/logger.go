// Package audit implements the audit log: an append-only record of
// administrative and state-changing actions, plus a periodic retention
// sweep.
package audit

import (
	"context"
	"time"

	"github.com/printfleet/printfleet/internal/domain/audit"
	"github.com/printfleet/printfleet/internal/domain/shared"
)

// Logger appends AuditEntry rows for administrative and state-changing
// actions.
type Logger struct {
	repo  audit.Repository
	clock shared.Clock
}

// NewLogger constructs a Logger. If clock is nil, shared.NewRealClock() is
// used.
func NewLogger(repo audit.Repository, clock shared.Clock) *Logger {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Logger{repo: repo, clock: clock}
}

// LogAudit appends one AuditEntry. Failures are the caller's to decide on —
// an audit write never blocks or rolls back the action it describes.
func (l *Logger) LogAudit(ctx context.Context, action, entityKind, entityID, actor, sourceIP string, detail map[string]interface{}) error {
	return l.repo.Create(ctx, &audit.Entry{
		Timestamp:  l.clock.Now(),
		Action:     action,
		EntityKind: entityKind,
		EntityID:   entityID,
		Actor:      actor,
		SourceIP:   sourceIP,
		Detail:     detail,
	})
}

// DefaultRetention is how long AuditEntry rows are kept absent an explicit
// RetentionDays override.
const DefaultRetention = 365 * 24 * time.Hour

// Retention periodically deletes AuditEntry rows older than its retention
// window.
type Retention struct {
	repo      audit.Repository
	clock     shared.Clock
	window    time.Duration
	interval  time.Duration
	onSweep   func(removed int)
}

// NewRetention constructs a Retention sweeper. window defaults to
// DefaultRetention and interval to 24h when zero. onSweep, if non-nil, is
// called after each sweep with the number of rows removed — used by tests
// and by the daemon host's structured logging.
func NewRetention(repo audit.Repository, clock shared.Clock, window, interval time.Duration, onSweep func(removed int)) *Retention {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if window <= 0 {
		window = DefaultRetention
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Retention{repo: repo, clock: clock, window: window, interval: interval, onSweep: onSweep}
}

// Run blocks, sweeping once immediately and then every interval, until ctx
// is cancelled.
func (r *Retention) Run(ctx context.Context) {
	r.sweep(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Retention) sweep(ctx context.Context) {
	cutoff := r.clock.Now().Add(-r.window)
	removed, err := r.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return
	}
	if r.onSweep != nil {
		r.onSweep(removed)
	}
}
