// Package audit holds AuditEntry: the append-only record of administrative
// and state-changing actions.
package audit

import "time"

// Entry is one append-only audit row.
type Entry struct {
	ID         int64
	Timestamp  time.Time
	Action     string
	EntityKind string
	EntityID   string
	Actor      string
	SourceIP   string
	Detail     map[string]interface{}
}
