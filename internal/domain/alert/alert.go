// Package alert holds Alert and AlertPreference: in-app notifications and
// the per-user channel/quiet-hours routing configuration that drives them.
package alert

import "time"

// Severity classifies how urgently an Alert needs attention.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is an in-app notification record.
type Alert struct {
	ID         int64
	Kind       string
	Severity   Severity
	TargetUser int64
	Title      string
	Message    string
	Read       bool
	Dismissed  bool
	PrinterID  *int64
	JobID      *int64
	SpoolID    *int64
	CreatedAt  time.Time
}

// MarkRead flips the read flag.
func (a *Alert) MarkRead() { a.Read = true }

// Dismiss flips the dismissed flag.
func (a *Alert) Dismiss() { a.Dismissed = true }

// Channel is a notification delivery mechanism.
type Channel string

const (
	ChannelInApp  Channel = "in_app"
	ChannelEmail  Channel = "email"
	ChannelPush   Channel = "push"
	ChannelWebhook Channel = "webhook"
)

// AlertPreference holds per-user, per-kind channel toggles plus quiet
// hours and digest batching.
type AlertPreference struct {
	ID               int64
	UserID           int64
	Kind             string // matches an event-bus topic or "*" for default
	InAppEnabled     bool
	EmailEnabled     bool
	PushEnabled      bool
	WebhookEnabled   bool
	QuietHoursStart  *string // "HH:MM" local time
	QuietHoursEnd    *string
	DigestBatching   bool
}

// InQuietHours reports whether the given local clock time falls within the
// preference's quiet-hours window, which may wrap midnight (same rule as
// the scheduler's blackout window).
func (p *AlertPreference) InQuietHours(nowLocal time.Time) bool {
	if p.QuietHoursStart == nil || p.QuietHoursEnd == nil {
		return false
	}
	start, errS := time.Parse("15:04", *p.QuietHoursStart)
	end, errE := time.Parse("15:04", *p.QuietHoursEnd)
	if errS != nil || errE != nil {
		return false
	}
	cur := nowLocal.Hour()*60 + nowLocal.Minute()
	s := start.Hour()*60 + start.Minute()
	e := end.Hour()*60 + end.Minute()
	if s <= e {
		return cur >= s && cur < e
	}
	// wraps midnight
	return cur >= s || cur < e
}

// EnabledChannels returns the set of channels this preference allows for
// its kind.
func (p *AlertPreference) EnabledChannels() []Channel {
	var out []Channel
	if p.InAppEnabled {
		out = append(out, ChannelInApp)
	}
	if p.EmailEnabled {
		out = append(out, ChannelEmail)
	}
	if p.PushEnabled {
		out = append(out, ChannelPush)
	}
	if p.WebhookEnabled {
		out = append(out, ChannelWebhook)
	}
	return out
}
