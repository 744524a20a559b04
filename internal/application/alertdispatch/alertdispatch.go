// Package alertdispatch implements the Alert Dispatcher: fan-out of bus
// events to in-app, email, push and webhook channels, filtered through
// per-user AlertPreference and quiet hours.
//
// Target-user resolution (owner / operators+admins / explicit list) belongs
// to the external REST/RBAC subsystem this repository does not implement;
// Notification.Recipients is expected to already carry the resolved user id
// set by the time it reaches Dispatch.
package alertdispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/printfleet/printfleet/internal/adapters/push"
	"github.com/printfleet/printfleet/internal/adapters/webhook"
	"github.com/printfleet/printfleet/internal/domain/alert"
	"github.com/printfleet/printfleet/internal/domain/shared"
)

// ChannelTimeout bounds each channel send.
const ChannelTimeout = 10 * time.Second

// Notification is one event-driven alert to fan out.
type Notification struct {
	Kind       string // matches an AlertPreference.Kind / bus topic
	Severity   alert.Severity
	Title      string
	Message    string
	Recipients []int64
	PrinterID  *int64
	JobID      *int64
	SpoolID    *int64
}

// EmailSender, PushSender and WebhookSender are the minimal surfaces
// Dispatcher needs from internal/adapters/{email,push,webhook}; defined here
// rather than importing those packages directly so tests can supply fakes.
type EmailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

type WebhookSender interface {
	Send(ctx context.Context, target webhook.Target, title, message string) error
}

// UserContact resolves the delivery coordinates for a user id: email
// address, push subscription and webhook target, each optional. Supplied by
// the external user-directory collaborator.
type UserContact interface {
	EmailFor(userID int64) (string, bool)
	WebhookTargetFor(userID int64) (webhook.Target, bool)
	PushSubscriptionFor(userID int64) (push.Subscription, bool)
}

// PushSender is the minimal surface Dispatcher needs from
// internal/adapters/push.
type PushSender interface {
	Send(ctx context.Context, sub push.Subscription, title, message string) error
}

// Dispatcher fans Notifications out across enabled channels on a bounded
// worker pool.
type Dispatcher struct {
	alerts  alert.Repository
	email   EmailSender
	webhook WebhookSender
	push    PushSender
	contact UserContact
	clock   shared.Clock
	log     *slog.Logger
	sem     *semaphore.Weighted
}

// New constructs a Dispatcher. workers bounds concurrent channel sends.
func New(alerts alert.Repository, email EmailSender, webhook WebhookSender, push PushSender, contact UserContact, workers int, clock shared.Clock, log *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{alerts: alerts, email: email, webhook: webhook, push: push, contact: contact, clock: clock, log: log, sem: semaphore.NewWeighted(int64(workers))}
}

// Dispatch delivers n to every recipient through their enabled channels.
// During a recipient's quiet hours nothing is sent unless DigestBatching is
// set; there is no digest queue, so DigestBatching recipients are delivered
// immediately even during quiet hours. Each per-user, per-channel send runs fire-and-forget on the
// worker pool; failure is logged, never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	for _, userID := range n.Recipients {
		pref, err := d.alerts.PreferenceFor(ctx, userID, n.Kind)
		if err != nil {
			d.log.Error("alertdispatch: load preference failed", "user_id", userID, "kind", n.Kind, "err", err)
			continue
		}
		if pref == nil {
			pref = &alert.AlertPreference{UserID: userID, Kind: n.Kind, InAppEnabled: true}
		}

		now := d.clock.Now()
		if pref.InQuietHours(now) && !pref.DigestBatching {
			continue // suppressed during quiet hours
		}

		for _, ch := range pref.EnabledChannels() {
			d.sendAsync(ctx, userID, ch, n)
		}
	}
}

func (d *Dispatcher) sendAsync(ctx context.Context, userID int64, ch alert.Channel, n Notification) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return
	}
	go func() {
		defer d.sem.Release(1)
		sendCtx, cancel := context.WithTimeout(ctx, ChannelTimeout)
		defer cancel()

		var err error
		switch ch {
		case alert.ChannelInApp:
			err = d.sendInApp(sendCtx, userID, n)
		case alert.ChannelEmail:
			err = d.sendEmail(sendCtx, userID, n)
		case alert.ChannelWebhook:
			err = d.sendWebhook(sendCtx, userID, n)
		case alert.ChannelPush:
			err = d.sendPush(sendCtx, userID, n)
		}
		if err != nil {
			d.log.Error("alertdispatch: channel send failed", "user_id", userID, "channel", ch, "err", err)
		}
	}()
}

func (d *Dispatcher) sendInApp(ctx context.Context, userID int64, n Notification) error {
	a := &alert.Alert{
		Kind: n.Kind, Severity: n.Severity, TargetUser: userID,
		Title: n.Title, Message: n.Message,
		PrinterID: n.PrinterID, JobID: n.JobID, SpoolID: n.SpoolID,
		CreatedAt: d.clock.Now(),
	}
	return d.alerts.Create(ctx, a)
}

func (d *Dispatcher) sendEmail(ctx context.Context, userID int64, n Notification) error {
	if d.email == nil || d.contact == nil {
		return nil
	}
	addr, ok := d.contact.EmailFor(userID)
	if !ok || addr == "" {
		return nil
	}
	return d.email.Send(ctx, addr, n.Title, n.Message)
}

func (d *Dispatcher) sendPush(ctx context.Context, userID int64, n Notification) error {
	if d.push == nil || d.contact == nil {
		return nil
	}
	sub, ok := d.contact.PushSubscriptionFor(userID)
	if !ok {
		return nil
	}
	return d.push.Send(ctx, sub, n.Title, n.Message)
}

func (d *Dispatcher) sendWebhook(ctx context.Context, userID int64, n Notification) error {
	if d.webhook == nil || d.contact == nil {
		return nil
	}
	target, ok := d.contact.WebhookTargetFor(userID)
	if !ok {
		return nil
	}
	if err := d.webhook.Send(ctx, target, n.Title, n.Message); err != nil {
		return fmt.Errorf("webhook send to user %d: %w", userID, err)
	}
	return nil
}
