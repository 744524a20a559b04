package alertdispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfleet/printfleet/internal/adapters/push"
	"github.com/printfleet/printfleet/internal/adapters/webhook"
	"github.com/printfleet/printfleet/internal/application/alertdispatch"
	"github.com/printfleet/printfleet/internal/domain/alert"
	"github.com/printfleet/printfleet/internal/domain/shared"
)

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts []*alert.Alert
	prefs  map[int64]map[string]*alert.AlertPreference
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{prefs: make(map[int64]map[string]*alert.AlertPreference)}
}

func (r *fakeAlertRepo) Create(_ context.Context, a *alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *fakeAlertRepo) Update(_ context.Context, _ *alert.Alert) error { return nil }
func (r *fakeAlertRepo) FindByID(_ context.Context, id int64) (*alert.Alert, error) {
	return nil, shared.NewNotFoundError("alert", id)
}
func (r *fakeAlertRepo) ListForUser(_ context.Context, _ int64, _ bool) ([]*alert.Alert, error) {
	return nil, nil
}

func (r *fakeAlertRepo) PreferenceFor(_ context.Context, userID int64, kind string) (*alert.AlertPreference, error) {
	return r.prefs[userID][kind], nil
}

func (r *fakeAlertRepo) UpsertPreference(_ context.Context, p *alert.AlertPreference) error {
	if r.prefs[p.UserID] == nil {
		r.prefs[p.UserID] = make(map[string]*alert.AlertPreference)
	}
	r.prefs[p.UserID][p.Kind] = p
	return nil
}

func (r *fakeAlertRepo) alertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

type recordingEmail struct {
	mu    sync.Mutex
	sends []string
}

func (e *recordingEmail) Send(_ context.Context, recipient, _, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sends = append(e.sends, recipient)
	return nil
}

func (e *recordingEmail) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sends)
}

type staticContact struct{ email string }

func (c staticContact) EmailFor(_ int64) (string, bool) { return c.email, c.email != "" }
func (c staticContact) WebhookTargetFor(_ int64) (webhook.Target, bool) {
	return webhook.Target{}, false
}
func (c staticContact) PushSubscriptionFor(_ int64) (push.Subscription, bool) {
	return push.Subscription{}, false
}

func quiet(start, end string) (*string, *string) { return &start, &end }

func TestDispatch_DefaultPreferenceCreatesInAppAlert(t *testing.T) {
	repo := newFakeAlertRepo()
	clock := shared.NewMockClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	d := alertdispatch.New(repo, nil, nil, nil, staticContact{}, 2, clock, nil)

	d.Dispatch(context.Background(), alertdispatch.Notification{
		Kind: "job.failed", Severity: alert.SeverityCritical,
		Title: "Job 9 failed", Message: "clog", Recipients: []int64{7},
	})

	require.Eventually(t, func() bool { return repo.alertCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(7), repo.alerts[0].TargetUser)
	assert.Equal(t, "job.failed", repo.alerts[0].Kind)
}

func TestDispatch_QuietHoursSuppressDelivery(t *testing.T) {
	repo := newFakeAlertRepo()
	start, end := quiet("22:00", "07:00")
	require.NoError(t, repo.UpsertPreference(context.Background(), &alert.AlertPreference{
		UserID: 7, Kind: "job.failed", InAppEnabled: true,
		QuietHoursStart: start, QuietHoursEnd: end,
	}))

	clock := shared.NewMockClock(time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC))
	d := alertdispatch.New(repo, nil, nil, nil, staticContact{}, 2, clock, nil)

	d.Dispatch(context.Background(), alertdispatch.Notification{
		Kind: "job.failed", Title: "t", Message: "m", Recipients: []int64{7},
	})

	// Delivery is asynchronous; give any stray send a chance to land.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, repo.alertCount())
}

func TestDispatch_EnabledChannelsFanOut(t *testing.T) {
	repo := newFakeAlertRepo()
	require.NoError(t, repo.UpsertPreference(context.Background(), &alert.AlertPreference{
		UserID: 7, Kind: "inventory.spool_low", InAppEnabled: true, EmailEnabled: true,
	}))

	email := &recordingEmail{}
	clock := shared.NewMockClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	d := alertdispatch.New(repo, email, nil, nil, staticContact{email: "op@example.com"}, 2, clock, nil)

	d.Dispatch(context.Background(), alertdispatch.Notification{
		Kind: "inventory.spool_low", Title: "Spool low", Message: "90g left", Recipients: []int64{7},
	})

	require.Eventually(t, func() bool { return repo.alertCount() == 1 && email.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "op@example.com", email.sends[0])
}

func TestDispatch_DisabledChannelIsSkipped(t *testing.T) {
	repo := newFakeAlertRepo()
	require.NoError(t, repo.UpsertPreference(context.Background(), &alert.AlertPreference{
		UserID: 7, Kind: "job.failed", InAppEnabled: false, EmailEnabled: true,
	}))

	email := &recordingEmail{}
	clock := shared.NewMockClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	d := alertdispatch.New(repo, email, nil, nil, staticContact{email: "op@example.com"}, 2, clock, nil)

	d.Dispatch(context.Background(), alertdispatch.Notification{
		Kind: "job.failed", Title: "t", Message: "m", Recipients: []int64{7},
	})

	require.Eventually(t, func() bool { return email.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, repo.alertCount())
}
