package alert

import "context"

// Repository persists Alert records and AlertPreference rows.
type Repository interface {
	Create(ctx context.Context, a *Alert) error
	Update(ctx context.Context, a *Alert) error
	FindByID(ctx context.Context, id int64) (*Alert, error)
	ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]*Alert, error)

	PreferenceFor(ctx context.Context, userID int64, kind string) (*AlertPreference, error)
	UpsertPreference(ctx context.Context, p *AlertPreference) error
}
