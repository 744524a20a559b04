package model

import "context"

// Repository persists Model aggregates.
type Repository interface {
	Create(ctx context.Context, m *Model) error
	Update(ctx context.Context, m *Model) error
	FindByID(ctx context.Context, id int64) (*Model, error)
	List(ctx context.Context) ([]*Model, error)
	Delete(ctx context.Context, id int64) error
}
