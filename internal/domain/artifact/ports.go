package artifact

import "context"

// Repository persists PrintArtifact metadata.
type Repository interface {
	Create(ctx context.Context, a *PrintArtifact) error
	FindByID(ctx context.Context, id int64) (*PrintArtifact, error)
	FindByContentHash(ctx context.Context, hash string) (*PrintArtifact, error)
	List(ctx context.Context) ([]*PrintArtifact, error)
}

// Parser turns raw uploaded bytes into a PrintArtifact, enforcing size and
// zip-bomb guards (component P).
type Parser interface {
	Parse(raw []byte, originalName string) (*PrintArtifact, error)
}
