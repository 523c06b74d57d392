package repository

import (
	"context"

	"github.com/onaryc/AmigaVision/internal/domain"
)

// Repository defines data access for the titles catalog
type Repository interface {
	// Read operations
	All(ctx context.Context) ([]domain.Entry, error)
	Get(ctx context.Context, id string) (*domain.Entry, error)

	// Resolve finds the best entry for a (possibly fuzzy) name and chases
	// its preferred version. Either result may be nil.
	Resolve(ctx context.Context, name string) (entry, preferred *domain.Entry, err error)

	// HasEntry reports whether any entry matches the id exactly or by prefix
	HasEntry(ctx context.Context, id string) (bool, error)

	// Write operations
	Upsert(ctx context.Context, entry *domain.Entry) error
	ClearArchive(ctx context.Context, id string) error
	AttachArchive(ctx context.Context, id, archivePath, slavePath, slaveVersion string) ([]string, error)

	// Bulk operations
	ReplaceAll(ctx context.Context, entries []domain.Entry) error

	// Close releases resources
	Close() error
}
