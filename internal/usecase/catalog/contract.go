package catalog

import (
	"context"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
)

// Repository defines the storage contract for reference data.
type Repository interface {
	Get(ctx context.Context, t entity.Type, id string) (db.Document, error)
	Upsert(ctx context.Context, t entity.Type, doc db.Document) (created bool, err error)
	Delete(ctx context.Context, t entity.Type, id string) error
	Dependents(ctx context.Context, t entity.Type, id string) (map[entity.Type][]db.Document, error)
}

// Indexer keeps the in-memory search index in step with writes.
type Indexer interface {
	Add(t entity.Type, doc db.Document)
	Remove(t entity.Type, id string)
	Reinitialize(ctx context.Context) error
}

// CacheInvalidator drops cached search results.
type CacheInvalidator interface {
	InvalidateEntity(ctx context.Context, t entity.Type) (int, error)
	Clear(ctx context.Context) error
}
