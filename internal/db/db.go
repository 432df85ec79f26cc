package db

import (
	"context"
	"time"
)

// Store is the main database facade: document collections plus connectivity.
type Store interface {
	Pinger
	Collections
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Collections hands out per-collection handles.
type Collections interface {
	Collection(name string) Collection
}

// FindOptions controls paging, ordering and joins for Find.
type FindOptions struct {
	Skip     int
	Limit    int // 0 = unlimited
	Sort     Sort
	Populate []Lookup
}

// Collection is the document-store handle for one entity collection.
// Query objects use the shapes declared in query.go.
type Collection interface {
	Name() string
	Find(ctx context.Context, q Query, opts FindOptions) ([]Document, error)
	Count(ctx context.Context, q Query) (int, error)
	Aggregate(ctx context.Context, p Pipeline) ([]Document, error)
	Get(ctx context.Context, id string) (Document, error)
	Upsert(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id string) error
}

// KVStore is the cache backend contract.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// TTL returns the remaining lifetime of a key, or ErrKeyNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// DeleteMatching removes keys matching a glob pattern and returns how many were removed.
	DeleteMatching(ctx context.Context, pattern string) (int, error)
	Flush(ctx context.Context) error
}
