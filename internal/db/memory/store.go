// Package memory provides process-local implementations of the db contracts:
// a document store for single-node deployments and tests, and a
// ristretto-backed KV store for the search cache.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/db/docstore"
)

// Compile-time checks.
var (
	_ db.Store          = (*Store)(nil)
	_ docstore.Backend = (*Store)(nil)
)

// Store keeps documents in maps keyed by collection and id.
type Store struct {
	mu    sync.RWMutex
	colls map[string]map[string]db.Document
}

// NewStore creates an empty in-memory document store.
func NewStore() *Store {
	return &Store{colls: make(map[string]map[string]db.Document)}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// Collection returns a handle for the named collection.
func (s *Store) Collection(name string) db.Collection {
	return docstore.New(name, s)
}

// Load returns clones of every document in the collection, ordered by id.
func (s *Store) Load(_ context.Context, collection string) ([]db.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.colls[collection]
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]db.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, c[id].Clone())
	}
	return out, nil
}

// Get returns a clone of one document.
func (s *Store) Get(_ context.Context, collection, id string) (db.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.colls[collection][id]
	if !ok {
		return nil, db.ErrDocumentNotFound
	}
	return d.Clone(), nil
}

// Put stores a clone of doc.
func (s *Store) Put(_ context.Context, collection string, doc db.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.colls[collection]
	if !ok {
		c = make(map[string]db.Document)
		s.colls[collection] = c
	}
	c[doc.ID()] = doc.Clone()
	return nil
}

// Remove deletes a document.
func (s *Store) Remove(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.colls[collection][id]; !ok {
		return db.ErrDocumentNotFound
	}
	delete(s.colls[collection], id)
	return nil
}

// Seed bulk-loads documents into a collection.
func (s *Store) Seed(collection string, docs ...db.Document) {
	for _, d := range docs {
		_ = s.Put(context.Background(), collection, d)
	}
}
