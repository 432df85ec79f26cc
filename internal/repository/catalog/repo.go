// Package catalog reads and writes reference-data documents (cards, products,
// sets) with their declared joins resolved.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/domain/search/config"
	"github.com/kailas-cloud/cardex/internal/querybuilder"
)

// Repo implements the catalog persistence used by the index loader, the
// search executor and the catalog use case.
type Repo struct {
	store db.Collections
}

// New creates a catalog repository.
func New(s db.Collections) *Repo {
	return &Repo{store: s}
}

// Collection returns the store handle of t.
func (r *Repo) Collection(t entity.Type) db.Collection {
	return r.store.Collection(config.CollectionOf(t))
}

// LoadAll returns every document of t with joins resolved, ordered by id.
func (r *Repo) LoadAll(ctx context.Context, t entity.Type) ([]db.Document, error) {
	cfg, err := config.For(t)
	if err != nil {
		return nil, err
	}
	docs, err := r.Collection(t).Find(ctx, db.Query{}, db.FindOptions{
		Sort:     db.Sort{db.Asc(db.IDField)},
		Populate: querybuilder.Lookups(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", t, err)
	}
	return docs, nil
}

// Get returns one document of t with joins resolved.
func (r *Repo) Get(ctx context.Context, t entity.Type, id string) (db.Document, error) {
	cfg, err := config.For(t)
	if err != nil {
		return nil, err
	}
	docs, err := r.Collection(t).Find(ctx, db.Query{db.IDField: id}, db.FindOptions{
		Limit:    1,
		Populate: querybuilder.Lookups(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", t, id, err)
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	return docs[0], nil
}

// Upsert stores doc. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, t entity.Type, doc db.Document) (bool, error) {
	coll := r.Collection(t)

	_, err := coll.Get(ctx, doc.ID())
	created := errors.Is(err, db.ErrDocumentNotFound)
	if err != nil && !created {
		return false, fmt.Errorf("check exists %s/%s: %w", t, doc.ID(), err)
	}

	if err := coll.Upsert(ctx, doc); err != nil {
		return false, fmt.Errorf("upsert %s/%s: %w", t, doc.ID(), err)
	}
	return created, nil
}

// Delete removes one document.
func (r *Repo) Delete(ctx context.Context, t entity.Type, id string) error {
	if err := r.Collection(t).Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrDocumentNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete %s/%s: %w", t, id, err)
	}
	return nil
}

// Dependents returns, per entity type that joins t, the documents whose join
// key references id. They carry a copy of the referenced document and must be
// re-indexed when it changes.
func (r *Repo) Dependents(ctx context.Context, t entity.Type, id string) (map[entity.Type][]db.Document, error) {
	out := make(map[entity.Type][]db.Document)
	for _, other := range entity.All() {
		cfg := config.MustFor(other)
		p := cfg.Population
		if p == nil || p.From != t {
			continue
		}
		docs, err := r.Collection(other).Find(ctx, db.Query{p.LocalField: id}, db.FindOptions{
			Populate: querybuilder.Lookups(cfg),
		})
		if err != nil {
			return nil, fmt.Errorf("dependents of %s/%s in %s: %w", t, id, other, err)
		}
		if len(docs) > 0 {
			out[other] = docs
		}
	}
	return out, nil
}

// Count returns the number of documents of t.
func (r *Repo) Count(ctx context.Context, t entity.Type) (int, error) {
	n, err := r.Collection(t).Count(ctx, db.Query{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", t, err)
	}
	return n, nil
}
