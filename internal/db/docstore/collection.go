// Package docstore implements db.Collection on top of any backend that can
// persist and enumerate raw documents. Query evaluation happens in-process.
package docstore

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/db/eval"
)

// Backend persists raw documents per collection.
type Backend interface {
	Load(ctx context.Context, collection string) ([]db.Document, error)
	Get(ctx context.Context, collection, id string) (db.Document, error)
	Put(ctx context.Context, collection string, doc db.Document) error
	Remove(ctx context.Context, collection, id string) error
}

// Compile-time check: Collection implements db.Collection.
var _ db.Collection = (*Collection)(nil)

// Collection is a db.Collection over a Backend.
type Collection struct {
	name    string
	backend Backend
}

// New creates a collection handle.
func New(name string, b Backend) *Collection {
	return &Collection{name: name, backend: b}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

func (c *Collection) load(ctx context.Context, name string) ([]db.Document, error) {
	docs, err := c.backend.Load(ctx, name)
	if err != nil {
		return nil, &db.Error{Op: db.OpLoad, Err: fmt.Errorf("collection %s: %w", name, err)}
	}
	return docs, nil
}

// Find returns matching documents with sort, skip, limit and joins applied.
func (c *Collection) Find(ctx context.Context, q db.Query, opts db.FindOptions) ([]db.Document, error) {
	docs, err := c.load(ctx, c.name)
	if err != nil {
		return nil, err
	}
	matched, err := eval.Filter(docs, q)
	if err != nil {
		return nil, &db.Error{Op: db.OpFind, Err: err}
	}

	out := make([]db.Document, len(matched))
	for i, d := range matched {
		out[i] = d.Clone()
	}
	eval.SortDocuments(out, opts.Sort)
	out = eval.Page(out, opts.Skip, opts.Limit)

	if len(opts.Populate) > 0 {
		if err := eval.Populate(ctx, out, opts.Populate, c.load); err != nil {
			return nil, &db.Error{Op: db.OpFind, Err: err}
		}
	}
	return out, nil
}

// Count returns the number of matching documents.
func (c *Collection) Count(ctx context.Context, q db.Query) (int, error) {
	docs, err := c.load(ctx, c.name)
	if err != nil {
		return 0, err
	}
	matched, err := eval.Filter(docs, q)
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return len(matched), nil
}

// Aggregate runs a pipeline over the whole collection.
func (c *Collection) Aggregate(ctx context.Context, p db.Pipeline) ([]db.Document, error) {
	docs, err := c.load(ctx, c.name)
	if err != nil {
		return nil, err
	}
	out, err := eval.Run(ctx, docs, p, c.load)
	if err != nil {
		return nil, &db.Error{Op: db.OpAggregate, Err: err}
	}
	return out, nil
}

// Get returns one document by id.
func (c *Collection) Get(ctx context.Context, id string) (db.Document, error) {
	d, err := c.backend.Get(ctx, c.name, id)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Upsert stores doc under its _id.
func (c *Collection) Upsert(ctx context.Context, doc db.Document) error {
	if doc.ID() == "" {
		return db.ErrMissingID
	}
	if err := c.backend.Put(ctx, c.name, doc); err != nil {
		return &db.Error{Op: db.OpUpsert, Err: err}
	}
	return nil
}

// Delete removes a document by id.
func (c *Collection) Delete(ctx context.Context, id string) error {
	if err := c.backend.Remove(ctx, c.name, id); err != nil {
		return err
	}
	return nil
}
