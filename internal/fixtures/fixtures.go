// Package fixtures loads reference-data snapshots from JSON and writes them
// through the catalog use case.
package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
)

// Catalog holds documents keyed by entity type.
type Catalog map[entity.Type][]db.Document

// Len returns the total number of documents.
func (c Catalog) Len() int {
	n := 0
	for _, docs := range c {
		n += len(docs)
	}
	return n
}

// Upserter writes one reference document.
type Upserter interface {
	Upsert(ctx context.Context, t entity.Type, id string, doc db.Document) (db.Document, bool, error)
}

// Summary counts what Apply wrote per entity type.
type Summary struct {
	Created map[entity.Type]int
	Updated map[entity.Type]int
}

// writeOrder puts join targets before the documents referencing them.
var writeOrder = []entity.Type{entity.Sets, entity.Cards, entity.Products}

// Load reads a snapshot file of the form {"sets": [...], "cards": [...], "products": [...]}.
func Load(path string) (Catalog, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open fixtures %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Decode parses a snapshot. Unknown entity keys are rejected.
func Decode(r io.Reader) (Catalog, error) {
	var raw map[string][]db.Document
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	c := make(Catalog, len(raw))
	for name, docs := range raw {
		t, err := entity.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("decode fixtures: %w", err)
		}
		for i, d := range docs {
			if len(d) == 0 {
				return nil, fmt.Errorf("decode fixtures: %s[%d] is empty", name, i)
			}
		}
		c[t] = docs
	}
	return c, nil
}

// Apply upserts every document, sets first. It stops at the first failure.
func Apply(ctx context.Context, u Upserter, c Catalog, logger *zap.Logger) (Summary, error) {
	s := Summary{
		Created: make(map[entity.Type]int, len(c)),
		Updated: make(map[entity.Type]int, len(c)),
	}
	for _, t := range writeOrder {
		for _, doc := range c[t] {
			if err := ctx.Err(); err != nil {
				return s, err
			}
			_, created, err := u.Upsert(ctx, t, doc.ID(), doc)
			if err != nil {
				return s, fmt.Errorf("upsert %s/%s: %w", t, doc.ID(), err)
			}
			if created {
				s.Created[t]++
			} else {
				s.Updated[t]++
			}
		}
		if n := len(c[t]); n > 0 {
			logger.Info("Fixtures applied",
				zap.Stringer("type", t),
				zap.Int("created", s.Created[t]),
				zap.Int("updated", s.Updated[t]),
			)
		}
	}
	return s, nil
}

// Seed writes the snapshot straight into store collections, bypassing the
// index and cache. Used to populate an empty store before the index is built.
func Seed(ctx context.Context, store db.Collections, collectionOf func(entity.Type) string, c Catalog) error {
	for _, t := range writeOrder {
		coll := store.Collection(collectionOf(t))
		for _, doc := range c[t] {
			if doc.ID() == "" {
				return fmt.Errorf("seed %s: document without %s", t, db.IDField)
			}
			if err := coll.Upsert(ctx, doc); err != nil {
				return fmt.Errorf("seed %s/%s: %w", t, doc.ID(), err)
			}
		}
	}
	return nil
}
