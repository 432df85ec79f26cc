// Package catalog maintains reference data and keeps the search index and
// result cache consistent with every write.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/domain/search/config"
)

// Service handles reference-data writes.
type Service struct {
	repo   Repository
	index  Indexer
	cache  CacheInvalidator
	logger *zap.Logger
}

// New creates a catalog service. cache may be nil.
func New(repo Repository, idx Indexer, cache CacheInvalidator, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		index:  idx,
		cache:  cache,
		logger: logger.Named("catalog"),
	}
}

// Get returns one document with its joins resolved.
func (s *Service) Get(ctx context.Context, t entity.Type, id string) (db.Document, error) {
	if _, err := config.For(t); err != nil {
		return nil, err
	}
	doc, err := s.repo.Get(ctx, t, id)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", t, id, err)
	}
	return doc, nil
}

// Upsert stores doc under id, generating an id when both id and the
// document's _id are empty. The stored document and whether it was created
// are returned. Documents joining doc are re-indexed with the new copy.
func (s *Service) Upsert(ctx context.Context, t entity.Type, id string, doc db.Document) (db.Document, bool, error) {
	cfg, err := config.For(t)
	if err != nil {
		return nil, false, err
	}
	doc, err = prepare(cfg, id, doc)
	if err != nil {
		return nil, false, err
	}

	created, err := s.repo.Upsert(ctx, t, doc)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	stored, err := s.repo.Get(ctx, t, doc.ID())
	if err != nil {
		return nil, false, fmt.Errorf("%w: reload %s/%s: %w", domain.ErrStore, t, doc.ID(), err)
	}
	s.index.Add(t, stored)
	s.invalidate(ctx, append(s.reindexDependents(ctx, t, doc.ID()), t)...)

	s.logger.Debug("Document upserted",
		zap.Stringer("type", t), zap.String("id", doc.ID()), zap.Bool("created", created))
	return stored, created, nil
}

func prepare(cfg *config.Config, id string, doc db.Document) (db.Document, error) {
	if len(doc) == 0 {
		return nil, domain.NewValidationError("body", "empty document")
	}
	doc = doc.Clone()
	switch docID := doc.ID(); {
	case id == "" && docID == "":
		doc[db.IDField] = uuid.NewString()
	case id == "":
	case docID != "" && docID != id:
		return nil, domain.NewValidationError(db.IDField, fmt.Sprintf("%q does not match path id %q", docID, id))
	default:
		doc[db.IDField] = id
	}

	primary := cfg.PrimaryField()
	if v, ok := doc[primary].(string); !ok || v == "" {
		return nil, domain.NewValidationError(primary, "required")
	}
	if p := cfg.Population; p != nil {
		delete(doc, p.As)
	}
	return doc, nil
}

// reindexDependents re-adds the documents that join t/id so their joined
// fields follow the change. It returns the dependent types.
func (s *Service) reindexDependents(ctx context.Context, t entity.Type, id string) []entity.Type {
	deps, err := s.repo.Dependents(ctx, t, id)
	if err != nil {
		s.logger.Warn("Failed to load dependents, index may hold stale joins",
			zap.Stringer("type", t), zap.String("id", id), zap.Error(err))
	}
	var touched []entity.Type
	for dt, docs := range deps {
		for _, d := range docs {
			s.index.Add(dt, d)
		}
		touched = append(touched, dt)
	}
	return touched
}

// Delete removes one document from the store, the index and the cache.
// Documents joining it are re-indexed without the join.
func (s *Service) Delete(ctx context.Context, t entity.Type, id string) error {
	if _, err := config.For(t); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, t, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete %s/%s: %w", t, id, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	s.index.Remove(t, id)
	s.invalidate(ctx, append(s.reindexDependents(ctx, t, id), t)...)
	return nil
}

// RebuildIndex rebuilds every index from the store and clears the cache.
func (s *Service) RebuildIndex(ctx context.Context) error {
	if err := s.index.Reinitialize(ctx); err != nil {
		return fmt.Errorf("%w: rebuild index: %w", domain.ErrStore, err)
	}
	if s.cache != nil {
		if err := s.cache.Clear(ctx); err != nil {
			s.logger.Warn("Failed to clear search cache after rebuild", zap.Error(err))
		}
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, types ...entity.Type) {
	if s.cache == nil {
		return
	}
	for _, t := range types {
		n, err := s.cache.InvalidateEntity(ctx, t)
		if err != nil {
			s.logger.Warn("Failed to invalidate cached searches", zap.Stringer("type", t), zap.Error(err))
			continue
		}
		if n > 0 {
			s.logger.Debug("Cached searches invalidated", zap.Stringer("type", t), zap.Int("keys", n))
		}
	}
}
