package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/domain/search/config"
	"github.com/kailas-cloud/cardex/internal/domain/search/query"
	"github.com/kailas-cloud/cardex/internal/domain/search/result"
	"github.com/kailas-cloud/cardex/internal/index"
	"github.com/kailas-cloud/cardex/internal/logger"
	"github.com/kailas-cloud/cardex/internal/querybuilder"
)

// Suggestion limits.
const (
	DefaultSuggestLimit = 10
	MaxSuggestLimit     = 50
	// suggestFanout over-fetches candidates since several may share a display text.
	suggestFanout = 4
)

// EntityService binds the executor to one entity type's configuration and
// store handle.
type EntityService struct {
	cfg    *config.Config
	coll   db.Collection
	exec   *Executor
	index  IndexSearcher
	logger *zap.Logger
}

// NewEntityService creates the search service of t.
func NewEntityService(
	t entity.Type, coll db.Collection, exec *Executor, idx IndexSearcher, logger *zap.Logger,
) (*EntityService, error) {
	cfg, err := config.For(t)
	if err != nil {
		return nil, err
	}
	return &EntityService{
		cfg:    cfg,
		coll:   coll,
		exec:   exec,
		index:  idx,
		logger: logger.Named(t.String()),
	}, nil
}

// Type returns the entity type served.
func (s *EntityService) Type() entity.Type { return s.cfg.Type }

// Config returns the search configuration served.
func (s *EntityService) Config() *config.Config { return s.cfg }

// Search runs q.
func (s *EntityService) Search(ctx context.Context, q query.Query) (result.Envelope, error) {
	return s.exec.Search(ctx, s.cfg, s.coll, q)
}

// Suggest returns up to limit distinct primary texts starting words that
// begin with partial. Partials shorter than the configured minimum yield
// nothing without touching the index or store.
func (s *EntityService) Suggest(ctx context.Context, partial string, limit int) ([]result.Suggestion, error) {
	partial = strings.TrimSpace(partial)
	if utf8.RuneCountInString(partial) < s.cfg.Suggest.MinLength {
		return []result.Suggestion{}, nil
	}
	if utf8.RuneCountInString(partial) > query.MaxQueryLength {
		return nil, domain.NewValidationError("q", fmt.Sprintf("too long (max %d chars)", query.MaxQueryLength))
	}
	limit = clampSuggestLimit(limit)

	cands, err := s.index.Search(s.cfg.Type, partial, limit*suggestFanout)
	if err == nil && !cands.Empty() {
		return s.fromProjections(s.index.Documents(s.cfg.Type, cands.IDs), limit), nil
	}
	if err != nil && !errors.Is(err, domain.ErrIndexNotReady) {
		logger.FromContextOr(ctx, s.logger).Warn("Suggestion index lookup failed, using store", zap.Error(err))
	}

	primary := []config.Field{{Name: s.cfg.Suggest.Primary}}
	docs, err := s.coll.Find(ctx, querybuilder.TextSearchQuery(partial, primary), db.FindOptions{
		Limit:    limit * suggestFanout,
		Sort:     querybuilder.Sort(s.cfg.DefaultSort),
		Populate: querybuilder.Lookups(s.cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: suggest %s: %w", domain.ErrStore, s.cfg.Type, err)
	}
	return s.fromDocuments(docs, limit), nil
}

func clampSuggestLimit(limit int) int {
	if limit <= 0 {
		return DefaultSuggestLimit
	}
	return min(limit, MaxSuggestLimit)
}

func (s *EntityService) fromProjections(docs []index.Document, limit int) []result.Suggestion {
	out := make([]result.Suggestion, 0, limit)
	seen := make(map[string]bool, limit)
	for _, d := range docs {
		text := d.Fields[s.cfg.Suggest.Primary]
		key := strings.ToLower(text)
		if text == "" || seen[key] {
			continue
		}
		seen[key] = true
		sg := result.Suggestion{
			Text:       text,
			Secondary:  d.Fields[s.cfg.Suggest.Secondary],
			EntityType: s.cfg.Type,
		}
		for _, m := range s.cfg.Suggest.Metadata {
			if v, ok := d.Fields[m]; ok {
				if sg.Metadata == nil {
					sg.Metadata = make(map[string]any, len(s.cfg.Suggest.Metadata))
				}
				sg.Metadata[m] = v
			}
		}
		out = append(out, sg)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (s *EntityService) fromDocuments(docs []db.Document, limit int) []result.Suggestion {
	proj := make([]index.Document, len(docs))
	for i, d := range docs {
		fields := map[string]string{}
		for _, name := range append([]string{s.cfg.Suggest.Primary, s.cfg.Suggest.Secondary}, s.cfg.Suggest.Metadata...) {
			if name == "" {
				continue
			}
			if v := d.String(name); v != "" {
				fields[name] = v
			}
		}
		proj[i] = index.Document{ID: d.ID(), Fields: fields}
	}
	return s.fromProjections(proj, limit)
}
