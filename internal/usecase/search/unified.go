package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/domain/search/query"
	"github.com/kailas-cloud/cardex/internal/domain/search/result"
)

// Unified fans one query out to several entity services and merges the
// envelopes.
type Unified struct {
	services map[entity.Type]*EntityService
	logger   *zap.Logger
}

// NewUnified creates a coordinator over services.
func NewUnified(logger *zap.Logger, services ...*EntityService) *Unified {
	m := make(map[entity.Type]*EntityService, len(services))
	for _, s := range services {
		m[s.Type()] = s
	}
	return &Unified{services: m, logger: logger.Named("unified")}
}

// Service returns the entity service of t.
func (u *Unified) Service(t entity.Type) (*EntityService, error) {
	s, ok := u.services[t]
	if !ok {
		return nil, domain.ErrUnknownEntity
	}
	return s, nil
}

// Cards returns the card service with its presets.
func (u *Unified) Cards() (CardService, error) {
	s, err := u.Service(entity.Cards)
	return CardService{s}, err
}

// Products returns the product service with its presets.
func (u *Unified) Products() (ProductService, error) {
	s, err := u.Service(entity.Products)
	return ProductService{s}, err
}

// Sets returns the set service with its presets.
func (u *Unified) Sets() (SetService, error) {
	s, err := u.Service(entity.Sets)
	return SetService{s}, err
}

// perType splits limit evenly, rounding up.
func perType(limit, n int) int {
	if n <= 0 {
		return 0
	}
	return (limit + n - 1) / n
}

// Search runs text against types in parallel with ceil(limit/len(types))
// results each. Empty types means every configured type. Each type receives
// only the filter parameters it declares; a parameter no requested type
// declares is a validation error. Types without a service yield an empty
// envelope.
func (u *Unified) Search(
	ctx context.Context, text string, types []entity.Type, filters map[string]string, limit int,
) (result.Unified, error) {
	start := time.Now()
	if len(types) == 0 {
		types = entity.All()
	}
	if limit <= 0 {
		limit = query.DefaultLimit
	}
	limit = min(limit, query.MaxLimit)
	per := perType(limit, len(types))

	queries := make([]query.Query, len(types))
	claimed := make(map[string]bool, len(filters))
	for i, t := range types {
		own := map[string]string{}
		if s, ok := u.services[t]; ok {
			for _, p := range s.Config().FilterParams() {
				if v, ok := filters[p]; ok {
					own[p] = v
					claimed[p] = true
				}
			}
		}
		q, err := query.New(text, own, query.Options{Limit: per})
		if err != nil {
			return result.Unified{}, err
		}
		queries[i] = q
	}
	if err := unclaimed(filters, claimed); err != nil {
		return result.Unified{}, err
	}

	envs := make([]result.Envelope, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		s, ok := u.services[t]
		if !ok {
			u.logger.Debug("No search service for type", zap.Stringer("type", t))
			envs[i] = result.NewEnvelope(nil, 0, 0, per, result.Metadata{EntityType: t})
			continue
		}
		g.Go(func() error {
			env, err := s.Search(gctx, queries[i])
			if err != nil {
				return err
			}
			envs[i] = env
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result.Unified{}, err
	}

	out := result.Unified{
		Results: make(map[entity.Type]result.Envelope, len(types)),
		Methods: make(map[entity.Type]result.Method, len(types)),
		PerType: per,
	}
	for i, t := range types {
		out.Results[t] = envs[i]
		out.Methods[t] = envs[i].Metadata.Method
		out.TotalFound += envs[i].Total
	}
	out.ElapsedMS = float64(time.Since(start).Microseconds()) / 1000
	return out, nil
}

func unclaimed(filters map[string]string, claimed map[string]bool) error {
	var bad []string
	for p, v := range filters {
		if strings.TrimSpace(v) != "" && !claimed[p] {
			bad = append(bad, p)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return domain.NewValidationError(bad[0], "unknown filter for the requested types")
}

// Suggest autocompletes partial. A single requested type answers alone;
// otherwise each type contributes ceil(limit/N) and the lists are merged in
// type order.
func (u *Unified) Suggest(
	ctx context.Context, partial string, types []entity.Type, limit int,
) ([]result.Suggestion, error) {
	if len(types) == 0 {
		types = entity.All()
	}
	limit = clampSuggestLimit(limit)
	if len(types) == 1 {
		s, ok := u.services[types[0]]
		if !ok {
			return []result.Suggestion{}, nil
		}
		return s.Suggest(ctx, partial, limit)
	}

	per := perType(limit, len(types))
	lists := make([][]result.Suggestion, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		s, ok := u.services[t]
		if !ok {
			continue
		}
		g.Go(func() error {
			sg, err := s.Suggest(gctx, partial, per)
			if err != nil {
				return err
			}
			lists[i] = sg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]result.Suggestion, 0, limit)
	for _, l := range lists {
		for _, sg := range l {
			if len(out) == limit {
				return out, nil
			}
			out = append(out, sg)
		}
	}
	return out, nil
}
