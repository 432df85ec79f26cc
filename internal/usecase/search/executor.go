package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/db/eval"
	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/search/config"
	"github.com/kailas-cloud/cardex/internal/domain/search/query"
	"github.com/kailas-cloud/cardex/internal/domain/search/result"
	"github.com/kailas-cloud/cardex/internal/logger"
	"github.com/kailas-cloud/cardex/internal/querybuilder"
	"github.com/kailas-cloud/cardex/internal/repository/searchcache"
)

// candidateFactor sizes the first index lookup relative to the page end. A
// lookup that leaves matches out is repeated over the whole match set.
const candidateFactor = 2

// Executor runs one search for one entity type: cache, index candidates,
// store fetch or store fallback, pagination.
type Executor struct {
	index    IndexSearcher
	cache    Cache
	recorder Recorder
	logger   *zap.Logger
}

// NewExecutor creates an executor. cache and recorder may be nil.
func NewExecutor(idx IndexSearcher, cache Cache, recorder Recorder, logger *zap.Logger) *Executor {
	return &Executor{
		index:    idx,
		cache:    cache,
		recorder: recorder,
		logger:   logger.Named("search"),
	}
}

// page is the outcome of one search path before envelope assembly.
type page struct {
	docs   []db.Document
	total  int
	method result.Method
}

// Search executes q against coll using cfg.
// Validation errors wrap domain.ErrValidation; store failures wrap domain.ErrStore.
// Index failures are logged and the store answers instead.
func (e *Executor) Search(ctx context.Context, cfg *config.Config, coll db.Collection, q query.Query) (result.Envelope, error) {
	filters, err := querybuilder.FilterConditions(cfg, q.Filters())
	if err != nil {
		e.fail(cfg, "validation")
		return result.Envelope{}, err
	}

	var params searchcache.Params
	cacheable := cfg.Cacheable && e.cache != nil
	if cacheable {
		params = cacheParams(cfg, q)
		if env, ok := e.cache.Get(ctx, params); ok {
			e.record(cfg, env.Metadata.Method, true, 0, len(env.Data))
			return env, nil
		}
	}

	start := time.Now()
	pg, err := e.run(ctx, cfg, coll, q, filters)
	if err != nil {
		e.fail(cfg, "store")
		return result.Envelope{}, fmt.Errorf("%w: search %s: %w", domain.ErrStore, cfg.Type, err)
	}
	elapsed := time.Since(start)

	env := result.NewEnvelope(toItems(pg.docs, pg.method), pg.total, q.Offset(), q.Limit(), result.Metadata{
		Method:     pg.method,
		EntityType: cfg.Type,
		ElapsedMS:  float64(elapsed.Microseconds()) / 1000,
	})

	if cacheable && len(env.Data) > 0 {
		e.cache.Set(ctx, params, env)
	}
	e.record(cfg, pg.method, false, elapsed, len(env.Data))
	return env, nil
}

func (e *Executor) run(ctx context.Context, cfg *config.Config, coll db.Collection, q query.Query, filters db.Query) (page, error) {
	if q.HasText() && len(cfg.SearchableFields()) > 0 {
		cands, err := e.index.Search(cfg.Type, q.Text(), candidateFactor*(q.Offset()+q.Limit()))
		if err == nil && cands.Truncated() {
			// Totals and ranking are computed over every match.
			cands, err = e.index.Search(cfg.Type, q.Text(), cands.Total)
		}
		switch {
		case err != nil:
			e.logIndexError(ctx, cfg, err)
		case !cands.Empty():
			pg, err := e.indexPath(ctx, cfg, coll, q, filters, cands.IDs)
			if err != nil {
				return page{}, err
			}
			if pg.total > 0 {
				return pg, nil
			}
			logger.FromContextOr(ctx, e.logger).Debug("Index candidates filtered out, using store",
				zap.Stringer("type", cfg.Type), zap.Int("candidates", len(cands.IDs)))
		}
	}
	return e.storePath(ctx, cfg, coll, q, filters)
}

func (e *Executor) logIndexError(ctx context.Context, cfg *config.Config, err error) {
	log := logger.FromContextOr(ctx, e.logger)
	if errors.Is(err, domain.ErrIndexNotReady) {
		log.Debug("Index not ready, using store", zap.Stringer("type", cfg.Type))
		return
	}
	log.Warn("Index lookup failed, using store", zap.Stringer("type", cfg.Type), zap.Error(err))
	e.fail(cfg, "index")
}

// indexPath fetches the candidates that also satisfy the filters, scores and pages them.
func (e *Executor) indexPath(
	ctx context.Context, cfg *config.Config, coll db.Collection,
	q query.Query, filters db.Query, ids []string,
) (page, error) {
	match := db.Merge(filters, db.Query{db.IDField: db.In(ids...)})

	var docs []db.Document
	var err error
	if cfg.Scoring.Algorithm == config.Aggregation {
		docs, err = coll.Aggregate(ctx, querybuilder.PipelineWithMatch(cfg, q.Text(), match, q.Sort()))
		if err != nil {
			return page{}, fmt.Errorf("aggregate candidates: %w", err)
		}
	} else {
		docs, err = coll.Find(ctx, match, db.FindOptions{Populate: e.lookups(cfg, q)})
		if err != nil {
			return page{}, fmt.Errorf("find candidates: %w", err)
		}
		scoreInProcess(cfg, docs, q)
	}

	return page{
		docs:   eval.Page(docs, q.Offset(), q.Limit()),
		total:  len(docs),
		method: result.MethodIndex,
	}, nil
}

// storePath queries the store directly. The wildcard and the empty text take
// separate branches; both reduce to the filter conditions alone.
func (e *Executor) storePath(
	ctx context.Context, cfg *config.Config, coll db.Collection,
	q query.Query, filters db.Query,
) (page, error) {
	var match db.Query
	if q.IsWildcard() {
		match = filters
	} else {
		match = querybuilder.FilteredQuery(q.Text(), cfg.SearchableFields(), filters)
	}

	if cfg.Scoring.Algorithm == config.Aggregation {
		p := querybuilder.PipelineWithMatch(cfg, q.Text(), match, q.Sort())
		docs, err := coll.Aggregate(ctx, querybuilder.Paginate(p, q.Offset(), q.Limit()))
		if err != nil {
			return page{}, fmt.Errorf("aggregate: %w", err)
		}
		counted, err := coll.Aggregate(ctx, querybuilder.CountPipeline(p))
		if err != nil {
			return page{}, fmt.Errorf("count: %w", err)
		}
		total := 0
		if len(counted) > 0 {
			n, _ := counted[0].Number(querybuilder.CountField)
			total = int(n)
		}
		return page{docs: docs, total: total, method: result.MethodStore}, nil
	}

	if q.HasText() {
		docs, err := coll.Find(ctx, match, db.FindOptions{
			Sort:     querybuilder.Sort(cfg.DefaultSort),
			Populate: e.lookups(cfg, q),
		})
		if err != nil {
			return page{}, fmt.Errorf("find: %w", err)
		}
		scoreInProcess(cfg, docs, q)
		return page{docs: eval.Page(docs, q.Offset(), q.Limit()), total: len(docs), method: result.MethodStore}, nil
	}

	docs, err := coll.Find(ctx, match, db.FindOptions{
		Skip:     q.Offset(),
		Limit:    q.Limit(),
		Sort:     querybuilder.ResultSort(cfg, false, q.Sort()),
		Populate: e.lookups(cfg, q),
	})
	if err != nil {
		return page{}, fmt.Errorf("find: %w", err)
	}
	total, err := coll.Count(ctx, match)
	if err != nil {
		return page{}, fmt.Errorf("count: %w", err)
	}
	return page{docs: docs, total: total, method: result.MethodStore}, nil
}

func scoreInProcess(cfg *config.Config, docs []db.Document, q query.Query) {
	querybuilder.ClientSideScore(cfg, docs, q.Text())
	if len(q.Sort()) > 0 {
		eval.SortDocuments(docs, querybuilder.Sort(q.Sort()))
	}
}

func (e *Executor) lookups(cfg *config.Config, q query.Query) []db.Lookup {
	if !q.Populate() {
		return nil
	}
	return querybuilder.Lookups(cfg)
}

func toItems(docs []db.Document, method result.Method) []result.Item {
	items := make([]result.Item, len(docs))
	for i, d := range docs {
		score, _ := d.Number(querybuilder.ScoreField)
		delete(d, querybuilder.ScoreField)
		items[i] = result.Item{Document: map[string]any(d), Score: score, Relevance: method}
	}
	return items
}

func cacheParams(cfg *config.Config, q query.Query) searchcache.Params {
	return searchcache.Params{
		Entity:   cfg.Type,
		Text:     q.Text(),
		Filters:  q.Filters(),
		Limit:    q.Limit(),
		Offset:   q.Offset(),
		Sort:     q.Sort(),
		Populate: q.Populate(),
	}
}

func (e *Executor) record(cfg *config.Config, m result.Method, cached bool, d time.Duration, n int) {
	if e.recorder != nil {
		e.recorder.SearchCompleted(cfg.Type, m, cached, d, n)
	}
}

func (e *Executor) fail(cfg *config.Config, reason string) {
	if e.recorder != nil {
		e.recorder.SearchFailed(cfg.Type, reason)
	}
}
