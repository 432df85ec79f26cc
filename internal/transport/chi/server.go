// Package chi exposes the search and catalog use cases over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/domain/search/query"
	"github.com/kailas-cloud/cardex/internal/domain/search/result"
	"github.com/kailas-cloud/cardex/internal/repository/searchcache"
	cataloguc "github.com/kailas-cloud/cardex/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/cardex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/cardex/internal/usecase/search"
)

const maxBodyBytes = 1 << 20

// CacheAdmin inspects and clears the search cache.
type CacheAdmin interface {
	Stats() searchcache.Stats
	Clear(ctx context.Context) error
	InvalidateEntity(ctx context.Context, t entity.Type) (int, error)
}

// Server holds the HTTP handlers.
type Server struct {
	search  *searchuc.Unified
	catalog *cataloguc.Service
	health  *healthuc.Service
	cache   CacheAdmin
	logger  *zap.Logger
}

// NewServer creates an HTTP API server. cache may be nil.
func NewServer(
	search *searchuc.Unified,
	catalog *cataloguc.Service,
	health *healthuc.Service,
	cache CacheAdmin,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:  search,
		catalog: catalog,
		health:  health,
		cache:   cache,
		logger:  logger.Named("http"),
	}
}

// Mount registers every route on r.
func (s *Server) Mount(r gochi.Router) {
	r.Get("/health", s.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r gochi.Router) {
		r.Get("/search", s.UnifiedSearch)
		r.Get("/search/suggest", s.UnifiedSuggest)

		r.Route("/{entity}", func(r gochi.Router) {
			r.Get("/search", s.Search)
			r.Get("/suggest", s.Suggest)
			r.Get("/{id}", s.Get)
			r.Put("/{id}", s.Upsert)
			r.Delete("/{id}", s.Delete)
		})

		r.Route("/admin", func(r gochi.Router) {
			r.Post("/index/rebuild", s.RebuildIndex)
			r.Get("/cache", s.CacheStats)
			r.Delete("/cache", s.ClearCache)
		})
	})
}

func entityParam(r *http.Request) (entity.Type, error) {
	return entity.Parse(gochi.URLParam(r, "entity"))
}

// Search handles GET /api/v1/{entity}/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	svc, err := s.search.Service(t)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	v := r.URL.Query()
	page, limit, err := pagination(v)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	sortKeys, err := query.ParseSort(v.Get("sort"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	populate, err := populateParam(v)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	q, err := query.New(textParam(v), filterParams(v), query.Options{
		Limit:    limit,
		Offset:   (page - 1) * limit,
		Sort:     sortKeys,
		Populate: populate,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	env, err := svc.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, env.Data, envelopeMeta(env, page))
}

func envelopeMeta(env result.Envelope, page int) map[string]any {
	return map[string]any{
		"total":      env.Total,
		"page":       page,
		"limit":      env.Limit,
		"offset":     env.Offset,
		"hasMore":    env.HasMore,
		"method":     env.Metadata.Method,
		"cached":     env.Metadata.Cached,
		"elapsedMs":  env.Metadata.ElapsedMS,
		"entityType": env.Metadata.EntityType,
	}
}

// Suggest handles GET /api/v1/{entity}/suggest.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.suggest(w, r, []entity.Type{t})
}

// UnifiedSuggest handles GET /api/v1/search/suggest.
func (s *Server) UnifiedSuggest(w http.ResponseWriter, r *http.Request) {
	types, err := typesParam(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.suggest(w, r, types)
}

func (s *Server) suggest(w http.ResponseWriter, r *http.Request, types []entity.Type) {
	v := r.URL.Query()
	_, limit, err := pagination(v)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if v.Get("limit") == "" {
		limit = searchuc.DefaultSuggestLimit
	}
	out, err := s.search.Suggest(r.Context(), textParam(v), types, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out, map[string]any{"count": len(out)})
}

// UnifiedSearch handles GET /api/v1/search.
func (s *Server) UnifiedSearch(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	types, err := typesParam(v)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	_, limit, err := pagination(v)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	res, err := s.search.Search(r.Context(), textParam(v), types, filterParams(v), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res.Results, map[string]any{
		"totalFound":   res.TotalFound,
		"perTypeLimit": res.PerType,
		"methods":      res.Methods,
		"elapsedMs":    res.ElapsedMS,
	})
}

// Get handles GET /api/v1/{entity}/{id}.
func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	doc, err := s.catalog.Get(r.Context(), t, gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, doc, nil)
}

// Upsert handles PUT /api/v1/{entity}/{id}.
func (s *Server) Upsert(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	var doc db.Document
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	stored, created, err := s.catalog.Upsert(r.Context(), t, gochi.URLParam(r, "id"), doc)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeData(w, status, stored, map[string]any{"created": created})
}

// Delete handles DELETE /api/v1/{entity}/{id}.
func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if err := s.catalog.Delete(r.Context(), t, gochi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RebuildIndex handles POST /api/v1/admin/index/rebuild.
func (s *Server) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.RebuildIndex(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"rebuilt": true}, nil)
}

// CacheStats handles GET /api/v1/admin/cache.
func (s *Server) CacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeData(w, http.StatusOK, searchcache.Stats{}, map[string]any{"enabled": false})
		return
	}
	writeData(w, http.StatusOK, s.cache.Stats(), map[string]any{"enabled": true})
}

// ClearCache handles DELETE /api/v1/admin/cache. With ?type= only that
// entity's searches are dropped.
func (s *Server) ClearCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	types, err := typesParam(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if len(types) == 0 {
		if err := s.cache.Clear(r.Context()); err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	removed := 0
	for _, t := range types {
		n, err := s.cache.InvalidateEntity(r.Context(), t)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		removed += n
	}
	writeData(w, http.StatusOK, map[string]any{"removed": removed}, nil)
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, Response{
		Success: report.Status != healthuc.Unhealthy,
		Data: map[string]any{
			"status":  report.Status,
			"checks":  report.Checks,
			"index":   report.Index,
			"version": report.Version,
		},
	})
}
