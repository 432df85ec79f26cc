// Package index keeps one in-memory inverted index per entity type and
// answers token lookups with ranked candidate document ids.
package index

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/domain/search/config"
)

// Loader returns every document of a type with joins resolved.
type Loader interface {
	LoadAll(ctx context.Context, t entity.Type) ([]db.Document, error)
}

// Observer receives index size changes (metrics hook).
type Observer interface {
	IndexSize(t entity.Type, docs int)
}

// Candidates are ranked document ids returned by an index lookup.
// Total counts every match, including those cut off by the limit.
type Candidates struct {
	IDs   []string
	Total int
}

// Truncated reports whether the limit dropped matches.
func (c Candidates) Truncated() bool { return c.Total > len(c.IDs) }

// change is an incremental update recorded while a build is loading.
type change struct {
	t      entity.Type
	doc    db.Document
	id     string
	remove bool
}

// Empty reports whether the lookup found nothing.
func (c Candidates) Empty() bool { return len(c.IDs) == 0 }

// Manager owns the per-type indexes. Readers never mutate them; rebuilds
// build fresh indexes and swap them in under the write lock.
type Manager struct {
	loader   Loader
	observer Observer
	logger   *zap.Logger

	mu          sync.RWMutex
	indexes     map[entity.Type]*typeIndex
	builtAt     time.Time
	building    bool
	pending     []change
	initialized atomic.Bool
	group       singleflight.Group
}

// New creates an empty, uninitialized manager. observer may be nil.
func New(loader Loader, observer Observer, logger *zap.Logger) *Manager {
	return &Manager{
		loader:   loader,
		observer: observer,
		logger:   logger.Named("index"),
		indexes:  make(map[entity.Type]*typeIndex),
	}
}

// Initialized reports whether a build has completed.
func (m *Manager) Initialized() bool { return m.initialized.Load() }

// Initialize builds every index once. Concurrent callers share one in-flight
// build; a failed build leaves nothing behind and the next call retries.
// The build ignores cancellation of ctx.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.initialized.Load() {
		return nil
	}
	_, err, shared := m.group.Do("build", func() (any, error) {
		if m.initialized.Load() {
			return nil, nil
		}
		return nil, m.build(context.WithoutCancel(ctx))
	})
	if shared {
		m.logger.Debug("Joined in-flight index build")
	}
	return err
}

// Reinitialize rebuilds every index from the store and replaces the current
// ones. On failure the previous indexes stay in place.
func (m *Manager) Reinitialize(ctx context.Context) error {
	_, err, _ := m.group.Do("build", func() (any, error) {
		return nil, m.build(context.WithoutCancel(ctx))
	})
	return err
}

func (m *Manager) build(ctx context.Context) error {
	start := time.Now()
	m.mu.Lock()
	m.building = true
	m.pending = nil
	m.mu.Unlock()

	types := entity.All()
	built := make([]*typeIndex, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			cfg, err := config.For(t)
			if err != nil {
				return &Error{Op: OpBuild, Type: t, Err: err}
			}
			docs, err := m.loader.LoadAll(gctx, t)
			if err != nil {
				return &Error{Op: OpBuild, Type: t, Err: err}
			}
			built[i] = buildTypeIndex(cfg, docs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.mu.Lock()
		m.building = false
		m.pending = nil
		m.mu.Unlock()
		m.logger.Error("Index build failed", zap.Error(err))
		return err
	}

	m.mu.Lock()
	for i, t := range types {
		m.indexes[t] = built[i]
	}
	replayed := len(m.pending)
	for _, c := range m.pending {
		m.applyLocked(c)
	}
	m.building = false
	m.pending = nil
	sizes := make(map[entity.Type]int, len(types))
	for _, t := range types {
		sizes[t] = m.sizeLocked(t)
	}
	m.builtAt = time.Now()
	m.initialized.Store(true)
	m.mu.Unlock()

	for t, n := range sizes {
		m.observe(t, n)
	}
	if replayed > 0 {
		m.logger.Debug("Replayed changes made during build", zap.Int("changes", replayed))
	}
	m.logger.Info("Indexes built",
		zap.Any("documents", m.Stats()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (m *Manager) observe(t entity.Type, n int) {
	if m.observer != nil {
		m.observer.IndexSize(t, n)
	}
}

// Add indexes or re-indexes doc. No-op before initialization unless a build
// is loading, in which case the change is applied once the build lands.
func (m *Manager) Add(t entity.Type, doc db.Document) {
	m.update(change{t: t, doc: doc, id: doc.ID()})
}

// Remove drops id from the index. Same timing rules as Add.
func (m *Manager) Remove(t entity.Type, id string) {
	m.update(change{t: t, id: id, remove: true})
}

func (m *Manager) update(c change) {
	m.mu.Lock()
	if m.building {
		m.pending = append(m.pending, c)
	}
	if !m.initialized.Load() {
		m.mu.Unlock()
		return
	}
	changed := m.applyLocked(c)
	n := m.sizeLocked(c.t)
	m.mu.Unlock()
	if changed {
		m.observe(c.t, n)
	}
}

func (m *Manager) applyLocked(c change) bool {
	ti, ok := m.indexes[c.t]
	if !ok {
		return false
	}
	if c.remove {
		return ti.remove(c.id)
	}
	ti.add(c.doc)
	return true
}

func (m *Manager) sizeLocked(t entity.Type) int {
	if ti, ok := m.indexes[t]; ok {
		return len(ti.ords)
	}
	return 0
}

// Search returns up to limit ranked candidate ids for text, plus the size of
// the full match set. A limit of zero or less returns every match. Every
// token must match a prefix of some searchable field. Blank text yields no
// candidates.
func (m *Manager) Search(t entity.Type, text string, limit int) (Candidates, error) {
	if _, err := config.For(t); err != nil {
		return Candidates{}, &Error{Op: OpSearch, Type: t, Err: err}
	}
	if !m.initialized.Load() {
		return Candidates{}, &Error{Op: OpSearch, Type: t, Err: domain.ErrIndexNotReady}
	}

	folded := tokenize(text)
	query := phrase(folded)
	tokens := dedupe(folded)
	if len(tokens) == 0 {
		m.logger.Debug("Blank index query", zap.Stringer("type", t), zap.String("text", text))
		return Candidates{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	ti, ok := m.indexes[t]
	if !ok {
		return Candidates{}, &Error{Op: OpSearch, Type: t, Err: fmt.Errorf("no index for %s", t)}
	}
	ids, total := ti.search(tokens, query, limit)
	return Candidates{IDs: ids, Total: total}, nil
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// Documents returns the indexed projections of ids, in order, skipping unknown ids.
func (m *Manager) Documents(t entity.Type, ids []string) []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ti, ok := m.indexes[t]
	if !ok {
		return nil
	}
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := ti.document(id); ok {
			out = append(out, d)
		}
	}
	return out
}

// IDs returns the sorted document ids indexed for t.
func (m *Manager) IDs(t entity.Type) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ti, ok := m.indexes[t]; ok {
		return ti.ids()
	}
	return nil
}

// Stats returns the number of indexed documents per type.
func (m *Manager) Stats() map[entity.Type]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[entity.Type]int, len(m.indexes))
	for t, ti := range m.indexes {
		out[t] = len(ti.ords)
	}
	return out
}

// BuiltAt returns when the current indexes were built.
func (m *Manager) BuiltAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.builtAt
}
