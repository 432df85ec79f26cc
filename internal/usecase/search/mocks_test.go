package search

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/db/memory"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/domain/search/result"
	"github.com/kailas-cloud/cardex/internal/index"
	"github.com/kailas-cloud/cardex/internal/repository/catalog"
)

// --- mocks ---

type mockIndex struct {
	SearchFn    func(t entity.Type, text string, limit int) (index.Candidates, error)
	DocumentsFn func(t entity.Type, ids []string) []index.Document
}

func (m *mockIndex) Search(t entity.Type, text string, limit int) (index.Candidates, error) {
	return m.SearchFn(t, text, limit)
}

func (m *mockIndex) Documents(t entity.Type, ids []string) []index.Document {
	if m.DocumentsFn == nil {
		return nil
	}
	return m.DocumentsFn(t, ids)
}

type mockRecorder struct {
	mu        sync.Mutex
	completed []result.Method
	cached    int
	failures  []string
}

func (r *mockRecorder) SearchCompleted(_ entity.Type, m result.Method, cached bool, _ time.Duration, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, m)
	if cached {
		r.cached++
	}
}

func (r *mockRecorder) SearchFailed(_ entity.Type, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, reason)
}

// failingCollection fails every read and counts the attempts.
type failingCollection struct {
	db.Collection
	err   error
	calls atomic.Int32
}

func (c *failingCollection) Find(context.Context, db.Query, db.FindOptions) ([]db.Document, error) {
	c.calls.Add(1)
	return nil, c.err
}

func (c *failingCollection) Count(context.Context, db.Query) (int, error) {
	c.calls.Add(1)
	return 0, c.err
}

func (c *failingCollection) Aggregate(context.Context, db.Pipeline) ([]db.Document, error) {
	c.calls.Add(1)
	return nil, c.err
}

// --- fixtures ---

func seededStore() *memory.Store {
	s := memory.NewStore()
	s.Seed("sets",
		db.Document{"_id": "base1", "setName": "Base Set", "year": 1999, "totalCards": 102, "totalGraded": 9000},
		db.Document{"_id": "jungle", "setName": "Jungle", "year": 1999, "totalCards": 64},
		db.Document{"_id": "fossil", "setName": "Fossil", "year": 1999, "totalCards": 62},
		db.Document{"_id": "neo1", "setName": "Neo Genesis", "year": 2000, "totalCards": 111},
		db.Document{"_id": "swsh1", "setName": "Sword & Shield", "year": 2020, "totalCards": 202},
		db.Document{"_id": "sv1", "setName": "Scarlet & Violet", "year": 2023, "totalCards": 198},
	)
	s.Seed("cards",
		db.Document{"_id": "c1", "cardName": "Pikachu V", "cardNumber": "43", "setId": "swsh1"},
		db.Document{"_id": "c2", "cardName": "Pikachu VMAX", "cardNumber": "44", "setId": "swsh1"},
		db.Document{"_id": "c3", "cardName": "Charizard VMAX", "cardNumber": "20", "setId": "swsh1", "totalGraded": 4200},
		db.Document{"_id": "c4", "cardName": "Charizard", "cardNumber": "4", "setId": "base1", "variety": "Holo"},
		db.Document{"_id": "c5", "cardName": "Pikachu", "cardNumber": "60", "setId": "jungle"},
		db.Document{"_id": "c6", "cardName": "Pikachu", "cardNumber": "58", "setId": "base1"},
		db.Document{"_id": "c7", "cardName": "Bulbasaur", "cardNumber": "44", "setId": "base1"},
	)
	s.Seed("products",
		db.Document{"_id": "p1", "productName": "Base Set Booster Pack", "category": "Boosters", "setName": "Base Set", "price": "129.99", "available": 3},
		db.Document{"_id": "p2", "productName": "Jungle Booster Pack", "category": "Boosters", "setName": "Jungle", "price": "89.50", "available": 0},
		db.Document{"_id": "p3", "productName": "Pikachu V Box", "category": "Boxes", "setName": "Sword & Shield", "price": "24.99", "available": 10},
		db.Document{"_id": "p4", "productName": "Charizard Single", "category": "Singles", "setName": "Base Set", "price": "350", "available": 1},
		db.Document{"_id": "p5", "productName": "Fossil Booster Pack", "category": "Boosters", "setName": "Fossil", "price": "79,00", "available": 5},
	)
	return s
}

type fixture struct {
	store    *memory.Store
	repo     *catalog.Repo
	index    *index.Manager
	exec     *Executor
	recorder *mockRecorder
}

func newFixture(t *testing.T, cache Cache) *fixture {
	t.Helper()
	store := seededStore()
	repo := catalog.New(store)
	idx := index.New(repo, nil, zap.NewNop())
	if err := idx.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize index: %v", err)
	}
	rec := &mockRecorder{}
	return &fixture{
		store:    store,
		repo:     repo,
		index:    idx,
		exec:     NewExecutor(idx, cache, rec, zap.NewNop()),
		recorder: rec,
	}
}

func (f *fixture) service(t *testing.T, et entity.Type) *EntityService {
	t.Helper()
	return f.serviceWith(t, et, f.exec, f.index)
}

func (f *fixture) serviceWith(t *testing.T, et entity.Type, exec *Executor, idx IndexSearcher) *EntityService {
	t.Helper()
	s, err := NewEntityService(et, f.repo.Collection(et), exec, idx, zap.NewNop())
	if err != nil {
		t.Fatalf("new entity service: %v", err)
	}
	return s
}

func (f *fixture) unified(t *testing.T) *Unified {
	t.Helper()
	return NewUnified(zap.NewNop(),
		f.service(t, entity.Cards), f.service(t, entity.Products), f.service(t, entity.Sets))
}

func ids(env result.Envelope) []string { return env.IDs() }
