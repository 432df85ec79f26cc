package catalog

import (
	"context"
	"errors"
	"slices"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/db/memory"
	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/index"
	repo "github.com/kailas-cloud/cardex/internal/repository/catalog"
)

// --- Mocks ---

type mockCache struct {
	invalidated []entity.Type
	cleared     int
	err         error
}

func (m *mockCache) InvalidateEntity(_ context.Context, t entity.Type) (int, error) {
	m.invalidated = append(m.invalidated, t)
	return 1, m.err
}

func (m *mockCache) Clear(context.Context) error {
	m.cleared++
	return m.err
}

type mockIndexer struct {
	added      map[entity.Type][]string
	removed    []string
	rebuildErr error
}

func (m *mockIndexer) Add(t entity.Type, doc db.Document) {
	if m.added == nil {
		m.added = map[entity.Type][]string{}
	}
	m.added[t] = append(m.added[t], doc.ID())
}

func (m *mockIndexer) Remove(_ entity.Type, id string) { m.removed = append(m.removed, id) }

func (m *mockIndexer) Reinitialize(context.Context) error { return m.rebuildErr }

func seeded() *memory.Store {
	s := memory.NewStore()
	s.Seed("sets", db.Document{"_id": "base1", "setName": "Base Set", "year": 1999})
	s.Seed("cards",
		db.Document{"_id": "c1", "cardName": "Charizard", "setId": "base1"},
		db.Document{"_id": "c2", "cardName": "Blastoise", "setId": "base1"},
	)
	return s
}

func TestUpsert_CreatesAndIndexes(t *testing.T) {
	idx := &mockIndexer{}
	cache := &mockCache{}
	svc := New(repo.New(seeded()), idx, cache, zap.NewNop())

	doc, created, err := svc.Upsert(context.Background(), entity.Cards, "c3",
		db.Document{"cardName": "Venusaur", "setId": "base1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || doc.ID() != "c3" {
		t.Errorf("created=%v id=%q", created, doc.ID())
	}
	if doc.String("set.setName") != "Base Set" {
		t.Errorf("stored document should carry its join: %v", doc)
	}
	if !slices.Equal(idx.added[entity.Cards], []string{"c3"}) {
		t.Errorf("indexed = %v", idx.added)
	}
	if !slices.Equal(cache.invalidated, []entity.Type{entity.Cards}) {
		t.Errorf("invalidated = %v", cache.invalidated)
	}
}

func TestUpsert_GeneratesID(t *testing.T) {
	svc := New(repo.New(seeded()), &mockIndexer{}, nil, zap.NewNop())

	doc, created, err := svc.Upsert(context.Background(), entity.Sets, "", db.Document{"setName": "Team Rocket"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || len(doc.ID()) != 36 {
		t.Errorf("created=%v id=%q", created, doc.ID())
	}
}

func TestUpsert_ReindexesDependents(t *testing.T) {
	idx := &mockIndexer{}
	cache := &mockCache{}
	svc := New(repo.New(seeded()), idx, cache, zap.NewNop())

	_, created, err := svc.Upsert(context.Background(), entity.Sets, "base1",
		db.Document{"setName": "Base Set Unlimited", "year": 1999})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("existing set reported as created")
	}
	cards := idx.added[entity.Cards]
	slices.Sort(cards)
	if !slices.Equal(cards, []string{"c1", "c2"}) {
		t.Errorf("dependent cards re-indexed = %v", cards)
	}
	if !slices.Contains(cache.invalidated, entity.Cards) || !slices.Contains(cache.invalidated, entity.Sets) {
		t.Errorf("invalidated = %v", cache.invalidated)
	}
}

func TestUpsert_Validation(t *testing.T) {
	svc := New(repo.New(seeded()), &mockIndexer{}, nil, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name string
		id   string
		doc  db.Document
	}{
		{"empty", "c9", db.Document{}},
		{"missing primary", "c9", db.Document{"cardNumber": "4"}},
		{"primary not a string", "c9", db.Document{"cardName": 4}},
		{"id mismatch", "c9", db.Document{"_id": "c8", "cardName": "Mew"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Upsert(ctx, entity.Cards, tt.id, tt.doc)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestUpsert_DropsEmbeddedJoin(t *testing.T) {
	store := seeded()
	svc := New(repo.New(store), &mockIndexer{}, nil, zap.NewNop())

	_, _, err := svc.Upsert(context.Background(), entity.Cards, "c1", db.Document{
		"cardName": "Charizard", "setId": "base1", "set": map[string]any{"setName": "Forged"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := store.Get(context.Background(), "cards", "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := raw["set"]; ok {
		t.Errorf("joined copy persisted: %v", raw)
	}
}

func TestDelete(t *testing.T) {
	idx := &mockIndexer{}
	cache := &mockCache{}
	svc := New(repo.New(seeded()), idx, cache, zap.NewNop())
	ctx := context.Background()

	if err := svc.Delete(ctx, entity.Cards, "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(idx.removed, []string{"c1"}) || !slices.Equal(cache.invalidated, []entity.Type{entity.Cards}) {
		t.Errorf("removed=%v invalidated=%v", idx.removed, cache.invalidated)
	}

	if err := svc.Delete(ctx, entity.Cards, "c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, entity.Cards, "c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_ReindexesDependents(t *testing.T) {
	store := seeded()
	r := repo.New(store)
	idx := index.New(r, nil, zap.NewNop())
	ctx := context.Background()
	if err := idx.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	cache := &mockCache{}
	svc := New(r, idx, cache, zap.NewNop())

	if cands, _ := idx.Search(entity.Cards, "base", 10); len(cands.IDs) != 2 {
		t.Fatalf("cards found by set name before delete = %v", cands.IDs)
	}
	if err := svc.Delete(ctx, entity.Sets, "base1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if cands, _ := idx.Search(entity.Cards, "base", 10); !cands.Empty() {
		t.Errorf("cards still found by deleted set name: %v", cands.IDs)
	}
	if cands, _ := idx.Search(entity.Cards, "charizard", 10); !slices.Equal(cands.IDs, []string{"c1"}) {
		t.Errorf("dependent card dropped from index: %v", cands.IDs)
	}
	if !slices.Contains(cache.invalidated, entity.Cards) || !slices.Contains(cache.invalidated, entity.Sets) {
		t.Errorf("invalidated = %v", cache.invalidated)
	}
}

func TestUnknownEntity(t *testing.T) {
	svc := New(repo.New(seeded()), &mockIndexer{}, nil, zap.NewNop())
	if err := svc.Delete(context.Background(), entity.Type(9), "x"); !errors.Is(err, domain.ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestRebuildIndex(t *testing.T) {
	cache := &mockCache{}
	svc := New(repo.New(seeded()), &mockIndexer{}, cache, zap.NewNop())
	if err := svc.RebuildIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.cleared != 1 {
		t.Errorf("cleared = %d", cache.cleared)
	}

	failing := New(repo.New(seeded()), &mockIndexer{rebuildErr: errors.New("store down")}, cache, zap.NewNop())
	if err := failing.RebuildIndex(context.Background()); !errors.Is(err, domain.ErrStore) {
		t.Errorf("expected ErrStore, got %v", err)
	}
	if cache.cleared != 1 {
		t.Error("cache must survive a failed rebuild")
	}
}

func TestWithIndexManager(t *testing.T) {
	store := seeded()
	r := repo.New(store)
	idx := index.New(r, nil, zap.NewNop())
	if err := idx.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	svc := New(r, idx, nil, zap.NewNop())
	ctx := context.Background()

	if _, _, err := svc.Upsert(ctx, entity.Sets, "base1", db.Document{"setName": "Legendary Collection"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	cands, err := idx.Search(entity.Cards, "legendary", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	slices.Sort(cands.IDs)
	if !slices.Equal(cands.IDs, []string{"c1", "c2"}) {
		t.Errorf("cards found by renamed set = %v", cands.IDs)
	}
}
