package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/db/memory"
	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
)

func seeded() *memory.Store {
	s := memory.NewStore()
	s.Seed("sets",
		db.Document{"_id": "base1", "setName": "Base Set", "year": 1999},
		db.Document{"_id": "jungle", "setName": "Jungle", "year": 1999},
	)
	s.Seed("cards",
		db.Document{"_id": "c2", "cardName": "Pikachu", "setId": "jungle"},
		db.Document{"_id": "c1", "cardName": "Charizard", "setId": "base1"},
		db.Document{"_id": "c3", "cardName": "Missingno", "setId": "unknown"},
	)
	return s
}

func TestLoadAll_ResolvesJoins(t *testing.T) {
	r := New(seeded())
	docs, err := r.LoadAll(context.Background(), entity.Cards)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 3 || docs[0].ID() != "c1" {
		t.Fatalf("expected 3 cards ordered by id, got %v", docs)
	}
	if docs[0].String("set.setName") != "Base Set" {
		t.Errorf("set not joined: %v", docs[0])
	}
	if _, ok := docs[2]["set"]; ok {
		t.Errorf("dangling setId should leave set absent, got %v", docs[2]["set"])
	}
}

func TestLoadAll_UnknownType(t *testing.T) {
	r := New(seeded())
	if _, err := r.LoadAll(context.Background(), entity.Type(7)); !errors.Is(err, domain.ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestGet(t *testing.T) {
	r := New(seeded())
	ctx := context.Background()

	doc, err := r.Get(ctx, entity.Cards, "c2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.String("set.setName") != "Jungle" {
		t.Errorf("set not joined: %v", doc)
	}
	if _, err := r.Get(ctx, entity.Cards, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertDelete(t *testing.T) {
	r := New(seeded())
	ctx := context.Background()

	created, err := r.Upsert(ctx, entity.Sets, db.Document{"_id": "fossil", "setName": "Fossil"})
	if err != nil || !created {
		t.Fatalf("created=%v err=%v, want created", created, err)
	}
	created, err = r.Upsert(ctx, entity.Sets, db.Document{"_id": "fossil", "setName": "Fossil", "year": 1999})
	if err != nil || created {
		t.Fatalf("created=%v err=%v, want update", created, err)
	}
	if n, _ := r.Count(ctx, entity.Sets); n != 3 {
		t.Errorf("sets count = %d, want 3", n)
	}

	if err := r.Delete(ctx, entity.Sets, "fossil"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.Delete(ctx, entity.Sets, "fossil"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDependents(t *testing.T) {
	r := New(seeded())
	deps, err := r.Dependents(context.Background(), entity.Sets, "base1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cards := deps[entity.Cards]
	if len(cards) != 1 || cards[0].ID() != "c1" {
		t.Fatalf("dependents = %v", deps)
	}
	if cards[0].String("set.setName") != "Base Set" {
		t.Errorf("dependent not populated: %v", cards[0])
	}

	none, _ := r.Dependents(context.Background(), entity.Cards, "c1")
	if len(none) != 0 {
		t.Errorf("nothing joins cards, got %v", none)
	}
}
