package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/cardex/internal/db"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStore_PutGetRemove(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Put(ctx, "cards", db.Document{"_id": "c1", "cardName": "Pikachu"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	doc, err := s.Get(ctx, "cards", "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.String("cardName") != "Pikachu" {
		t.Errorf("cardName = %q, want Pikachu", doc.String("cardName"))
	}

	if err := s.Remove(ctx, "cards", "c1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Get(ctx, "cards", "c1"); !errors.Is(err, db.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := s.Remove(ctx, "cards", "c1"); !errors.Is(err, db.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound on second remove, got %v", err)
	}
}

func TestStore_LoadIsolatesCollections(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, d := range []db.Document{{"_id": "b"}, {"_id": "a"}} {
		if err := s.Put(ctx, "cards", d); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if err := s.Put(ctx, "cardsets", db.Document{"_id": "x"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	docs, err := s.Load(ctx, "cards")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].ID() != "a" || docs[1].ID() != "b" {
		t.Errorf("expected key order [a b], got [%s %s]", docs[0].ID(), docs[1].ID())
	}
}

func TestStore_CollectionQuery(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_ = s.Put(ctx, "sets", db.Document{"_id": "s1", "setName": "Base Set", "year": 1999})
	_ = s.Put(ctx, "sets", db.Document{"_id": "s2", "setName": "Jungle", "year": 1999})

	n, err := s.Collection("sets").Count(ctx, db.Query{"setName": db.Regex("^base", true)})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
}
