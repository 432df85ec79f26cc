package config

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
)

func TestFor_EveryTypeHasConfig(t *testing.T) {
	for _, et := range entity.All() {
		c, err := For(et)
		if err != nil {
			t.Fatalf("For(%s): %v", et, err)
		}
		if c.Type != et {
			t.Errorf("table[%s].Type = %s", et, c.Type)
		}
		if c.PrimaryField() == "" {
			t.Errorf("%s: no primary field", et)
		}
		if c.Suggest.Primary != c.PrimaryField() {
			t.Errorf("%s: suggestion primary %q != primary field %q", et, c.Suggest.Primary, c.PrimaryField())
		}
	}
}

func TestFor_Unknown(t *testing.T) {
	if _, err := For(entity.Type(42)); !errors.Is(err, domain.ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestCacheableWhitelist(t *testing.T) {
	want := map[entity.Type]bool{entity.Cards: true, entity.Products: true, entity.Sets: false}
	for et, cacheable := range want {
		if MustFor(et).Cacheable != cacheable {
			t.Errorf("%s cacheable = %v, want %v", et, !cacheable, cacheable)
		}
	}
}

func TestSearchableFields_IncludesJoined(t *testing.T) {
	fields := MustFor(entity.Cards).SearchableFields()
	var found bool
	for _, f := range fields {
		if f.Name == "set.setName" {
			found = true
			if f.Primary {
				t.Error("joined field must not be primary")
			}
		}
	}
	if !found {
		t.Fatalf("set.setName missing from %v", fields)
	}
	if !MustFor(entity.Cards).IsJoinedPath("set.setName") {
		t.Error("set.setName should be a joined path")
	}
}

func TestFilterLookup(t *testing.T) {
	c := MustFor(entity.Products)
	f, ok := c.Filter("maxPrice")
	if !ok {
		t.Fatal("maxPrice filter missing")
	}
	if f.Kind != FilterRange || f.Bound != Max || !f.Computed {
		t.Errorf("unexpected maxPrice filter: %+v", f)
	}
	if _, ok := c.Filter("nope"); ok {
		t.Error("unexpected filter nope")
	}
}

func TestScoringAlgorithms(t *testing.T) {
	if MustFor(entity.Cards).Scoring.Algorithm != Aggregation {
		t.Error("cards should score in the pipeline")
	}
	if MustFor(entity.Sets).Scoring.Algorithm != Simple {
		t.Error("sets should score in process")
	}
}
