package querybuilder

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/db/eval"
	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/domain/search/config"
)

func TestTextSearchQuery_Blank(t *testing.T) {
	for _, text := range []string{"", "   \t"} {
		if q := TextSearchQuery(text, config.MustFor(entity.Cards).Fields); len(q) != 0 {
			t.Errorf("TextSearchQuery(%q) = %v, want match-all", text, q)
		}
	}
}

func TestTextSearchQuery_RegexSafety(t *testing.T) {
	fields := []config.Field{{Name: "cardName"}}
	q := TextSearchQuery("Char.*zard (V)", fields)

	literal := db.Document{"cardName": "Dark Char.*zard (V) promo"}
	other := db.Document{"cardName": "Charizard V"}

	ok, err := eval.Match(literal, q)
	if err != nil {
		t.Fatalf("pattern failed to compile: %v", err)
	}
	if !ok {
		t.Error("escaped tokens should match the literal text")
	}
	ok, err = eval.Match(other, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("metacharacters must not act as a wildcard")
	}
}

func TestTextSearchQuery_TokensAndFields(t *testing.T) {
	fields := config.MustFor(entity.Cards).SearchableFields()
	q := TextSearchQuery("pikachu base", fields)

	match := db.Document{"cardName": "Pikachu", "set": map[string]any{"setName": "Base Set"}}
	miss := db.Document{"cardName": "Pikachu", "set": map[string]any{"setName": "Jungle"}}

	if ok, _ := eval.Match(match, q); !ok {
		t.Error("each token may match a different field")
	}
	if ok, _ := eval.Match(miss, q); ok {
		t.Error("every token must match some field")
	}
}

func TestTextSearchQuery_NumericFieldSafety(t *testing.T) {
	fields := config.MustFor(entity.Sets).Fields

	words := TextSearchQuery("base", fields)
	if hasField(words, "year") || hasField(words, "totalCards") {
		t.Errorf("non-digit query must not touch numeric fields: %v", words)
	}

	digits := TextSearchQuery("1999", fields)
	if !hasField(digits, "year") {
		t.Errorf("digit query should match numeric fields: %v", digits)
	}
	ok, err := eval.Match(db.Document{"setName": "Base Set", "year": float64(1999)}, digits)
	if err != nil || !ok {
		t.Errorf("expected numeric equality match, ok=%v err=%v", ok, err)
	}
}

func hasField(q db.Query, field string) bool {
	for k, v := range q {
		if k == field {
			return true
		}
		switch t := v.(type) {
		case []db.Query:
			for _, sub := range t {
				if hasField(sub, field) {
					return true
				}
			}
		case db.Query:
			if hasField(t, field) {
				return true
			}
		}
	}
	return false
}

func TestFilteredQuery_FiltersWin(t *testing.T) {
	fields := []config.Field{{Name: "category"}}
	q := FilteredQuery("booster", fields, db.Query{"category": "Boosters"})
	if q["category"] != "Boosters" {
		t.Errorf("filter should overwrite text condition, got %v", q["category"])
	}
}

func TestFilterConditions(t *testing.T) {
	cfg := config.MustFor(entity.Products)
	q, err := FilterConditions(cfg, map[string]string{
		"category":  "Boosters",
		"minPrice":  "10",
		"maxPrice":  "99,5",
		"available": "true",
		"setName":   "Base (1st)",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q["category"] != "Boosters" {
		t.Errorf("category = %v", q["category"])
	}
	want := db.Query{db.OpGTE: 10.0, db.OpLTE: 99.5}
	if !reflect.DeepEqual(q["priceNumeric"], want) {
		t.Errorf("priceNumeric = %v, want %v", q["priceNumeric"], want)
	}
	if q["isAvailable"] != true {
		t.Errorf("isAvailable = %v", q["isAvailable"])
	}
	if ok, err := eval.Match(db.Document{"setName": "base (1st) edition"}, db.Query{"setName": q["setName"]}); err != nil || !ok {
		t.Errorf("regex filter should match escaped value, ok=%v err=%v", ok, err)
	}
}

func TestFilterConditions_Validation(t *testing.T) {
	tests := []struct {
		name    string
		typ     entity.Type
		filters map[string]string
	}{
		{"unknown param", entity.Cards, map[string]string{"color": "red"}},
		{"bad number", entity.Products, map[string]string{"minPrice": "cheap"}},
		{"bad boolean", entity.Products, map[string]string{"available": "maybe"}},
		{"bad year", entity.Sets, map[string]string{"year": "nineteen"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FilterConditions(config.MustFor(tc.typ), tc.filters)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestPipeline_StageOrder(t *testing.T) {
	products := Pipeline(config.MustFor(entity.Products), "booster", db.Query{}, nil)
	want := []string{"$addFields", "$match", "$score", "$sort"}
	if got := products.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("products stages = %v, want %v", got, want)
	}

	cards := Pipeline(config.MustFor(entity.Cards), "pikachu", db.Query{}, nil)
	want = []string{"$lookup", "$match", "$score", "$sort"}
	if got := cards.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("cards stages = %v, want %v", got, want)
	}

	count := CountPipeline(Paginate(cards, 10, 5))
	want = []string{"$lookup", "$match", "$count"}
	if got := count.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("count stages = %v, want %v", got, want)
	}
}

func TestPipeline_SortSelection(t *testing.T) {
	cfg := config.MustFor(entity.Cards)
	sortOf := func(p db.Pipeline) db.Sort {
		return p[len(p)-1].(db.SortStage).Sort
	}
	if got := sortOf(Pipeline(cfg, "mew", nil, nil)); got[0].Field != "score" {
		t.Errorf("text query should sort by score, got %v", got)
	}
	if got := sortOf(Pipeline(cfg, "*", nil, nil)); got[0].Field != "cardName" {
		t.Errorf("wildcard should use default sort, got %v", got)
	}
	override := []config.SortKey{{Field: "totalGraded", Desc: true}}
	if got := sortOf(Pipeline(cfg, "mew", nil, override)); got[0].Field != "totalGraded" {
		t.Errorf("override should win, got %v", got)
	}
}

// Exact primary > substring-only primary >= secondary-only.
func TestAggregationScoring_Monotonic(t *testing.T) {
	sets := []db.Document{
		{"_id": "s1", "setName": "Pikachu World Collection"},
		{"_id": "s2", "setName": "Base Set"},
	}
	src := func(context.Context, string) ([]db.Document, error) { return sets, nil }
	cards := []db.Document{
		{"_id": "exact", "cardName": "Pikachu", "setId": "s2"},
		{"_id": "substring", "cardName": "Flying Pikachu VMAX Rainbow", "setId": "s2", "totalGraded": 900000},
		{"_id": "secondary", "cardName": "Mew", "setId": "s1", "totalGraded": 900000},
	}

	cfg := config.MustFor(entity.Cards)
	out, err := eval.Run(context.Background(), cards, Pipeline(cfg, "Pikachu", nil, nil), src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	scores := map[string]float64{}
	for _, d := range out {
		scores[d.ID()], _ = d.Number(ScoreField)
	}
	if len(scores) != 3 {
		t.Fatalf("expected all three cards to match, got %v", scores)
	}
	if !(scores["exact"] > scores["substring"]) {
		t.Errorf("exact %v should beat substring %v", scores["exact"], scores["substring"])
	}
	if !(scores["substring"] >= scores["secondary"]) {
		t.Errorf("substring %v should be >= secondary %v", scores["substring"], scores["secondary"])
	}
	if out[0].ID() != "exact" {
		t.Errorf("exact match should rank first, got %s", out[0].ID())
	}
}

func TestClientSideScore_Sets(t *testing.T) {
	cfg := config.MustFor(entity.Sets)
	docs := []db.Document{
		{"_id": "contains", "setName": "Legendary Base Collection", "year": 2002},
		{"_id": "bonus", "setName": "Jungle", "year": 1999, "totalGraded": 50000},
		{"_id": "exact", "setName": "Base", "year": 1999},
		{"_id": "tie-old", "setName": "Fossil", "year": 1999},
	}
	out := ClientSideScore(cfg, docs, "BASE")

	got := make([]string, len(out))
	for i, d := range out {
		got[i] = d.ID()
	}
	want := []string{"exact", "contains", "bonus", "tie-old"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if s := out[2][ScoreField]; s != 5.0 {
		t.Errorf("bonus should be capped at 5, got %v", s)
	}
}
