package config

import (
	"fmt"

	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
)

// Scoring constants. Match points dominate the capped bonuses so that an
// exact primary match always outranks a substring match, which in turn
// outranks a secondary-field-only match.
const (
	exactPoints        = 100
	prefixPoints       = 50
	substringPoints    = 25
	wordBoundaryPoints = 10
	secondaryPoints    = 5
	bonusCap           = 5

	popularityDivisor   = 1000
	inversePriceBase    = 10000
	availabilityDivisor = 10
	inverseLengthBase   = 10
)

var table = [...]Config{
	entity.Cards: {
		Type:       entity.Cards,
		Collection: "cards",
		Fields: []Field{
			{Name: "cardName", Weight: 10, ExactBonus: exactPoints, Primary: true},
			{Name: "cardNumber", Weight: 5, ExactBonus: 50},
			{Name: "variety", Weight: 3, ExactBonus: 20},
		},
		Population: &Population{
			From:         entity.Sets,
			LocalField:   "setId",
			ForeignField: "_id",
			As:           "set",
			Fields:       []Field{{Name: "setName", Weight: 2}},
		},
		Filters: []Filter{
			{Param: "setId", Field: "setId", Kind: FilterDirect},
			{Param: "setName", Field: "set.setName", Kind: FilterRegex},
			{Param: "cardNumber", Field: "cardNumber", Kind: FilterDirect},
			{Param: "variety", Field: "variety", Kind: FilterRegex},
			{Param: "minGraded", Field: "totalGraded", Kind: FilterRange, Bound: Min},
		},
		Scoring: Scoring{
			Algorithm: Aggregation,
			Stages: []Stage{
				{Kind: StageExact, Field: "cardName", Points: exactPoints},
				{Kind: StagePrefix, Field: "cardName", Points: prefixPoints},
				{Kind: StageSubstring, Field: "cardName", Points: substringPoints},
				{Kind: StageWordBoundary, Field: "cardName", Points: wordBoundaryPoints},
				{Kind: StageSubstring, Field: "set.setName", Points: secondaryPoints},
				{Kind: StagePopularity, Field: "totalGraded", Divisor: popularityDivisor, Max: bonusCap},
				{Kind: StageInverseLength, Field: "cardName", Base: inverseLengthBase, Max: bonusCap},
			},
		},
		DefaultSort: []SortKey{{Field: "cardName"}, {Field: "cardNumber"}},
		QuerySort:   []SortKey{{Field: "score", Desc: true}, {Field: "cardName"}},
		Suggest: Suggestion{
			Primary:   "cardName",
			Secondary: "set.setName",
			Metadata:  []string{"cardNumber", "variety"},
			MinLength: 2,
		},
		Cacheable: true,
	},
	entity.Products: {
		Type:       entity.Products,
		Collection: "products",
		Fields: []Field{
			{Name: "productName", Weight: 10, ExactBonus: exactPoints, Primary: true},
			{Name: "setName", Weight: 3},
			{Name: "category", Weight: 2},
		},
		Computed: []Computed{
			{Name: "priceNumeric", Source: "price", Kind: ComputeNumber},
			{Name: "isAvailable", Source: "available", Kind: ComputePositive},
		},
		Filters: []Filter{
			{Param: "category", Field: "category", Kind: FilterDirect},
			{Param: "setName", Field: "setName", Kind: FilterRegex},
			{Param: "minPrice", Field: "priceNumeric", Kind: FilterRange, Bound: Min, Computed: true},
			{Param: "maxPrice", Field: "priceNumeric", Kind: FilterRange, Bound: Max, Computed: true},
			{Param: "available", Field: "isAvailable", Kind: FilterBoolean, Computed: true},
		},
		Scoring: Scoring{
			Algorithm: Aggregation,
			Stages: []Stage{
				{Kind: StageExact, Field: "productName", Points: exactPoints},
				{Kind: StagePrefix, Field: "productName", Points: prefixPoints},
				{Kind: StageSubstring, Field: "productName", Points: substringPoints},
				{Kind: StageWordBoundary, Field: "productName", Points: wordBoundaryPoints},
				{Kind: StageSubstring, Field: "setName", Points: secondaryPoints},
				{Kind: StageInversePrice, Field: "priceNumeric", Base: inversePriceBase, Max: bonusCap},
				{Kind: StageAvailability, Field: "available", Divisor: availabilityDivisor, Max: bonusCap},
			},
		},
		DefaultSort: []SortKey{{Field: "productName"}, {Field: "_id"}},
		QuerySort:   []SortKey{{Field: "score", Desc: true}, {Field: "productName"}},
		Suggest: Suggestion{
			Primary:   "productName",
			Secondary: "category",
			Metadata:  []string{"setName", "price"},
			MinLength: 2,
		},
		Cacheable: true,
	},
	entity.Sets: {
		Type:       entity.Sets,
		Collection: "sets",
		Fields: []Field{
			{Name: "setName", Weight: 10, ExactBonus: exactPoints, Primary: true},
			{Name: "year", Weight: 2, Numeric: true},
			{Name: "totalCards", Weight: 1, Numeric: true},
		},
		Filters: []Filter{
			{Param: "year", Field: "year", Kind: FilterNumber},
			{Param: "minYear", Field: "year", Kind: FilterRange, Bound: Min},
			{Param: "maxYear", Field: "year", Kind: FilterRange, Bound: Max},
			{Param: "setName", Field: "setName", Kind: FilterRegex},
		},
		Scoring: Scoring{
			Algorithm: Simple,
			Fields: []FieldScore{
				{Field: "setName", Exact: exactPoints, Prefix: prefixPoints, Substring: substringPoints},
				{Field: "year", Exact: 20},
			},
			Bonuses:  []Bonus{{Field: "totalGraded", Divisor: popularityDivisor, Max: bonusCap}},
			TieBreak: []SortKey{{Field: "year", Desc: true}, {Field: "setName"}},
		},
		DefaultSort: []SortKey{{Field: "year", Desc: true}, {Field: "setName"}},
		QuerySort:   []SortKey{{Field: "score", Desc: true}, {Field: "year", Desc: true}},
		Suggest: Suggestion{
			Primary:   "setName",
			Secondary: "year",
			Metadata:  []string{"totalCards"},
			MinLength: 2,
		},
	},
}

// For returns the configuration of t.
func For(t entity.Type) (*Config, error) {
	if !t.IsValid() || int(t) >= len(table) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEntity, t)
	}
	return &table[t], nil
}

// MustFor is For for types known at compile time.
func MustFor(t entity.Type) *Config {
	c, err := For(t)
	if err != nil {
		panic(err)
	}
	return c
}

// CollectionOf returns the store collection name of t.
func CollectionOf(t entity.Type) string {
	if c, err := For(t); err == nil {
		return c.Collection
	}
	return t.String()
}
