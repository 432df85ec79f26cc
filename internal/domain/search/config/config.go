// Package config declares how each entity type is searched: which fields are
// indexed and matched, how related documents are joined, which request
// parameters filter results, and how matches are scored and sorted.
package config

import (
	"strings"

	"github.com/kailas-cloud/cardex/internal/domain/entity"
)

// Algorithm selects where scoring happens.
type Algorithm int

const (
	// Aggregation scores inside the store pipeline.
	Aggregation Algorithm = iota
	// Simple scores fetched documents in process.
	Simple
)

// Field is a searchable document field.
type Field struct {
	Name       string
	Weight     float64
	ExactBonus float64
	// Numeric fields are only matched by all-digit queries.
	Numeric bool
	// Primary marks the display field used for suggestions and exact-match ranking.
	Primary bool
}

// Population joins one related entity into each document.
type Population struct {
	From         entity.Type
	LocalField   string
	ForeignField string
	As           string
	// Fields of the joined document that are searchable, relative to As.
	Fields []Field
}

// FilterKind defines how a raw request parameter becomes a store condition.
type FilterKind int

const (
	// FilterDirect is string equality.
	FilterDirect FilterKind = iota
	// FilterNumber is numeric equality; the raw value must parse as a number.
	FilterNumber
	// FilterRegex is a case-insensitive substring match on the escaped value.
	FilterRegex
	// FilterRange bounds a numeric field; Bound chooses the side.
	FilterRange
	// FilterBoolean is equality with a parsed boolean.
	FilterBoolean
)

// Bound is the side of a range filter.
type Bound int

const (
	Min Bound = iota
	Max
)

// Filter maps one request parameter to a document field.
type Filter struct {
	Param string
	Field string
	Kind  FilterKind
	Bound Bound
	// Computed fields only exist after the pipeline's compute stage.
	Computed bool
}

// ComputeKind derives a field.
type ComputeKind int

const (
	ComputeNumber ComputeKind = iota
	ComputePositive
)

// Computed is a derived field added before matching.
type Computed struct {
	Name   string
	Source string
	Kind   ComputeKind
}

// StageKind enumerates scoring contributions.
type StageKind int

const (
	StageExact StageKind = iota
	StagePrefix
	StageSubstring
	StageWordBoundary
	StagePopularity
	StageInverseLength
	StageInversePrice
	StageAvailability
)

// Stage is one typed scoring contribution. Points apply to the match kinds;
// Divisor, Base and Max parameterize the numeric kinds.
type Stage struct {
	Kind    StageKind
	Field   string
	Points  float64
	Divisor float64
	Base    float64
	Max     float64
}

// FieldScore awards points for matches on one field in simple scoring.
type FieldScore struct {
	Field     string
	Exact     float64
	Prefix    float64
	Substring float64
}

// Bonus adds min(field/Divisor, Max) in simple scoring.
type Bonus struct {
	Field   string
	Divisor float64
	Max     float64
}

// SortKey orders by one field.
type SortKey struct {
	Field string
	Desc  bool
}

// Scoring describes how results are ranked.
type Scoring struct {
	Algorithm Algorithm
	Stages    []Stage      // aggregation
	Fields    []FieldScore // simple
	Bonuses   []Bonus      // simple
	TieBreak  []SortKey    // simple
}

// Suggestion formats autocomplete entries.
type Suggestion struct {
	Primary   string
	Secondary string
	Metadata  []string
	MinLength int
}

// Config is the immutable search declaration of one entity type.
type Config struct {
	Type        entity.Type
	Collection  string
	Fields      []Field
	Population  *Population
	Computed    []Computed
	Filters     []Filter
	Scoring     Scoring
	DefaultSort []SortKey
	QuerySort   []SortKey
	Suggest     Suggestion
	Cacheable   bool
}

// SearchableFields returns own fields followed by joined fields with their
// embedded path ("set.setName").
func (c *Config) SearchableFields() []Field {
	out := make([]Field, 0, len(c.Fields)+2)
	out = append(out, c.Fields...)
	if c.Population != nil {
		for _, f := range c.Population.Fields {
			f.Name = c.Population.As + "." + f.Name
			f.Primary = false
			out = append(out, f)
		}
	}
	return out
}

// PrimaryField returns the name of the primary display field.
func (c *Config) PrimaryField() string {
	for _, f := range c.Fields {
		if f.Primary {
			return f.Name
		}
	}
	if len(c.Fields) > 0 {
		return c.Fields[0].Name
	}
	return ""
}

// Filter looks up the filter declared for a request parameter.
func (c *Config) Filter(param string) (Filter, bool) {
	for _, f := range c.Filters {
		if f.Param == param {
			return f, true
		}
	}
	return Filter{}, false
}

// FilterParams lists the accepted filter parameter names.
func (c *Config) FilterParams() []string {
	out := make([]string, len(c.Filters))
	for i, f := range c.Filters {
		out[i] = f.Param
	}
	return out
}

// IsJoinedPath reports whether a field path points into the populated document.
func (c *Config) IsJoinedPath(path string) bool {
	return c.Population != nil && strings.HasPrefix(path, c.Population.As+".")
}
