// Package query holds the validated, request-scoped search query.
package query

import (
	"fmt"
	"maps"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/search/config"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search text length in characters.
	MaxQueryLength = 200
	DefaultLimit   = 20
	MaxLimit       = 100
	// MaxOffset bounds how deep pagination may go.
	MaxOffset = 10000
	// Wildcard matches everything and applies filters only.
	Wildcard = "*"
)

var sortFieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Options are the pagination and shaping knobs of a query.
type Options struct {
	Limit    int
	Offset   int
	Sort     []config.SortKey
	Populate bool
}

// Query is a validated search request for one entity type.
type Query struct {
	text     string
	filters  map[string]string
	limit    int
	offset   int
	sort     []config.SortKey
	populate bool
}

// New validates and normalizes search parameters.
// Defaults: limit=20, clamped to 100. Text is trimmed.
func New(text string, filters map[string]string, opts Options) (Query, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > MaxQueryLength {
		return Query{}, domain.NewValidationError("q", fmt.Sprintf("too long (max %d chars)", MaxQueryLength))
	}
	if opts.Offset < 0 || opts.Offset > MaxOffset {
		return Query{}, domain.NewValidationError("offset", fmt.Sprintf("must be between 0 and %d", MaxOffset))
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	for _, s := range opts.Sort {
		if !sortFieldRe.MatchString(s.Field) {
			return Query{}, domain.NewValidationError("sort", fmt.Sprintf("invalid field %q", s.Field))
		}
	}

	f := make(map[string]string, len(filters))
	for k, v := range filters {
		if v = strings.TrimSpace(v); v != "" {
			f[k] = v
		}
	}

	return Query{
		text:     text,
		filters:  f,
		limit:    limit,
		offset:   opts.Offset,
		sort:     opts.Sort,
		populate: opts.Populate,
	}, nil
}

// ParseSort parses "field,-other" into sort keys; a leading "-" means descending.
func ParseSort(s string) ([]config.SortKey, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var keys []config.SortKey
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		part = strings.TrimPrefix(part, "-")
		if !sortFieldRe.MatchString(part) {
			return nil, domain.NewValidationError("sort", fmt.Sprintf("invalid field %q", part))
		}
		keys = append(keys, config.SortKey{Field: part, Desc: desc})
	}
	return keys, nil
}

// Text returns the trimmed search text, possibly empty or the wildcard.
func (q *Query) Text() string { return q.text }

// IsWildcard reports whether the text is the match-all sentinel.
func (q *Query) IsWildcard() bool { return q.text == Wildcard }

// HasText reports whether the query carries real search text.
func (q *Query) HasText() bool { return q.text != "" && !q.IsWildcard() }

// Filters returns a copy of the raw filter parameters.
func (q *Query) Filters() map[string]string { return maps.Clone(q.filters) }

// Limit returns the page size.
func (q *Query) Limit() int { return q.limit }

// Offset returns the number of results to skip.
func (q *Query) Offset() int { return q.offset }

// Sort returns the caller's sort override, if any.
func (q *Query) Sort() []config.SortKey { return q.sort }

// Populate reports whether joined documents should be embedded.
func (q *Query) Populate() bool { return q.populate }

// WithFilter returns a copy of q with one more filter parameter.
func (q Query) WithFilter(param, value string) Query {
	f := maps.Clone(q.filters)
	if f == nil {
		f = map[string]string{}
	}
	f[param] = value
	q.filters = f
	return q
}
