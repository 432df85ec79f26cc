// Package querybuilder turns search text, filter parameters and an entity's
// search configuration into store queries and aggregation pipelines.
// Everything here is pure: no I/O, no logging.
package querybuilder

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/search/config"
	"github.com/kailas-cloud/cardex/internal/domain/search/query"
)

// ScoreField is the computed relevance field written by scoring.
const ScoreField = "score"

// IsWildcard reports whether text is the match-all sentinel.
func IsWildcard(text string) bool {
	return strings.TrimSpace(text) == query.Wildcard
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// TextSearchQuery matches every whitespace token (AND) in any of fields (OR)
// as an escaped, case-insensitive substring. Numeric fields take part only
// for all-digit tokens, as numeric equality. Blank text yields a match-all query.
func TextSearchQuery(text string, fields []config.Field) db.Query {
	tokens := strings.Fields(text)
	if len(tokens) == 0 || len(fields) == 0 {
		return db.Query{}
	}

	perToken := make([]db.Query, 0, len(tokens))
	for _, tok := range tokens {
		pattern := regexp.QuoteMeta(tok)
		conds := make([]db.Query, 0, len(fields))
		for _, f := range fields {
			if f.Numeric {
				if !isDigits(tok) {
					continue
				}
				n, err := strconv.Atoi(tok)
				if err != nil {
					continue
				}
				conds = append(conds, db.Query{f.Name: n})
				continue
			}
			conds = append(conds, db.Query{f.Name: db.Regex(pattern, true)})
		}
		if len(conds) == 0 {
			// No field can hold this token.
			conds = append(conds, db.Query{db.IDField: db.Query{db.OpIn: []any{}}})
		}
		perToken = append(perToken, db.Or(conds...))
	}
	return db.And(perToken...)
}

// FilteredQuery merges the text query with filter conditions. Filter keys
// win over text conditions on the same key.
func FilteredQuery(text string, fields []config.Field, filters db.Query) db.Query {
	return db.Merge(TextSearchQuery(text, fields), filters)
}

// FilterConditions maps raw request parameters to store conditions through the
// configuration's filter declarations. Unknown parameters and malformed numbers or
// booleans are validation errors.
func FilterConditions(cfg *config.Config, filters map[string]string) (db.Query, error) {
	params := make([]string, 0, len(filters))
	for p := range filters {
		params = append(params, p)
	}
	sort.Strings(params)

	out := db.Query{}
	for _, p := range params {
		raw := filters[p]
		f, ok := cfg.Filter(p)
		if !ok {
			return nil, domain.NewValidationError(p, fmt.Sprintf(
				"unknown filter for %s (allowed: %s)", cfg.Type, strings.Join(cfg.FilterParams(), ", ")))
		}

		switch f.Kind {
		case config.FilterDirect:
			out[f.Field] = raw
		case config.FilterNumber:
			n, err := parseNumber(p, raw)
			if err != nil {
				return nil, err
			}
			out[f.Field] = n
		case config.FilterRegex:
			out[f.Field] = db.Regex(regexp.QuoteMeta(raw), true)
		case config.FilterRange:
			n, err := parseNumber(p, raw)
			if err != nil {
				return nil, err
			}
			ops, _ := out[f.Field].(db.Query)
			if ops == nil {
				ops = db.Query{}
			}
			if f.Bound == config.Min {
				ops[db.OpGTE] = n
			} else {
				ops[db.OpLTE] = n
			}
			out[f.Field] = ops
		case config.FilterBoolean:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, domain.NewValidationError(p, fmt.Sprintf("expected boolean, got %q", raw))
			}
			out[f.Field] = b
		}
	}
	return out, nil
}

func parseNumber(param, raw string) (float64, error) {
	n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return 0, domain.NewValidationError(param, fmt.Sprintf("expected number, got %q", raw))
	}
	return n, nil
}

// Sort converts configured sort keys to a store sort.
func Sort(keys []config.SortKey) db.Sort {
	out := make(db.Sort, len(keys))
	for i, k := range keys {
		out[i] = db.SortField{Field: k.Field, Desc: k.Desc}
	}
	return out
}

// Lookups returns the joins declared by the configuration.
func Lookups(cfg *config.Config) []db.Lookup {
	if cfg.Population == nil {
		return nil
	}
	p := cfg.Population
	return []db.Lookup{{
		From:         config.CollectionOf(p.From),
		LocalField:   p.LocalField,
		ForeignField: p.ForeignField,
		As:           p.As,
	}}
}

// ResultSort picks the query-time sort when there is text, the default sort
// otherwise. A caller override replaces both.
func ResultSort(cfg *config.Config, hasText bool, override []config.SortKey) db.Sort {
	switch {
	case len(override) > 0:
		return Sort(override)
	case hasText:
		return Sort(cfg.QuerySort)
	default:
		return Sort(cfg.DefaultSort)
	}
}
