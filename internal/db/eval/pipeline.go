package eval

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/cardex/internal/db"
)

// Source loads every document of a named collection; used to resolve joins.
type Source func(ctx context.Context, collection string) ([]db.Document, error)

// Populate embeds joined documents per lookup. docs are modified in place.
func Populate(ctx context.Context, docs []db.Document, lookups []db.Lookup, src Source) error {
	for _, l := range lookups {
		foreign, err := src(ctx, l.From)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", l.From, err)
		}
		byKey := make(map[string]db.Document, len(foreign))
		for _, f := range foreign {
			byKey[f.String(l.ForeignField)] = f
		}
		for _, d := range docs {
			key := d.String(l.LocalField)
			if key == "" {
				continue
			}
			if f, ok := byKey[key]; ok {
				d[l.As] = map[string]any(f.Clone())
			}
		}
	}
	return nil
}

// Run executes a pipeline over docs. Input documents are cloned before any
// stage mutates them.
func Run(ctx context.Context, docs []db.Document, p db.Pipeline, src Source) ([]db.Document, error) {
	cur := make([]db.Document, len(docs))
	for i, d := range docs {
		cur[i] = d.Clone()
	}

	for _, stage := range p {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		switch s := stage.(type) {
		case db.ComputeStage:
			for _, d := range cur {
				compute(d, s.Fields)
			}
		case db.LookupStage:
			err = Populate(ctx, cur, []db.Lookup{s.Lookup}, src)
		case db.MatchStage:
			cur, err = Filter(cur, s.Query)
		case db.ScoreStage:
			for _, d := range cur {
				d[s.Field] = Score(d, s.Terms)
			}
		case db.SortStage:
			SortDocuments(cur, s.Sort)
		case db.SkipStage:
			cur = Page(cur, s.N, 0)
		case db.LimitStage:
			cur = Page(cur, 0, s.N)
		case db.CountStage:
			cur = []db.Document{{s.Field: float64(len(cur))}}
		default:
			err = fmt.Errorf("%w: unsupported stage %T", db.ErrInvalidQuery, stage)
		}
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func compute(d db.Document, fields []db.ComputedField) {
	for _, f := range fields {
		switch f.Kind {
		case db.ComputeToNumber:
			n, _ := d.Number(f.Source)
			d[f.Name] = n
		case db.ComputeIsPositive:
			n, ok := d.Number(f.Source)
			d[f.Name] = ok && n > 0
		case db.ComputeLength:
			d[f.Name] = float64(utf8.RuneCountInString(d.String(f.Source)))
		}
	}
}

// Score sums the contribution of every term for d.
func Score(d db.Document, terms []db.ScoreTerm) float64 {
	var total float64
	for _, t := range terms {
		total += term(d, t)
	}
	return total
}

func term(d db.Document, t db.ScoreTerm) float64 {
	switch t.Kind {
	case db.ScoreExact, db.ScorePrefix, db.ScoreSubstring, db.ScoreWordBoundary:
		if t.Text == "" {
			return 0
		}
		v := strings.ToLower(d.String(t.Field))
		if v == "" {
			return 0
		}
		var hit bool
		switch t.Kind {
		case db.ScoreExact:
			hit = v == t.Text
		case db.ScorePrefix:
			hit = strings.HasPrefix(v, t.Text)
		case db.ScoreSubstring:
			hit = strings.Contains(v, t.Text)
		default:
			hit = WordBoundaryMatch(v, t.Text)
		}
		if hit {
			return t.Points
		}
		return 0
	case db.ScorePopularity, db.ScoreAvailability:
		n, ok := d.Number(t.Field)
		if !ok || n <= 0 || t.Divisor <= 0 {
			return 0
		}
		return capAt(n/t.Divisor, t.Max)
	case db.ScoreInverseLength:
		n := utf8.RuneCountInString(d.String(t.Field))
		if n == 0 || t.Base <= 0 {
			return 0
		}
		return capAt(t.Base/float64(n), t.Max)
	case db.ScoreInversePrice:
		n, ok := d.Number(t.Field)
		if !ok || n <= 0 || t.Base <= 0 {
			return 0
		}
		return capAt(t.Base/n, t.Max)
	default:
		return 0
	}
}

func capAt(v, maxV float64) float64 {
	if maxV > 0 {
		return math.Min(v, maxV)
	}
	return v
}

// WordBoundaryMatch reports whether needle occurs in haystack at the start of a word.
// Both arguments are expected to be lower-cased.
func WordBoundaryMatch(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	from := 0
	for {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		pos := from + i
		if pos == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(haystack[:pos])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		from = pos + 1
	}
}
