package querybuilder

import (
	"strings"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/db/eval"
	"github.com/kailas-cloud/cardex/internal/domain/search/config"
)

// CountField carries the total of a count pipeline.
const CountField = "total"

var stageKinds = map[config.StageKind]db.ScoreKind{
	config.StageExact:         db.ScoreExact,
	config.StagePrefix:        db.ScorePrefix,
	config.StageSubstring:     db.ScoreSubstring,
	config.StageWordBoundary:  db.ScoreWordBoundary,
	config.StagePopularity:    db.ScorePopularity,
	config.StageInverseLength: db.ScoreInverseLength,
	config.StageInversePrice:  db.ScoreInversePrice,
	config.StageAvailability:  db.ScoreAvailability,
}

var computeKinds = map[config.ComputeKind]db.ComputeKind{
	config.ComputeNumber:   db.ComputeToNumber,
	config.ComputePositive: db.ComputeIsPositive,
}

// Pipeline builds the aggregation for text plus filter conditions:
// computed fields, join, match, score, sort.
func Pipeline(cfg *config.Config, text string, filters db.Query, override []config.SortKey) db.Pipeline {
	return PipelineWithMatch(cfg, text, FilteredQuery(text, cfg.SearchableFields(), filters), override)
}

// PipelineWithMatch is Pipeline with a caller-built match stage, used when
// candidates come from the index.
func PipelineWithMatch(cfg *config.Config, text string, match db.Query, override []config.SortKey) db.Pipeline {
	p := make(db.Pipeline, 0, 5)

	if len(cfg.Computed) > 0 {
		fields := make([]db.ComputedField, len(cfg.Computed))
		for i, c := range cfg.Computed {
			fields[i] = db.ComputedField{Name: c.Name, Source: c.Source, Kind: computeKinds[c.Kind]}
		}
		p = append(p, db.ComputeStage{Fields: fields})
	}
	for _, l := range Lookups(cfg) {
		p = append(p, db.LookupStage{Lookup: l})
	}
	p = append(p, db.MatchStage{Query: match})
	p = append(p, db.ScoreStage{Field: ScoreField, Terms: ScoreTerms(cfg, text)})

	hasText := strings.TrimSpace(text) != "" && !IsWildcard(text)
	p = append(p, db.SortStage{Sort: ResultSort(cfg, hasText, override)})
	return p
}

// ScoreTerms turns the configured scoring stages into score terms for text.
func ScoreTerms(cfg *config.Config, text string) []db.ScoreTerm {
	needle := strings.ToLower(strings.TrimSpace(text))
	if IsWildcard(needle) {
		needle = ""
	}
	terms := make([]db.ScoreTerm, 0, len(cfg.Scoring.Stages))
	for _, s := range cfg.Scoring.Stages {
		terms = append(terms, db.ScoreTerm{
			Kind:    stageKinds[s.Kind],
			Field:   s.Field,
			Text:    needle,
			Points:  s.Points,
			Divisor: s.Divisor,
			Base:    s.Base,
			Max:     s.Max,
		})
	}
	return terms
}

// CountPipeline keeps the filtering prefix of p (everything before scoring)
// and counts the survivors into CountField.
func CountPipeline(p db.Pipeline) db.Pipeline {
	out := make(db.Pipeline, 0, len(p)+1)
	for _, s := range p {
		switch s.(type) {
		case db.ComputeStage, db.LookupStage, db.MatchStage:
			out = append(out, s)
		}
	}
	return append(out, db.CountStage{Field: CountField})
}

// Paginate appends skip and limit stages.
func Paginate(p db.Pipeline, offset, limit int) db.Pipeline {
	out := append(db.Pipeline{}, p...)
	if offset > 0 {
		out = append(out, db.SkipStage{N: offset})
	}
	if limit > 0 {
		out = append(out, db.LimitStage{N: limit})
	}
	return out
}

// ClientSideScore scores docs in process for simple configurations and sorts
// them by score, then by the configured tie-break. docs are modified in place.
func ClientSideScore(cfg *config.Config, docs []db.Document, text string) []db.Document {
	needle := strings.ToLower(strings.TrimSpace(text))
	if IsWildcard(needle) {
		needle = ""
	}
	for _, d := range docs {
		d[ScoreField] = clientScore(cfg, d, needle)
	}

	order := db.Sort{db.Desc(ScoreField)}
	order = append(order, Sort(cfg.Scoring.TieBreak)...)
	eval.SortDocuments(docs, order)
	return docs
}

func clientScore(cfg *config.Config, d db.Document, needle string) float64 {
	var score float64
	if needle != "" {
		for _, fs := range cfg.Scoring.Fields {
			v := strings.ToLower(d.String(fs.Field))
			if v == "" {
				continue
			}
			if v == needle {
				score += fs.Exact
			}
			if strings.HasPrefix(v, needle) {
				score += fs.Prefix
			}
			if strings.Contains(v, needle) {
				score += fs.Substring
			}
		}
	}
	for _, b := range cfg.Scoring.Bonuses {
		n, ok := d.Number(b.Field)
		if !ok || n <= 0 || b.Divisor <= 0 {
			continue
		}
		score += min(n/b.Divisor, b.Max)
	}
	return score
}
