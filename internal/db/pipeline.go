package db

// Pipeline is an ordered list of aggregation stages.
type Pipeline []Stage

// Stage is one aggregation step. The set of stages is closed to this package.
type Stage interface {
	stage() string
}

// ComputeKind selects how a computed field is derived.
type ComputeKind int

const (
	// ComputeToNumber converts a string or number to float64 (0 when unparsable).
	ComputeToNumber ComputeKind = iota
	// ComputeIsPositive yields true when the numeric source is > 0.
	ComputeIsPositive
	// ComputeLength yields the character length of a string source.
	ComputeLength
)

// ComputedField derives Name from Source.
type ComputedField struct {
	Name   string
	Source string
	Kind   ComputeKind
}

// ComputeStage adds derived fields to every document.
type ComputeStage struct{ Fields []ComputedField }

// LookupStage joins a related collection.
type LookupStage struct{ Lookup Lookup }

// MatchStage filters documents.
type MatchStage struct{ Query Query }

// ScoreKind enumerates the numeric contributions of a ScoreStage.
type ScoreKind int

const (
	// ScoreExact adds Points when the field equals Text (case-insensitive).
	ScoreExact ScoreKind = iota
	// ScorePrefix adds Points when the field starts with Text.
	ScorePrefix
	// ScoreSubstring adds Points when the field contains Text.
	ScoreSubstring
	// ScoreWordBoundary adds Points when Text starts a word of the field.
	ScoreWordBoundary
	// ScorePopularity adds min(field/Divisor, Max).
	ScorePopularity
	// ScoreInverseLength adds min(Base/len(field), Max).
	ScoreInverseLength
	// ScoreInversePrice adds min(Base/field, Max) for positive prices.
	ScoreInversePrice
	// ScoreAvailability adds min(field/Divisor, Max).
	ScoreAvailability
)

// ScoreTerm is one conditional numeric expression.
type ScoreTerm struct {
	Kind    ScoreKind
	Field   string
	Text    string // lower-cased query for the match kinds
	Points  float64
	Divisor float64
	Base    float64
	Max     float64
}

// ScoreStage sums its terms into Field.
type ScoreStage struct {
	Field string
	Terms []ScoreTerm
}

// SortStage orders documents.
type SortStage struct{ Sort Sort }

// SkipStage drops the first N documents.
type SkipStage struct{ N int }

// LimitStage keeps at most N documents.
type LimitStage struct{ N int }

// CountStage replaces the stream with a single {Field: n} document.
type CountStage struct{ Field string }

func (ComputeStage) stage() string { return "$addFields" }
func (LookupStage) stage() string  { return "$lookup" }
func (MatchStage) stage() string   { return "$match" }
func (ScoreStage) stage() string   { return "$score" }
func (SortStage) stage() string    { return "$sort" }
func (SkipStage) stage() string    { return "$skip" }
func (LimitStage) stage() string   { return "$limit" }
func (CountStage) stage() string   { return "$count" }

// StageName returns the aggregation operator name of s.
func StageName(s Stage) string { return s.stage() }

// Names lists the operator names of the pipeline stages.
func (p Pipeline) Names() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s.stage()
	}
	return out
}
