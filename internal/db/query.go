package db

// Query is a filter object. Keys are field paths mapped to an equality value
// or an operator object; the logical keys OpOr and OpAnd hold []Query.
type Query map[string]any

// Operator keys understood by every backend.
const (
	OpRegex   = "$regex"
	OpOptions = "$options"
	OpIn      = "$in"
	OpNe      = "$ne"
	OpGT      = "$gt"
	OpGTE     = "$gte"
	OpLT      = "$lt"
	OpLTE     = "$lte"
	OpExists  = "$exists"
	OpOr      = "$or"
	OpAnd     = "$and"
)

// Regex builds a {$regex, $options} operator object. The pattern is used as is.
func Regex(pattern string, caseInsensitive bool) Query {
	q := Query{OpRegex: pattern}
	if caseInsensitive {
		q[OpOptions] = "i"
	}
	return q
}

// In builds an {$in: values} operator object.
func In[T any](values ...T) Query {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Query{OpIn: vs}
}

// Or joins alternatives. A single alternative is returned unwrapped.
func Or(qs ...Query) Query {
	switch len(qs) {
	case 0:
		return Query{}
	case 1:
		return qs[0]
	}
	return Query{OpOr: qs}
}

// And joins conjuncts. A single conjunct is returned unwrapped.
func And(qs ...Query) Query {
	switch len(qs) {
	case 0:
		return Query{}
	case 1:
		return qs[0]
	}
	return Query{OpAnd: qs}
}

// Merge copies the keys of others into a new query; later keys overwrite.
func Merge(qs ...Query) Query {
	out := Query{}
	for _, q := range qs {
		for k, v := range q {
			out[k] = v
		}
	}
	return out
}

// SortField orders by one field.
type SortField struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// Sort is an ordered list of sort keys.
type Sort []SortField

// Asc and Desc are shorthand constructors.
func Asc(field string) SortField  { return SortField{Field: field} }
func Desc(field string) SortField { return SortField{Field: field, Desc: true} }

// Lookup joins a related collection into each document.
type Lookup struct {
	From         string
	LocalField   string
	ForeignField string
	// As names the embedded field. The joined document is embedded as a single
	// object (unwound); missing joins leave the field absent.
	As string
}
