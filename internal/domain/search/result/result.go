// Package result defines search response envelopes and suggestions.
package result

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/kailas-cloud/cardex/internal/domain/entity"
)

// Method tells which path produced a result set.
type Method string

// Search methods.
const (
	MethodIndex Method = "index"
	MethodStore Method = "store"
)

// Reserved item keys added on top of the document fields.
const (
	ScoreKey     = "score"
	RelevanceKey = "searchRelevance"
)

// Item is one hit: the stored document plus its score and provenance.
type Item struct {
	Document  map[string]any
	Score     float64
	Relevance Method
}

// ID returns the document identifier.
func (i *Item) ID() string {
	id, _ := i.Document["_id"].(string)
	return id
}

// MarshalJSON flattens the document and appends score and searchRelevance.
func (i Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Document)+2)
	maps.Copy(out, i.Document)
	out[ScoreKey] = i.Score
	out[RelevanceKey] = i.Relevance
	return json.Marshal(out)
}

// UnmarshalJSON splits score and searchRelevance back out of the document.
func (i *Item) UnmarshalJSON(b []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("decode item: %w", err)
	}
	score, _ := doc[ScoreKey].(float64)
	rel, _ := doc[RelevanceKey].(string)
	delete(doc, ScoreKey)
	delete(doc, RelevanceKey)
	*i = Item{Document: doc, Score: score, Relevance: Method(rel)}
	return nil
}

// Metadata describes how an envelope was produced.
type Metadata struct {
	Method     Method      `json:"method"`
	EntityType entity.Type `json:"entityType"`
	ElapsedMS  float64     `json:"elapsedMs"`
	Cached     bool        `json:"cached"`
}

// Envelope is a paginated result set for one entity type.
type Envelope struct {
	Data     []Item   `json:"data"`
	Total    int      `json:"total"`
	Offset   int      `json:"offset"`
	Limit    int      `json:"limit"`
	HasMore  bool     `json:"hasMore"`
	Metadata Metadata `json:"metadata"`
}

// NewEnvelope builds an envelope and derives HasMore from offset, page and total.
func NewEnvelope(items []Item, total, offset, limit int, md Metadata) Envelope {
	if items == nil {
		items = []Item{}
	}
	return Envelope{
		Data:     items,
		Total:    total,
		Offset:   offset,
		Limit:    limit,
		HasMore:  offset+len(items) < total,
		Metadata: md,
	}
}

// IDs lists the identifiers of the items in order.
func (e *Envelope) IDs() []string {
	out := make([]string, len(e.Data))
	for i := range e.Data {
		out[i] = e.Data[i].ID()
	}
	return out
}

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Text       string         `json:"text"`
	Secondary  string         `json:"secondary,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	EntityType entity.Type    `json:"entityType"`
}

// Unified merges per-type envelopes of a fan-out search.
type Unified struct {
	Results    map[entity.Type]Envelope `json:"results"`
	TotalFound int                      `json:"totalFound"`
	Methods    map[entity.Type]Method   `json:"methods"`
	PerType    int                      `json:"perTypeLimit"`
	ElapsedMS  float64                  `json:"elapsedMs"`
}
