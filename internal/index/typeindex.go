package index

import (
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/domain/search/config"
)

// Document is the searchable projection of an entity held by the index.
type Document struct {
	ID     string
	Fields map[string]string
}

type entry struct {
	doc   Document
	terms map[string]float64 // indexed token prefix -> best field weight
	whole map[string]float64 // folded field value -> exact-match bonus
}

// typeIndex is the inverted index of one entity type. Not safe for
// concurrent use; Manager guards it.
type typeIndex struct {
	fields   []config.Field
	extra    []string // suggestion fields kept in the projection but not indexed
	ords     map[string]uint32
	entries  map[uint32]*entry
	postings map[string]*roaring.Bitmap
	next     uint32
}

func newTypeIndex(cfg *config.Config) *typeIndex {
	fields := cfg.SearchableFields()
	indexed := make(map[string]bool, len(fields))
	for _, f := range fields {
		indexed[f.Name] = true
	}
	var extra []string
	for _, name := range append([]string{cfg.Suggest.Secondary}, cfg.Suggest.Metadata...) {
		if name != "" && !indexed[name] {
			extra = append(extra, name)
		}
	}
	return &typeIndex{
		fields:   fields,
		extra:    extra,
		ords:     make(map[string]uint32),
		entries:  make(map[uint32]*entry),
		postings: make(map[string]*roaring.Bitmap),
	}
}

func buildTypeIndex(cfg *config.Config, docs []db.Document) *typeIndex {
	ti := newTypeIndex(cfg)
	for _, d := range docs {
		ti.add(d)
	}
	return ti
}

// project keeps the searchable and suggestion fields of d.
func (ti *typeIndex) project(d db.Document) Document {
	p := Document{ID: d.ID(), Fields: make(map[string]string, len(ti.fields)+len(ti.extra))}
	for _, f := range ti.fields {
		if v := d.String(f.Name); v != "" {
			p.Fields[f.Name] = v
		}
	}
	for _, name := range ti.extra {
		if v := d.String(name); v != "" {
			p.Fields[name] = v
		}
	}
	return p
}

// add indexes d, replacing any previous version with the same id.
func (ti *typeIndex) add(d db.Document) {
	id := d.ID()
	if id == "" {
		return
	}
	ti.remove(id)

	p := ti.project(d)
	e := &entry{doc: p, terms: make(map[string]float64), whole: make(map[string]float64)}
	for _, f := range ti.fields {
		toks := tokenize(p.Fields[f.Name])
		if len(toks) > 0 {
			if b := exactBonus(f); b > e.whole[phrase(toks)] {
				e.whole[phrase(toks)] = b
			}
		}
		for _, tok := range toks {
			for _, pre := range prefixes(tok) {
				w := f.Weight
				if pre == tok {
					w *= 2
				}
				if w > e.terms[pre] {
					e.terms[pre] = w
				}
			}
		}
	}

	ord := ti.next
	ti.next++
	ti.ords[id] = ord
	ti.entries[ord] = e
	for term := range e.terms {
		bm, ok := ti.postings[term]
		if !ok {
			bm = roaring.New()
			ti.postings[term] = bm
		}
		bm.Add(ord)
	}
}

// remove drops id from every posting list. Ordinals are never reused.
func (ti *typeIndex) remove(id string) bool {
	ord, ok := ti.ords[id]
	if !ok {
		return false
	}
	e := ti.entries[ord]
	for term := range e.terms {
		if bm, ok := ti.postings[term]; ok {
			bm.Remove(ord)
			if bm.IsEmpty() {
				delete(ti.postings, term)
			}
		}
	}
	delete(ti.entries, ord)
	delete(ti.ords, id)
	return true
}

type hit struct {
	id    string
	score float64
}

// exactBonus is added when a whole field equals the query.
func exactBonus(f config.Field) float64 {
	if f.ExactBonus > 0 {
		return f.ExactBonus
	}
	return 4 * f.Weight
}

// phrase joins folded tokens into the form whole-field matches compare on.
func phrase(tokens []string) string { return strings.Join(tokens, " ") }

// search intersects the postings of every token and ranks by summed weight,
// with whole-field matches of query first. It returns at most limit ids
// and the size of the full match set.
func (ti *typeIndex) search(tokens []string, query string, limit int) ([]string, int) {
	bms := make([]*roaring.Bitmap, 0, len(tokens))
	for _, tok := range tokens {
		bm, ok := ti.postings[tok]
		if !ok {
			return nil, 0
		}
		bms = append(bms, bm)
	}
	matched := roaring.FastAnd(bms...)
	total := int(matched.GetCardinality())

	hits := make([]hit, 0, matched.GetCardinality())
	it := matched.Iterator()
	for it.HasNext() {
		e := ti.entries[it.Next()]
		var score float64
		for _, tok := range tokens {
			score += e.terms[tok]
		}
		score += e.whole[query]
		hits = append(hits, hit{id: e.doc.ID, score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids, total
}

func (ti *typeIndex) ids() []string {
	out := make([]string, 0, len(ti.ords))
	for id := range ti.ords {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (ti *typeIndex) document(id string) (Document, bool) {
	ord, ok := ti.ords[id]
	if !ok {
		return Document{}, false
	}
	return ti.entries[ord].doc, true
}
