package eval

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/cardex/internal/db"
)

// compareValues orders two scalars. Numbers (including numeric strings when
// the other side is a number) compare numerically, strings case-insensitively.
// ok is false when the values are not comparable.
func compareValues(a, b any) (int, bool) {
	if af, aok := db.ToNumber(a); aok {
		if bf, bok := db.ToNumber(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(strings.ToLower(as), strings.ToLower(bs)), true
	}
	return 0, false
}

// rank places missing values first, then numbers, then strings, then the rest.
func rank(v any, present bool) int {
	if !present || v == nil {
		return 0
	}
	switch v.(type) {
	case string:
		return 2
	case bool:
		return 3
	}
	if _, ok := db.ToNumber(v); ok {
		return 1
	}
	return 4
}

// Less reports whether a sorts before b under s.
func Less(a, b db.Document, s db.Sort) bool {
	for _, f := range s {
		av, aok := a.Lookup(f.Field)
		bv, bok := b.Lookup(f.Field)
		ra, rb := rank(av, aok), rank(bv, bok)
		c := 0
		switch {
		case ra != rb:
			if ra < rb {
				c = -1
			} else {
				c = 1
			}
		default:
			c, _ = compareValues(av, bv)
		}
		if c == 0 {
			continue
		}
		if f.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

// SortDocuments stable-sorts docs in place.
func SortDocuments(docs []db.Document, s db.Sort) {
	if len(s) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool { return Less(docs[i], docs[j], s) })
}

// Page applies skip and limit (limit <= 0 means unlimited).
func Page(docs []db.Document, skip, limit int) []db.Document {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(docs) {
		return []db.Document{}
	}
	docs = docs[skip:]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
