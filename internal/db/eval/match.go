// Package eval evaluates db.Query objects and db.Pipeline stages against
// in-process documents. Backends that only persist raw documents (memory,
// redis, badger) use it to answer find/count/aggregate.
package eval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/kailas-cloud/cardex/internal/db"
)

// regexCacheSize bounds the compiled patterns kept across queries.
const regexCacheSize = 1024

var regexCache = newRegexCache() // options+pattern -> compiled

func newRegexCache() *ristretto.Cache[string, *regexp.Regexp] {
	c, err := ristretto.NewCache(&ristretto.Config[string, *regexp.Regexp]{
		NumCounters: 10 * regexCacheSize,
		MaxCost:     regexCacheSize,
		BufferItems: 64,
		Metrics:     true,
		// Every entry costs one slot.
		IgnoreInternalCost: true,
	})
	if err != nil {
		panic(fmt.Sprintf("eval: regex cache: %v", err))
	}
	return c
}

// Match reports whether doc satisfies q. An empty query matches everything.
func Match(doc db.Document, q db.Query) (bool, error) {
	for key, want := range q {
		var (
			ok  bool
			err error
		)
		switch key {
		case db.OpOr:
			ok, err = matchOr(doc, want)
		case db.OpAnd:
			ok, err = matchAnd(doc, want)
		default:
			ok, err = matchField(doc, key, want)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Filter returns the documents matching q, preserving order.
func Filter(docs []db.Document, q db.Query) ([]db.Document, error) {
	if len(q) == 0 {
		return docs, nil
	}
	out := make([]db.Document, 0, len(docs))
	for _, d := range docs {
		ok, err := Match(d, q)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func subQueries(v any) ([]db.Query, error) {
	switch t := v.(type) {
	case []db.Query:
		return t, nil
	case []any:
		out := make([]db.Query, 0, len(t))
		for _, item := range t {
			q, ok := asQuery(item)
			if !ok {
				return nil, fmt.Errorf("%w: logical operand %T", db.ErrInvalidQuery, item)
			}
			out = append(out, q)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: logical operator expects a list, got %T", db.ErrInvalidQuery, v)
	}
}

func matchOr(doc db.Document, v any) (bool, error) {
	qs, err := subQueries(v)
	if err != nil {
		return false, err
	}
	for _, q := range qs {
		ok, err := Match(doc, q)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return len(qs) == 0, nil
}

func matchAnd(doc db.Document, v any) (bool, error) {
	qs, err := subQueries(v)
	if err != nil {
		return false, err
	}
	for _, q := range qs {
		ok, err := Match(doc, q)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func asQuery(v any) (db.Query, bool) {
	switch t := v.(type) {
	case db.Query:
		return t, true
	case map[string]any:
		return db.Query(t), true
	default:
		return nil, false
	}
}

// isOperatorObject reports whether every key of q is a $-operator.
func isOperatorObject(q db.Query) bool {
	if len(q) == 0 {
		return false
	}
	for k := range q {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func matchField(doc db.Document, path string, want any) (bool, error) {
	got, present := doc.Lookup(path)

	ops, isQuery := asQuery(want)
	if !isQuery || !isOperatorObject(ops) {
		return present && equalAny(got, want), nil
	}

	for op, arg := range ops {
		var (
			ok  bool
			err error
		)
		switch op {
		case db.OpRegex:
			ok, err = matchRegex(got, present, arg, ops[db.OpOptions])
		case db.OpOptions:
			continue
		case db.OpIn:
			ok, err = matchIn(got, present, arg)
		case db.OpNe:
			ok = !present || !equalAny(got, arg)
		case db.OpGT, db.OpGTE, db.OpLT, db.OpLTE:
			ok = present && compareOp(op, got, arg)
		case db.OpExists:
			want, _ := arg.(bool)
			ok = present == want
		default:
			return false, fmt.Errorf("%w: unsupported operator %s", db.ErrInvalidQuery, op)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchRegex(got any, present bool, pattern, options any) (bool, error) {
	p, ok := pattern.(string)
	if !ok {
		return false, fmt.Errorf("%w: $regex expects a string, got %T", db.ErrInvalidQuery, pattern)
	}
	opts, _ := options.(string)
	re, err := compile(p, opts)
	if err != nil {
		return false, err
	}
	if !present || got == nil {
		return false, nil
	}
	if arr, isArr := got.([]any); isArr {
		for _, item := range arr {
			if re.MatchString(scalarString(item)) {
				return true, nil
			}
		}
		return false, nil
	}
	return re.MatchString(scalarString(got)), nil
}

func compile(pattern, options string) (*regexp.Regexp, error) {
	key := options + "\x00" + pattern
	if re, ok := regexCache.Get(key); ok {
		return re, nil
	}
	expr := pattern
	if strings.Contains(options, "i") {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", db.ErrInvalidQuery, err)
	}
	// Set may drop the entry; the next call compiles again.
	regexCache.Set(key, re, 1)
	return re, nil
}

func matchIn(got any, present bool, arg any) (bool, error) {
	var values []any
	switch t := arg.(type) {
	case []any:
		values = t
	case []string:
		for _, s := range t {
			values = append(values, s)
		}
	default:
		return false, fmt.Errorf("%w: $in expects a list, got %T", db.ErrInvalidQuery, arg)
	}
	if !present {
		return false, nil
	}
	for _, v := range values {
		if equalAny(got, v) {
			return true, nil
		}
	}
	return false, nil
}

// equalAny compares a stored value with a query value; arrays match when any element does.
func equalAny(got, want any) bool {
	if arr, ok := got.([]any); ok {
		for _, item := range arr {
			if equalScalar(item, want) {
				return true
			}
		}
		return false
	}
	return equalScalar(got, want)
}

func equalScalar(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := numeric(a); ok {
		if bf, ok := numeric(b); ok {
			return af == bf
		}
		return false
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return false
}

// numeric converts non-string numbers only; numeric strings stay strings for equality.
func numeric(v any) (float64, bool) {
	if _, isStr := v.(string); isStr {
		return 0, false
	}
	return db.ToNumber(v)
}

func compareOp(op string, got, arg any) bool {
	c, ok := compareValues(got, arg)
	if !ok {
		return false
	}
	switch op {
	case db.OpGT:
		return c > 0
	case db.OpGTE:
		return c >= 0
	case db.OpLT:
		return c < 0
	default:
		return c <= 0
	}
}

func scalarString(v any) string {
	return db.Document{"v": v}.String("v")
}
