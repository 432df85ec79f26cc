// Package entity enumerates the searchable reference-data types.
package entity

import (
	"fmt"

	"github.com/kailas-cloud/cardex/internal/domain"
)

// Type is a searchable entity type. The set of values is closed.
type Type int

// Entity type constants.
const (
	Cards Type = iota
	Products
	Sets

	count
)

var names = [count]string{
	Cards:    "cards",
	Products: "products",
	Sets:     "sets",
}

// All returns every entity type in declaration order.
func All() []Type {
	return []Type{Cards, Products, Sets}
}

// Count returns the number of entity types.
func Count() int { return int(count) }

// Parse resolves an entity type by its name.
func Parse(s string) (Type, error) {
	for i, n := range names {
		if n == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrUnknownEntity, s)
}

// ParseList resolves a list of names, dropping duplicates and keeping order.
func ParseList(ss []string) ([]Type, error) {
	seen := make(map[Type]bool, len(ss))
	out := make([]Type, 0, len(ss))
	for _, s := range ss {
		t, err := Parse(s)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// IsValid reports whether t is one of the declared types.
func (t Type) IsValid() bool { return t >= 0 && t < count }

// String returns the collection name of the type.
func (t Type) String() string {
	if !t.IsValid() {
		return fmt.Sprintf("entity(%d)", int(t))
	}
	return names[t]
}

// MarshalText implements encoding.TextMarshaler so types work as JSON map keys.
func (t Type) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownEntity, int(t))
	}
	return []byte(names[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
