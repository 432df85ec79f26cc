package index

import (
	"fmt"

	"github.com/kailas-cloud/cardex/internal/domain/entity"
)

// Index operations for error context.
const (
	OpBuild  = "build"
	OpSearch = "search"
)

// Error is an index failure for one entity type.
type Error struct {
	Op   string
	Type entity.Type
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("index %s %s: %v", e.Op, e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
