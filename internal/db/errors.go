package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound      = errors.New("db: key not found")
	ErrDocumentNotFound = errors.New("db: document not found")
	ErrInvalidQuery     = errors.New("db: invalid query")
	ErrMissingID        = errors.New("db: document has no _id")
)

// Op constants name store operations for error context.
const (
	OpFind      = "FIND"
	OpCount     = "COUNT"
	OpAggregate = "AGGREGATE"
	OpGet       = "GET"
	OpSet       = "SET"
	OpDel       = "DEL"
	OpScan      = "SCAN"
	OpTTL       = "TTL"
	OpFlush     = "FLUSH"
	OpLoad      = "LOAD"
	OpUpsert    = "UPSERT"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
