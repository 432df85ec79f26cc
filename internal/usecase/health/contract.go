package health

import (
	"context"

	"github.com/kailas-cloud/cardex/internal/domain/entity"
)

// DBPinger checks document store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexStatus reports the in-memory index state.
type IndexStatus interface {
	Initialized() bool
	Stats() map[entity.Type]int
}
