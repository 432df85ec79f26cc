package search

import (
	"context"
	"time"

	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/domain/search/result"
	"github.com/kailas-cloud/cardex/internal/index"
	"github.com/kailas-cloud/cardex/internal/repository/searchcache"
)

// IndexSearcher answers candidate lookups from the in-memory index.
type IndexSearcher interface {
	Search(t entity.Type, text string, limit int) (index.Candidates, error)
	Documents(t entity.Type, ids []string) []index.Document
}

// Cache stores finished envelopes.
type Cache interface {
	Get(ctx context.Context, p searchcache.Params) (result.Envelope, bool)
	Set(ctx context.Context, p searchcache.Params, env result.Envelope)
}

// Recorder observes completed searches (metrics).
type Recorder interface {
	SearchCompleted(t entity.Type, method result.Method, cached bool, elapsed time.Duration, results int)
	SearchFailed(t entity.Type, reason string)
}
