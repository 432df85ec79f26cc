// Package searchcache caches search envelopes in a key-value store.
package searchcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/domain/search/config"
	"github.com/kailas-cloud/cardex/internal/domain/search/result"
)

const keyPrefix = "search:"

// Payload markers.
const (
	rawMarker  byte = 0
	zstdMarker byte = 1
)

// Defaults.
const (
	DefaultTTL               = 300 * time.Second
	DefaultCompressThreshold = 1024
	DefaultEngine            = "hybrid"
)

// Params identify a search. Two searches with equal Params share a cache entry.
type Params struct {
	Engine   string            `json:"engine"`
	Entity   entity.Type       `json:"entity"`
	Text     string            `json:"text"`
	Filters  map[string]string `json:"filters"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
	Sort     []config.SortKey  `json:"sort,omitempty"`
	Populate bool              `json:"populate,omitempty"`
}

// Config tunes the cache.
type Config struct {
	TTL               time.Duration
	CompressThreshold int
	Engine            string
}

// Stats are the cache counters since start.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Sets      int64   `json:"sets"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hitRate"`
}

// Cache stores result envelopes as JSON, zstd-compressed above a size threshold.
type Cache struct {
	store      db.KVStore
	cfg        Config
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder

	hits, misses, sets, evictions atomic.Int64
}

// New creates a search cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"/"set"/"evict"); may be nil.
func New(s db.KVStore, cfg Config, cacheTotal *prometheus.CounterVec, logger *zap.Logger) (*Cache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CompressThreshold <= 0 {
		cfg.CompressThreshold = DefaultCompressThreshold
	}
	if cfg.Engine == "" {
		cfg.Engine = DefaultEngine
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Cache{
		store:      s,
		cfg:        cfg,
		cacheTotal: cacheTotal,
		logger:     logger.Named("searchcache"),
		enc:        enc,
		dec:        dec,
	}, nil
}

// Close releases the compression codecs.
func (c *Cache) Close() {
	_ = c.enc.Close()
	c.dec.Close()
}

// Key returns the normalized cache key: search:<engine>:<entity>:<sha256(params)>.
func (c *Cache) Key(p Params) string {
	if p.Engine == "" {
		p.Engine = c.cfg.Engine
	}
	if p.Filters == nil {
		p.Filters = map[string]string{}
	}
	// encoding/json writes map keys sorted, so equal params hash equally.
	data, _ := json.Marshal(p)
	h := sha256.Sum256(data)
	return keyPrefix + p.Engine + ":" + p.Entity.String() + ":" + hex.EncodeToString(h[:])
}

// Get returns the cached envelope, with Metadata.Cached set.
func (c *Cache) Get(ctx context.Context, p Params) (result.Envelope, bool) {
	key := c.Key(p)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read cached search", zap.String("key", key), zap.Error(err))
		}
		c.inc(&c.misses, "miss")
		return result.Envelope{}, false
	}

	env, err := c.decode(data)
	if err != nil {
		c.logger.Warn("Failed to decode cached search", zap.String("key", key), zap.Error(err))
		c.inc(&c.misses, "miss")
		return result.Envelope{}, false
	}

	c.inc(&c.hits, "hit")
	env.Metadata.Cached = true
	return env, true
}

// Set stores env under p for the configured TTL. Failures are logged, not returned.
func (c *Cache) Set(ctx context.Context, p Params, env result.Envelope) {
	key := c.Key(p)
	env.Metadata.Cached = false
	data, err := c.encode(env)
	if err != nil {
		c.logger.Warn("Failed to encode search for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.cfg.TTL); err != nil {
		c.logger.Warn("Failed to cache search", zap.String("key", key), zap.Error(err))
		return
	}
	c.inc(&c.sets, "set")
}

// TTL returns the remaining lifetime of the entry for p.
func (c *Cache) TTL(ctx context.Context, p Params) (time.Duration, error) {
	return c.store.TTL(ctx, c.Key(p))
}

// Invalidate removes entries whose key matches a glob pattern, e.g. "search:*:cards:*".
func (c *Cache) Invalidate(ctx context.Context, pattern string) (int, error) {
	n, err := c.store.DeleteMatching(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("invalidate %q: %w", pattern, err)
	}
	c.evictions.Add(int64(n))
	if c.cacheTotal != nil && n > 0 {
		c.cacheTotal.WithLabelValues("evict").Add(float64(n))
	}
	return n, nil
}

// InvalidateEntity removes every entry of one entity type.
func (c *Cache) InvalidateEntity(ctx context.Context, t entity.Type) (int, error) {
	return c.Invalidate(ctx, keyPrefix+"*:"+t.String()+":*")
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Flush(ctx); err != nil {
		return fmt.Errorf("clear search cache: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Evictions: c.evictions.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *Cache) inc(counter *atomic.Int64, label string) {
	counter.Add(1)
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(label).Inc()
	}
}

func (c *Cache) encode(env result.Envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	if len(raw) < c.cfg.CompressThreshold {
		return append([]byte{rawMarker}, raw...), nil
	}
	out := make([]byte, 1, len(raw)/2)
	out[0] = zstdMarker
	return c.enc.EncodeAll(raw, out), nil
}

func (c *Cache) decode(data []byte) (result.Envelope, error) {
	if len(data) == 0 {
		return result.Envelope{}, errors.New("empty cache payload")
	}
	raw := data[1:]
	switch data[0] {
	case rawMarker:
	case zstdMarker:
		var err error
		raw, err = c.dec.DecodeAll(raw, nil)
		if err != nil {
			return result.Envelope{}, fmt.Errorf("decompress: %w", err)
		}
	default:
		return result.Envelope{}, fmt.Errorf("unknown payload marker %d", data[0])
	}

	var env result.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return result.Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}
