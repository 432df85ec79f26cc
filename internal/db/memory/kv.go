package memory

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/kailas-cloud/cardex/internal/db"
)

// Compile-time check: KV implements db.KVStore.
var _ db.KVStore = (*KV)(nil)

// KVConfig sizes the ristretto cache.
type KVConfig struct {
	MaxCostBytes int64 // total payload bytes kept (default 64 MiB)
	NumCounters  int64 // admission counters (default 10x expected entries)
}

// KV is a TTL key-value store on ristretto. Ristretto cannot enumerate its
// keys, so a registry of written keys backs pattern deletes; keys evicted by
// ristretto simply miss on delete.
type KV struct {
	cache *ristretto.Cache[string, []byte]

	mu   sync.Mutex
	keys map[string]time.Time // key -> expiry
}

// NewKV creates a ristretto-backed KV store.
func NewKV(cfg KVConfig) (*KV, error) {
	if cfg.MaxCostBytes <= 0 {
		cfg.MaxCostBytes = 64 << 20
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 100_000
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCostBytes,
		BufferItems: 64,
		// Cost is the payload length; ristretto's per-item overhead is not counted.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &KV{cache: cache, keys: make(map[string]time.Time)}, nil
}

// Get returns a live value or db.ErrKeyNotFound.
func (k *KV) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := k.cache.Get(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

// SetWithTTL stores value until ttl elapses. The write is made visible before returning.
func (k *KV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !k.cache.SetWithTTL(key, value, int64(len(value)), ttl) {
		return &db.Error{Op: db.OpSet, Err: fmt.Errorf("key %s rejected by admission policy", key)}
	}
	k.cache.Wait()

	k.mu.Lock()
	k.keys[key] = time.Now().Add(ttl)
	k.mu.Unlock()
	return nil
}

// TTL returns the remaining lifetime of key.
func (k *KV) TTL(_ context.Context, key string) (time.Duration, error) {
	if _, ok := k.cache.Get(key); !ok {
		return 0, db.ErrKeyNotFound
	}
	ttl, ok := k.cache.GetTTL(key)
	if !ok {
		return 0, db.ErrKeyNotFound
	}
	return ttl, nil
}

// DeleteMatching removes every live key matching the glob pattern.
func (k *KV) DeleteMatching(_ context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, &db.Error{Op: db.OpDel, Err: err}
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, exp := range k.keys {
		if now.After(exp) {
			delete(k.keys, key)
			continue
		}
		if ok, _ := path.Match(pattern, key); !ok {
			continue
		}
		if _, live := k.cache.Get(key); live {
			removed++
		}
		k.cache.Del(key)
		delete(k.keys, key)
	}
	return removed, nil
}

// Flush drops every entry.
func (k *KV) Flush(context.Context) error {
	k.cache.Clear()

	k.mu.Lock()
	k.keys = make(map[string]time.Time)
	k.mu.Unlock()
	return nil
}

// Close stops ristretto's background goroutines.
func (k *KV) Close() {
	k.cache.Close()
}
