package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cardex/internal/db"
)

// Compile-time check: KV implements db.KVStore.
var _ db.KVStore = (*KV)(nil)

// KV is a prefix-scoped key-value view of the store used by the search cache.
type KV struct {
	store  *Store
	prefix string
}

// Get retrieves a value by key.
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := k.store.b().Get().Key(k.prefix + key).Build()
	data, err := k.store.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// SetWithTTL stores a value with an expiration.
func (k *KV) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := k.store.b().Set().Key(k.prefix + key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := k.store.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// TTL returns the remaining lifetime of key.
func (k *KV) TTL(ctx context.Context, key string) (time.Duration, error) {
	cmd := k.store.b().Pttl().Key(k.prefix + key).Build()
	ms, err := k.store.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpTTL, Err: err}
	}
	switch {
	case ms == -2:
		return 0, db.ErrKeyNotFound
	case ms < 0:
		return 0, nil // no expiry
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// DeleteMatching removes keys matching a glob pattern inside the namespace.
func (k *KV) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	keys, err := k.store.scan(ctx, k.prefix+pattern)
	if err != nil {
		return 0, err
	}
	return k.store.del(ctx, keys...)
}

// Flush removes every key of the namespace.
func (k *KV) Flush(ctx context.Context) error {
	if _, err := k.DeleteMatching(ctx, "*"); err != nil {
		return &db.Error{Op: db.OpFlush, Err: err}
	}
	return nil
}
