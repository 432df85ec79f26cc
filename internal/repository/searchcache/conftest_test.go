package searchcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/db/memory"
)

// failingStore fails every operation.
type failingStore struct{}

var errBackend = errors.New("backend down")

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errBackend }
func (failingStore) SetWithTTL(context.Context, string, []byte, time.Duration) error {
	return errBackend
}
func (failingStore) TTL(context.Context, string) (time.Duration, error) { return 0, errBackend }
func (failingStore) DeleteMatching(context.Context, string) (int, error) {
	return 0, errBackend
}
func (failingStore) Flush(context.Context) error { return errBackend }

var _ db.KVStore = failingStore{}

func newMemoryCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	kv, err := memory.NewKV(memory.KVConfig{})
	if err != nil {
		t.Fatalf("new kv: %v", err)
	}
	t.Cleanup(kv.Close)
	c, err := New(kv, cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}
