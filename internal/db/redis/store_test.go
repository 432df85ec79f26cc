package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/cardex/internal/db"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c, "cardex:")
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c, "cardex:")
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}

func TestScan_MultiplePages(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	first := true
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN"
		})).
		DoAndReturn(func(_ context.Context, _ rueidis.Completed) rueidis.RedisResult {
			if first {
				first = false
				return mock.Result(mock.RedisArray(
					mock.RedisInt64(42),
					mock.RedisArray(mock.RedisString("cardex:cards:a")),
				))
			}
			return mock.Result(mock.RedisArray(
				mock.RedisInt64(0),
				mock.RedisArray(mock.RedisString("cardex:cards:b")),
			))
		}).Times(2)

	s := NewStoreForTest(c, "cardex:")
	keys, err := s.scan(context.Background(), "cardex:cards:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
}

// --- docs.go tests ---

func TestLoad_ScansAndFetches(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN" && cmd[3] == "cardex:sets:*"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(0),
			mock.RedisArray(mock.RedisString("cardex:sets:s2"), mock.RedisString("cardex:sets:s1")),
		)))
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString(`{"_id":"s1","setName":"Base Set"}`)),
			mock.Result(mock.RedisNil()),
		})

	s := NewStoreForTest(c, "cardex:")
	docs, err := s.Load(context.Background(), "sets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc (nil skipped), got %d", len(docs))
	}
	if docs[0].ID() != "s1" {
		t.Errorf("id = %q, want s1", docs[0].ID())
	}
}

func TestLoad_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "SCAN" })).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0), mock.RedisArray())))

	s := NewStoreForTest(c, "cardex:")
	docs, err := s.Load(context.Background(), "cards")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no docs, got %d", len(docs))
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "cardex:cards:missing")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c, "cardex:")
	_, err := s.Get(context.Background(), "cards", "missing")
	if !errors.Is(err, db.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestGet_InvalidJSON(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "cardex:cards:c1")).
		Return(mock.Result(mock.RedisString("not json")))

	s := NewStoreForTest(c, "cardex:")
	if _, err := s.Get(context.Background(), "cards", "c1"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestPut_SetsJSON(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SET" && cmd[1] == "cardex:cards:c1" && cmd[2] == `{"_id":"c1","cardName":"Pikachu"}`
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c, "cardex:")
	err := s.Put(context.Background(), "cards", db.Document{"_id": "c1", "cardName": "Pikachu"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRemove_Missing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "cardex:cards:c1")).
		Return(mock.Result(mock.RedisInt64(0)))

	s := NewStoreForTest(c, "cardex:")
	if err := s.Remove(context.Background(), "cards", "c1"); !errors.Is(err, db.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

// --- kv.go tests ---

func TestKVGet_Found(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "cardex:cache:k")).
		Return(mock.Result(mock.RedisString("v")))

	kv := NewStoreForTest(c, "cardex:").KV("cache:")
	got, err := kv.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("got %q, want v", got)
	}
}

func TestKVGet_Miss(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "cardex:cache:k")).
		Return(mock.Result(mock.RedisNil()))

	kv := NewStoreForTest(c, "cardex:").KV("cache:")
	if _, err := kv.Get(context.Background(), "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKVSetWithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "cardex:cache:k", "v", "EX", "300")).
		Return(mock.Result(mock.RedisString("OK")))

	kv := NewStoreForTest(c, "cardex:").KV("cache:")
	if err := kv.SetWithTTL(context.Background(), "k", []byte("v"), 300*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestKVTTL(t *testing.T) {
	tests := []struct {
		name    string
		reply   int64
		want    time.Duration
		wantErr error
	}{
		{"remaining", 1500, 1500 * time.Millisecond, nil},
		{"no expiry", -1, 0, nil},
		{"missing", -2, 0, db.ErrKeyNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)

			c.EXPECT().
				Do(gomock.Any(), mock.Match("PTTL", "cardex:cache:k")).
				Return(mock.Result(mock.RedisInt64(tc.reply)))

			kv := NewStoreForTest(c, "cardex:").KV("cache:")
			got, err := kv.TTL(context.Background(), "k")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ttl = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestKVDeleteMatching(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN" && cmd[3] == "cardex:cache:search:*:cards:*"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(0),
			mock.RedisArray(mock.RedisString("cardex:cache:search:index:cards:aa")),
		)))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "cardex:cache:search:index:cards:aa")).
		Return(mock.Result(mock.RedisInt64(1)))

	kv := NewStoreForTest(c, "cardex:").KV("cache:")
	n, err := kv.DeleteMatching(context.Background(), "search:*:cards:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestKVFlush_ScanError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "SCAN" })).
		Return(mock.ErrorResult(errors.New("connection refused")))

	kv := NewStoreForTest(c, "cardex:").KV("cache:")
	err := kv.Flush(context.Background())
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpFlush {
		t.Fatalf("expected flush db.Error, got %v", err)
	}
}
