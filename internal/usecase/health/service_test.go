package health

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/cardex/internal/domain/entity"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockIndex struct {
	ready bool
	stats map[entity.Type]int
}

func (m *mockIndex) Initialized() bool { return m.ready }
func (m *mockIndex) Stats() map[entity.Type]int { return m.stats }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockIndex{ready: true, stats: map[entity.Type]int{entity.Cards: 12, entity.Sets: 3}})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["database"] != CheckOK || r.Checks["index"] != CheckOK {
		t.Errorf("checks = %v", r.Checks)
	}
	if r.Index["cards"] != 12 || r.Index["sets"] != 3 {
		t.Errorf("index = %v", r.Index)
	}
	if r.Version.Version == "" {
		t.Error("version should be reported")
	}
}

func TestCheck_IndexBuilding(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockIndex{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["index"] != CheckPending {
		t.Errorf("expected index %q, got %q", CheckPending, r.Checks["index"])
	}
	if r.Index != nil {
		t.Errorf("no stats before the first build, got %v", r.Index)
	}
}

func TestCheck_DBError(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("conn refused")}, &mockIndex{})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
}

func TestCheck_NoIndex(t *testing.T) {
	svc := New(&mockDBPinger{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["index"]; ok {
		t.Error("index check should be absent when index is nil")
	}
}
