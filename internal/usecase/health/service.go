package health

import (
	"context"

	"github.com/kailas-cloud/cardex/internal/version"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates searches are served by the store alone.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckPending indicates a component still starting up.
	CheckPending CheckResult = "building"
)

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Index   map[string]int
	Version version.Info
}

// Service coordinates health checks.
type Service struct {
	db    DBPinger
	index IndexStatus
}

// New creates a Service. index can be nil.
func New(db DBPinger, index IndexStatus) *Service {
	return &Service{db: db, index: index}
}

// Check pings the store and inspects the index.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{
		Status:  Healthy,
		Checks:  make(map[string]CheckResult, 2),
		Version: version.Get(),
	}

	if err := s.db.Ping(ctx); err != nil {
		r.Checks["database"] = CheckError
		r.Status = Unhealthy
	} else {
		r.Checks["database"] = CheckOK
	}

	if s.index != nil {
		if s.index.Initialized() {
			r.Checks["index"] = CheckOK
			r.Index = make(map[string]int)
			for t, n := range s.index.Stats() {
				r.Index[t.String()] = n
			}
		} else {
			r.Checks["index"] = CheckPending
			if r.Status == Healthy {
				r.Status = Degraded
			}
		}
	}
	return r
}
