package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a failing optional dependency.
	Degraded Status = "degraded"
	// Unhealthy indicates the service cannot answer recommendations.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status       Status
	Checks       map[string]CheckResult
	IndexItems   int
	IndexBuildID string
}

// Deps lists the checked components. Only Index is required.
type Deps struct {
	Index      IndexInfo
	Cache      CachePinger
	Embedding  ProviderChecker
	Generation ProviderChecker
}

// Service coordinates health checks.
type Service struct {
	deps Deps
}

// New creates a Service.
func New(deps Deps) *Service {
	return &Service{deps: deps}
}

// Check runs health checks against all configured components.
// A missing or empty index is Unhealthy; any other failure is Degraded.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{Status: Healthy, Checks: make(map[string]CheckResult)}

	if s.deps.Index == nil || s.deps.Index.Len() == 0 {
		r.Checks["index"] = CheckError
		r.Status = Unhealthy
	} else {
		r.Checks["index"] = CheckOK
		r.IndexItems = s.deps.Index.Len()
		r.IndexBuildID = s.deps.Index.Meta().BuildID
	}

	if s.deps.Cache != nil {
		r.record("cache", s.deps.Cache.Ping(ctx))
	}
	if s.deps.Embedding != nil {
		r.record("embedding", s.deps.Embedding.HealthCheck(ctx))
	}
	if s.deps.Generation != nil {
		r.record("generation", s.deps.Generation.HealthCheck(ctx))
	}
	return r
}

func (r *Report) record(name string, err error) {
	if err == nil {
		r.Checks[name] = CheckOK
		return
	}
	r.Checks[name] = CheckError
	if r.Status == Healthy {
		r.Status = Degraded
	}
}
