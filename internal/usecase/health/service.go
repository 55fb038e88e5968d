package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
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

// Report aggregates health check results. Errors holds the failure message per failing check.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	Errors map[string]string
}

// Service coordinates health checks.
type Service struct {
	storage  StorageChecker
	detector DetectorChecker
}

// New creates a Service. detector can be nil.
func New(storage StorageChecker, detector DetectorChecker) *Service {
	return &Service{storage: storage, detector: detector}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{Checks: make(map[string]CheckResult), Errors: make(map[string]string)}

	r.record("storage", s.storage.HealthCheck(ctx))
	if s.detector != nil {
		r.record("detector", s.detector.HealthCheck(ctx))
	}

	failed := len(r.Errors)
	switch {
	case failed == 0:
		r.Status = Healthy
	case failed == len(r.Checks):
		r.Status = Unhealthy
	default:
		r.Status = Degraded
	}
	return r
}

func (r *Report) record(name string, err error) {
	if err != nil {
		r.Checks[name] = CheckError
		r.Errors[name] = err.Error()
		return
	}
	r.Checks[name] = CheckOK
}
