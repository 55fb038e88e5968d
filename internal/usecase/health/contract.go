package health

import "context"

// StorageChecker checks that batch metadata can be written.
type StorageChecker interface {
	HealthCheck(ctx context.Context) error
}

// DetectorChecker checks that the detector program is available.
type DetectorChecker interface {
	HealthCheck(ctx context.Context) error
}
