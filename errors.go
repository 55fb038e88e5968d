package objsearch

import "github.com/kailas-cloud/objsearch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrSourceNotFound          = domain.ErrSourceNotFound
	ErrDetectionFailed         = domain.ErrDetectionFailed
	ErrMalformedDetectorOutput = domain.ErrMalformedDetectorOutput
	ErrNotFound                = domain.ErrNotFound
	ErrParse                   = domain.ErrParse
	ErrEmptyMetadata           = domain.ErrEmptyMetadata
	ErrInvalidMetadata         = domain.ErrInvalidMetadata
	ErrInvalidRequest          = domain.ErrInvalidRequest
)

// DetectionFailedError carries the detector's diagnostic output. Use errors.As to read it.
type DetectionFailedError = domain.DetectionFailedError
