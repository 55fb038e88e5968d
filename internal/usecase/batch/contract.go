package batch

import (
	"context"

	"github.com/kailas-cloud/objsearch/internal/domain/detection"
	"github.com/kailas-cloud/objsearch/internal/domain/entry"
)

// Detector runs object detection over a list of images.
// It returns one detection list per image, in input order.
type Detector interface {
	Detect(ctx context.Context, images []string, weights string) ([][]detection.Detection, error)
}

// BatchStore owns batch directories and persists batch documents.
type BatchStore interface {
	CreateBatchDir(ctx context.Context, batchID string) (string, error)
	RemoveBatchDir(ctx context.Context, batchID string) error
	Save(ctx context.Context, batchID string, entries []entry.Entry) (string, error)
}
