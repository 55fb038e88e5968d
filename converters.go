package objsearch

import (
	"fmt"

	"github.com/kailas-cloud/objsearch/internal/domain"
	dombatch "github.com/kailas-cloud/objsearch/internal/domain/batch"
	"github.com/kailas-cloud/objsearch/internal/domain/detection"
	"github.com/kailas-cloud/objsearch/internal/domain/entry"
	"github.com/kailas-cloud/objsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/objsearch/internal/domain/search/request"
)

func fromDetection(d detection.Detection) Detection {
	b := d.Box()
	return Detection{
		Class:      d.Class(),
		Confidence: d.Confidence(),
		BBox:       [4]float64{b.X1, b.Y1, b.X2, b.Y2},
	}
}

func toDetection(d Detection) detection.Detection {
	return detection.Reconstruct(d.Class, d.Confidence, detection.BoundingBox{
		X1: d.BBox[0], Y1: d.BBox[1], X2: d.BBox[2], Y2: d.BBox[3],
	})
}

func fromEntry(e *entry.Entry) Entry {
	out := Entry{
		ImagePath:   e.ImagePath(),
		ClassCounts: e.ClassCounts(),
		Malformed:   e.Malformed(),
	}
	if e.Malformed() {
		return out
	}
	out.Detections = make([]Detection, len(e.Detections()))
	for i, d := range e.Detections() {
		out.Detections[i] = fromDetection(d)
	}
	return out
}

func fromEntries(entries []entry.Entry) []Entry {
	out := make([]Entry, len(entries))
	for i := range entries {
		out[i] = fromEntry(&entries[i])
	}
	return out
}

// toEntry rebuilds a domain entry. Class counts are re-derived from detections.
func toEntry(e Entry) entry.Entry {
	if e.Malformed {
		return entry.NewMalformed(e.ImagePath)
	}
	dets := make([]detection.Detection, len(e.Detections))
	for i, d := range e.Detections {
		dets[i] = toDetection(d)
	}
	return entry.New(e.ImagePath, dets)
}

func toEntries(entries []Entry) []entry.Entry {
	out := make([]entry.Entry, len(entries))
	for i := range entries {
		out[i] = toEntry(entries[i])
	}
	return out
}

func fromBatch(b *dombatch.Batch) *Batch {
	return &Batch{
		ID:           b.ID().String(),
		CreatedAt:    b.CreatedAt(),
		MetadataPath: b.MetadataPath(),
		Entries:      fromEntries(b.Entries()),
	}
}

func toRequest(p SearchParams) (request.Request, error) {
	m, err := mode.Parse(string(p.SearchMode))
	if err != nil {
		return request.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	thresholds := make(map[string]request.Threshold, len(p.Thresholds))
	for class, t := range p.Thresholds {
		thresholds[class] = t.toRequest()
	}
	return request.New(p.SelectedClasses, m, thresholds)
}
