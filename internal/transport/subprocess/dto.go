package subprocess

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/objsearch/internal/domain"
	"github.com/kailas-cloud/objsearch/internal/domain/detection"
)

// requestDTO is passed to the detector as its last argument.
type requestDTO struct {
	Files     []string `json:"files"`
	ModelPath string   `json:"modelPath"`
}

// recordDTO is one per-image record on the detector's stdout.
type recordDTO struct {
	ImagePath  string          `json:"image_path"`
	Detections *[]detectionDTO `json:"detections"`
}

type detectionDTO struct {
	Class      string    `json:"class"`
	Confidence *float64  `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

// decodeOutput parses the detector stdout into one detection list per image, in input order.
func decodeOutput(data []byte, images []string) ([][]detection.Detection, error) {
	var records []recordDTO
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode detector output: %v: %w", err, domain.ErrMalformedDetectorOutput)
	}
	if len(records) != len(images) {
		return nil, fmt.Errorf("detector returned %d records for %d images: %w",
			len(records), len(images), domain.ErrMalformedDetectorOutput)
	}

	out := make([][]detection.Detection, len(records))
	for i, rec := range records {
		if rec.ImagePath != "" && rec.ImagePath != images[i] {
			return nil, fmt.Errorf("record %d is for %q, expected %q: %w",
				i, rec.ImagePath, images[i], domain.ErrMalformedDetectorOutput)
		}
		if rec.Detections == nil {
			return nil, fmt.Errorf("record %d has no detections list: %w", i, domain.ErrMalformedDetectorOutput)
		}
		dets := make([]detection.Detection, 0, len(*rec.Detections))
		for j, d := range *rec.Detections {
			det, err := d.toDomain()
			if err != nil {
				return nil, fmt.Errorf("record %d detection %d: %v: %w",
					i, j, err, domain.ErrMalformedDetectorOutput)
			}
			dets = append(dets, det)
		}
		out[i] = dets
	}
	return out, nil
}

func (d detectionDTO) toDomain() (detection.Detection, error) {
	if d.Confidence == nil {
		return detection.Detection{}, fmt.Errorf("confidence is required")
	}
	box, err := detection.BoxFromSlice(d.BBox)
	if err != nil {
		return detection.Detection{}, err
	}
	return detection.New(d.Class, *d.Confidence, box)
}
