package detection

import (
	"fmt"
	"math"
)

// BoundingBox is an axis-aligned box in pixel coordinates.
type BoundingBox struct {
	X1, Y1, X2, Y2 float64
}

// Validate checks that the box is finite and non-degenerate (x1<x2, y1<y2).
func (b BoundingBox) Validate() error {
	for _, v := range [...]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bounding box has non-finite coordinate")
		}
	}
	if b.X1 >= b.X2 {
		return fmt.Errorf("bounding box x1 (%g) must be less than x2 (%g)", b.X1, b.X2)
	}
	if b.Y1 >= b.Y2 {
		return fmt.Errorf("bounding box y1 (%g) must be less than y2 (%g)", b.Y1, b.Y2)
	}
	return nil
}

// Slice returns the box as [x1, y1, x2, y2].
func (b BoundingBox) Slice() []float64 { return []float64{b.X1, b.Y1, b.X2, b.Y2} }

// BoxFromSlice builds a box from a 4-element [x1, y1, x2, y2] slice.
func BoxFromSlice(v []float64) (BoundingBox, error) {
	if len(v) != 4 {
		return BoundingBox{}, fmt.Errorf("bounding box must have 4 coordinates, got %d", len(v))
	}
	return BoundingBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
}

// Detection is one object instance found in one image (immutable value object).
type Detection struct {
	class      string
	confidence float64
	box        BoundingBox
}

// New validates and creates a Detection.
func New(class string, confidence float64, box BoundingBox) (Detection, error) {
	if class == "" {
		return Detection{}, fmt.Errorf("class label is required")
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return Detection{}, fmt.Errorf("confidence must be between 0 and 1, got %g", confidence)
	}
	if err := box.Validate(); err != nil {
		return Detection{}, err
	}
	return Detection{class: class, confidence: confidence, box: box}, nil
}

// Reconstruct creates a Detection without validation (storage hydration).
func Reconstruct(class string, confidence float64, box BoundingBox) Detection {
	return Detection{class: class, confidence: confidence, box: box}
}

// Class returns the class label.
func (d Detection) Class() string { return d.class }

// Confidence returns the detector confidence in [0,1].
func (d Detection) Confidence() float64 { return d.confidence }

// Box returns the bounding box.
func (d Detection) Box() BoundingBox { return d.box }
