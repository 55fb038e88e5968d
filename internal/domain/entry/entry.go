package entry

import "github.com/kailas-cloud/objsearch/internal/domain/detection"

// Entry is the per-image record: the image path, its ordered detections,
// and class counts derived from them.
type Entry struct {
	imagePath   string
	detections  []detection.Detection
	classCounts map[string]int
	malformed   bool
}

// New creates an Entry. Class counts are always derived from detections.
func New(imagePath string, detections []detection.Detection) Entry {
	dets := make([]detection.Detection, len(detections))
	copy(dets, detections)
	return Entry{
		imagePath:   imagePath,
		detections:  dets,
		classCounts: CountClasses(dets),
	}
}

// NewMalformed creates an Entry whose detections could not be read.
// Query operations skip malformed entries.
func NewMalformed(imagePath string) Entry {
	return Entry{imagePath: imagePath, classCounts: map[string]int{}, malformed: true}
}

// CountClasses returns the number of detections per class label.
func CountClasses(detections []detection.Detection) map[string]int {
	counts := make(map[string]int)
	for _, d := range detections {
		counts[d.Class()]++
	}
	return counts
}

// ImagePath returns the path of the source image.
func (e *Entry) ImagePath() string { return e.imagePath }

// Detections returns the detections in detector order.
func (e *Entry) Detections() []detection.Detection { return e.detections }

// ClassCounts returns a copy of the label→count mapping.
func (e *Entry) ClassCounts() map[string]int {
	out := make(map[string]int, len(e.classCounts))
	for k, v := range e.classCounts {
		out[k] = v
	}
	return out
}

// Count returns the number of detections labeled class.
func (e *Entry) Count(class string) int { return e.classCounts[class] }

// TotalObjects returns the number of detections.
func (e *Entry) TotalObjects() int { return len(e.detections) }

// UniqueClasses returns the distinct labels in first-seen order.
func (e *Entry) UniqueClasses() []string {
	seen := make(map[string]bool, len(e.classCounts))
	out := make([]string, 0, len(e.classCounts))
	for _, d := range e.detections {
		if !seen[d.Class()] {
			seen[d.Class()] = true
			out = append(out, d.Class())
		}
	}
	return out
}

// Malformed reports whether the entry's detections could not be read.
func (e *Entry) Malformed() bool { return e.malformed }
