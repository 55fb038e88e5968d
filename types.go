package objsearch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/objsearch/internal/domain"
	"github.com/kailas-cloud/objsearch/internal/domain/search/request"
)

// Detection is one object found in one image.
// BBox is [x1, y1, x2, y2] in pixel coordinates.
type Detection struct {
	Class      string
	Confidence float64
	BBox       [4]float64
}

// Entry is the per-image record of a batch.
// Malformed is set when the stored detections could not be read; searches skip such entries.
type Entry struct {
	ImagePath   string
	Detections  []Detection
	ClassCounts map[string]int
	Malformed   bool
}

// Batch is the outcome of one processing run.
type Batch struct {
	ID           string
	CreatedAt    time.Time
	MetadataPath string
	Entries      []Entry
}

// BatchSummary is one row of the batch listing.
type BatchSummary struct {
	ID           string
	MetadataPath string
	ImageCount   int
	ModifiedAt   time.Time
}

// ClassUniverse lists the classes seen in a metadata document and,
// per class, the distinct per-image counts in ascending order.
type ClassUniverse struct {
	Classes []string         `json:"classes"`
	Counts  map[string][]int `json:"counts"`
}

// SearchMode combines per-class matches.
type SearchMode string

// Search mode constants.
const (
	ModeOr  SearchMode = "OR"
	ModeAnd SearchMode = "AND"
)

// SearchParams selects images by class. An empty SearchMode means OR.
// Thresholds for classes not in SelectedClasses are ignored.
type SearchParams struct {
	SelectedClasses []string             `json:"selectedClasses"`
	SearchMode      SearchMode           `json:"searchMode"`
	Thresholds      map[string]Threshold `json:"thresholds"`
}

// Threshold is a per-class upper bound on the detection count.
// The zero value is unbounded: any count of at least one matches.
type Threshold struct {
	limit   int
	bounded bool
}

// Unbounded returns a threshold matching any positive count.
func Unbounded() Threshold { return Threshold{} }

// AtMost returns a threshold matching counts in [1, n].
func AtMost(n int) Threshold { return Threshold{limit: n, bounded: true} }

// IsUnbounded reports whether no upper bound is set.
func (t Threshold) IsUnbounded() bool { return !t.bounded }

// Limit returns the upper bound, or 0 when unbounded.
func (t Threshold) Limit() int { return t.limit }

// UnmarshalJSON accepts an integer, a numeric string, "None", "" or null.
func (t *Threshold) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Unbounded()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("threshold: %w", err)
		}
		rt, err := request.ParseThreshold(s)
		if err != nil {
			return err
		}
		*t = fromRequestThreshold(rt)
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("threshold %s is not an integer: %w", data, domain.ErrInvalidRequest)
	}
	*t = AtMost(n)
	return nil
}

// MarshalJSON renders a bounded threshold as a number and an unbounded one as "None".
func (t Threshold) MarshalJSON() ([]byte, error) {
	if !t.bounded {
		return []byte(`"None"`), nil
	}
	return []byte(strconv.Itoa(t.limit)), nil
}

// String renders the threshold as accepted by UnmarshalJSON.
func (t Threshold) String() string {
	if !t.bounded {
		return "None"
	}
	return strconv.Itoa(t.limit)
}

// ParseThreshold parses "None", "" or a decimal integer.
func ParseThreshold(s string) (Threshold, error) {
	rt, err := request.ParseThreshold(s)
	if err != nil {
		return Threshold{}, err
	}
	return fromRequestThreshold(rt), nil
}

func fromRequestThreshold(rt request.Threshold) Threshold {
	if rt.IsUnbounded() {
		return Unbounded()
	}
	return AtMost(rt.Limit())
}

func (t Threshold) toRequest() request.Threshold {
	if !t.bounded {
		return request.Unbounded()
	}
	return request.Max(t.limit)
}

// Style sets overlay colors (#RRGGBB) and the stroke width for Render.
type Style struct {
	Color          string
	HighlightColor string
	MutedColor     string
	StrokeWidth    int
}

// RenderOptions selects classes to emphasize in an overlay.
// With Highlight set, other classes are drawn muted, or not at all when HideOthers is set.
type RenderOptions struct {
	Highlight  []string
	HideOthers bool
}

// HealthReport aggregates health check results.
type HealthReport struct {
	Status string
	Checks map[string]string
	Errors map[string]string
}
