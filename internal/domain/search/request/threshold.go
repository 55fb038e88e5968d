package request

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/objsearch/internal/domain"
)

// unboundedToken is the marker accepted in place of a number ("count >= 1 suffices").
const unboundedToken = "none"

// Threshold is a per-class upper bound on the detection count of a matching entry.
// The zero value is unbounded.
type Threshold struct {
	max     int
	bounded bool
}

// Unbounded returns the marker meaning any positive count matches.
func Unbounded() Threshold { return Threshold{} }

// Max returns a threshold accepting counts in [1, n].
func Max(n int) Threshold { return Threshold{max: n, bounded: true} }

// ParseThreshold parses "None", "" (unbounded) or a decimal integer.
func ParseThreshold(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, unboundedToken) || strings.EqualFold(s, "null") {
		return Unbounded(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Threshold{}, fmt.Errorf("threshold %q is not an integer: %w", s, domain.ErrInvalidRequest)
	}
	return Max(n), nil
}

// IsUnbounded reports whether no upper bound is set.
func (t Threshold) IsUnbounded() bool { return !t.bounded }

// Limit returns the upper bound (0 when unbounded).
func (t Threshold) Limit() int { return t.max }

// Allows reports whether count satisfies the threshold.
// Zero detections never match, whatever the bound.
func (t Threshold) Allows(count int) bool {
	if count < 1 {
		return false
	}
	return !t.bounded || count <= t.max
}

// String renders the threshold the way ParseThreshold accepts it.
func (t Threshold) String() string {
	if !t.bounded {
		return "None"
	}
	return strconv.Itoa(t.max)
}
