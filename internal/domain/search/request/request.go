package request

import (
	"fmt"

	"github.com/kailas-cloud/objsearch/internal/domain"
	"github.com/kailas-cloud/objsearch/internal/domain/search/mode"
)

// Request is a validated class search query.
type Request struct {
	classes    []string
	searchMode mode.Mode
	thresholds map[string]Threshold
}

// New validates and normalizes search parameters.
// Defaults: mode=OR, no thresholds. Duplicate classes collapse (first occurrence wins);
// thresholds for unselected classes are dropped; a bounded threshold must be positive.
func New(classes []string, m mode.Mode, thresholds map[string]Threshold) (Request, error) {
	if m == "" {
		m = mode.Or
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("invalid search mode %q: %w", m, domain.ErrInvalidRequest)
	}

	seen := make(map[string]bool, len(classes))
	selected := make([]string, 0, len(classes))
	for _, c := range classes {
		if c == "" {
			return Request{}, fmt.Errorf("class label must not be empty: %w", domain.ErrInvalidRequest)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		selected = append(selected, c)
	}

	kept := make(map[string]Threshold, len(thresholds))
	for c, t := range thresholds {
		if !seen[c] {
			continue
		}
		if !t.IsUnbounded() && t.Limit() < 1 {
			return Request{}, fmt.Errorf("threshold for %q must be a positive integer, got %d: %w",
				c, t.Limit(), domain.ErrInvalidRequest)
		}
		kept[c] = t
	}

	return Request{classes: selected, searchMode: m, thresholds: kept}, nil
}

// Classes returns the selected class labels in request order.
func (r *Request) Classes() []string { return r.classes }

// Mode returns the boolean combinator.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Threshold returns the threshold for class (unbounded when unset).
func (r *Request) Threshold(class string) Threshold { return r.thresholds[class] }

// IsEmpty reports whether no class is selected (a no-op query).
func (r *Request) IsEmpty() bool { return len(r.classes) == 0 }
