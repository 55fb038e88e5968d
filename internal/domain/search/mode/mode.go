package mode

import (
	"fmt"
	"strings"
)

// Mode is the boolean combinator applied across per-class matches.
type Mode string

// Search mode constants.
const (
	// Or includes an entry when any selected class matches.
	Or Mode = "OR"
	// And includes an entry only when every selected class matches.
	And Mode = "AND"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Or || m == And
}

// Parse normalizes a mode string case-insensitively. Empty defaults to Or.
func Parse(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Or, nil
	}
	m := Mode(strings.ToUpper(s))
	if !m.IsValid() {
		return "", fmt.Errorf("invalid search mode: %q", s)
	}
	return m, nil
}

// Combine folds per-class match results. Empty input never matches.
func (m Mode) Combine(matches []bool) bool {
	if len(matches) == 0 {
		return false
	}
	if m == And {
		for _, ok := range matches {
			if !ok {
				return false
			}
		}
		return true
	}
	for _, ok := range matches {
		if ok {
			return true
		}
	}
	return false
}
