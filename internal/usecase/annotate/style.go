package annotate

import (
	"fmt"
	"image/color"
	"strconv"
)

// Style controls how detections are drawn.
type Style struct {
	Color  color.RGBA
	Width  int
	Muted  color.RGBA
	Accent color.RGBA

	// Highlight lists classes drawn with Accent. When non-empty, other classes use Muted
	// at width 1, or are not drawn at all when HideOthers is set.
	Highlight  []string
	HideOthers bool
}

// DefaultStyle returns the standard overlay style.
func DefaultStyle() Style {
	return Style{
		Color:  color.RGBA{R: 0x63, G: 0x66, B: 0xF1, A: 0xFF},
		Width:  3,
		Muted:  color.RGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xFF},
		Accent: color.RGBA{R: 0x30, G: 0xC9, B: 0x38, A: 0xFF},
	}
}

// ParseHexColor parses a "#RRGGBB" color.
func ParseHexColor(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("color %q must have the form #RRGGBB", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}

// pen resolves the stroke for one class. ok is false when the class is hidden.
func (s *Style) pen(class string, highlighted map[string]struct{}) (c color.RGBA, width int, ok bool) {
	width = s.Width
	if width < 1 {
		width = 1
	}
	if len(highlighted) == 0 {
		return s.Color, width, true
	}
	if _, hit := highlighted[class]; hit {
		return s.Accent, width, true
	}
	if s.HideOthers {
		return color.RGBA{}, 0, false
	}
	return s.Muted, 1, true
}
