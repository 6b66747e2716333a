// Package layout converts percentage-of-page positions into pixel offsets.
//
// Every placement decision made while stamping a page goes through this
// package: a target percentage describes where an element's leading edge,
// trailing edge, or midpoint should land along one axis of the page, and an
// optional margin percentage clamps the result away from the page edges.
// The functions here are pure; they never touch an image.
package layout

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidPercentage reports a percentage or margin outside [0, 1].
// It indicates a misconfigured layout spec rather than bad user input.
var ErrInvalidPercentage = errors.New("percentage out of range [0, 1]")

// Anchor selects how a percentage maps onto an element along one axis.
type Anchor int

const (
	// FromStart places the element's leading edge at the percentage.
	FromStart Anchor = iota
	// FromEnd places the element's trailing edge at the percentage.
	FromEnd
	// Centered places the element's midpoint at the percentage.
	Centered
)

// Offset computes the integer pixel offset of an element along one page axis.
//
//   - dimension: page width or height in pixels (must be positive).
//   - element: element width or height in pixels.
//   - percent: target position in [0, 1], interpreted per anchor.
//   - margin: margin as a fraction of dimension in [0, 1]; pass 0 for none.
//
// The result is clamped into [margin*dimension, dimension-element-margin*dimension].
func Offset(dimension, element int, percent, margin float64, anchor Anchor) (int, error) {
	if !validFraction(percent) {
		return 0, fmt.Errorf("position %v: %w", percent, ErrInvalidPercentage)
	}
	if !validFraction(margin) {
		return 0, fmt.Errorf("margin %v: %w", margin, ErrInvalidPercentage)
	}
	if dimension <= 0 {
		return 0, fmt.Errorf("dimension %d must be positive", dimension)
	}

	target := float64(dimension) * percent
	var offset int
	switch anchor {
	case FromStart:
		offset = int(target)
	case FromEnd:
		offset = int(target) - element
	case Centered:
		offset = int(target) - element/2
	default:
		return 0, fmt.Errorf("unknown anchor %d", anchor)
	}

	return clamp(offset, dimension, element, margin), nil
}

func clamp(offset, dimension, element int, margin float64) int {
	lo := int(float64(dimension) * margin)
	hi := dimension - element - lo
	if hi < lo {
		// Element plus margins exceed the page; pin to the leading margin.
		hi = lo
	}
	if offset < lo {
		return lo
	}
	if offset > hi {
		return hi
	}
	return offset
}

func validFraction(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v <= 1
}
