// Package valuation turns a listing's financials into a bounded price estimate,
// an amortized financing scenario and an explainable risk profile.
//
// Everything in this package is pure: no I/O, no logging, no shared state.
package valuation

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInput is returned for non-finite or out-of-range numeric arguments.
	ErrInvalidInput = errors.New("INVALID_INPUT")
	// ErrInvalidConfiguration is returned for malformed multiple tables.
	ErrInvalidConfiguration = errors.New("INVALID_CONFIGURATION")
)

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func invalidConfig(vertical Vertical, format string, args ...interface{}) error {
	return fmt.Errorf("%w: vertical %q: %s", ErrInvalidConfiguration, vertical, fmt.Sprintf(format, args...))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func checkFinite(name string, v float64) error {
	if !finite(v) {
		return invalidInput("%s must be finite, got %v", name, v)
	}
	return nil
}

func checkFinitePtr(name string, v *float64) error {
	if v == nil {
		return nil
	}
	return checkFinite(name, *v)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
