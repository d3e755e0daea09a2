package scpi

import (
	"fmt"
	"math"
)

// Params is a validated parameter set. Values are float64, int, bool,
// string or []float32.
type Params map[string]any

// Has reports whether name is set.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Float returns name as a float64, or 0 when unset.
func (p Params) Float(name string) float64 {
	switch v := p[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// Int returns name as an int, rounding floats.
func (p Params) Int(name string) int {
	switch v := p[name].(type) {
	case int:
		return v
	case float64:
		return int(math.Round(v))
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// Bool returns name as a bool. Numbers are true when non-zero.
func (p Params) Bool(name string) bool {
	switch v := p[name].(type) {
	case bool:
		return v
	case int:
		return v != 0
	case float64:
		return v != 0
	}
	return false
}

// String returns name as a string.
func (p Params) String(name string) string {
	switch v := p[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Samples returns name as a float32 sample slice.
func (p Params) Samples(name string) []float32 {
	s, _ := p[name].([]float32)
	return s
}

func (p Params) require(name string) error {
	if !p.Has(name) {
		return fmt.Errorf("%w: %s", ErrMissingParameter, name)
	}
	return nil
}
