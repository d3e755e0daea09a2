package scpi

import (
	"fmt"
	"math"
	"strconv"
)

// Digits is the number of significant digits used for ordinary numeric
// arguments.
const Digits = 12

// FormatFloat renders v in the alternate-form general format with Digits
// significant digits, equivalent to printf "%#.12g". Trailing zeros and the
// decimal point are always kept so the instrument sees the same text for
// the same value.
func FormatFloat(v float64) string {
	return FormatPrecision(v, Digits)
}

// FormatPrecision is FormatFloat with an explicit significant digit count.
func FormatPrecision(v float64, digits int) string {
	return fmt.Sprintf("%#.*g", digits, v)
}

// FormatFixed renders v with a fixed number of decimals.
func FormatFixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// FormatPlain renders v in its shortest form. Integral values are written
// without a decimal point.
func FormatPlain(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func checkFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s=%v", ErrInvalidNumber, name, v)
	}
	return nil
}
