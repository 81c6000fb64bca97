package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	errNotNumber     = errors.New("not a number")
	errNegative      = errors.New("negative value")
	errNotWholeValue = errors.New("not a whole number")
	errQuantityRange = errors.New("quantity out of range")
)

// MaxStockQuantity is the largest stock level written to the catalog.
const MaxStockQuantity = math.MaxInt32

// ParseNonNegative parses a decimal number and rejects negatives.
// NaN and infinities are not accepted as numbers.
func ParseNonNegative(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errNotNumber
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumber
	}
	if f < 0 {
		return 0, errNegative
	}
	return f, nil
}

// ParseQuantity parses a stock delta. The value must be a non-negative
// number with no fractional part ("5" and "5.0" are both 5).
func ParseQuantity(s string) (int, error) {
	f, err := ParseNonNegative(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errNotWholeValue
	}
	if f > MaxStockQuantity {
		return 0, errQuantityRange
	}
	return int(f), nil
}
