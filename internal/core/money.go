// Package core provides the shopping list model, the merge engine and the
// aggregations derived from a month's tree.
//
// This file contains the numeric coercion applied to every quantity and
// price that enters a tree.
package core

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Sanitize coerces v to a finite, non-negative number.
//
// Any integer, float or string kind is accepted, named types included.
// Anything that cannot be read as a finite number becomes zero instead of
// an error. Strings accept both dot (12.34) and comma (12,34) decimal
// separators. Negative results are clamped to zero.
//
// Examples:
//
//	Sanitize("2,50") -> 2.5
//	Sanitize("abc")  -> 0
//	Sanitize(math.NaN()) -> 0
func Sanitize(v any) float64 {
	if v == nil {
		return 0
	}
	var f float64
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f = rv.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f = float64(rv.Uint())
	case reflect.String:
		// json.Number lands here too.
		f = parseDecimal(rv.String())
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

func parseDecimal(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
