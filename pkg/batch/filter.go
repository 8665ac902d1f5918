package batch

import (
	"math"
	"strconv"
	"strings"
)

// SliceTolerance is the numeric tolerance of slice-location matching
const SliceTolerance = 1e-3

// MatchSliceLocation reports whether a slice-location value satisfies filter.
//
// Rules, in priority order:
//  1. exact string equality (surrounding spaces ignored)
//  2. when both parse as numbers, numeric equality within SliceTolerance
//  3. otherwise substring containment
//
// When both sides are numeric, rule 2 decides; "1" does not match "12.0".
func MatchSliceLocation(filter, value string) bool {
	filter = strings.TrimSpace(filter)
	value = strings.TrimSpace(value)

	if filter == value {
		return true
	}

	f, errF := strconv.ParseFloat(filter, 64)
	v, errV := strconv.ParseFloat(value, 64)
	if errF == nil && errV == nil {
		return math.Abs(f-v) < SliceTolerance
	}

	return strings.Contains(value, filter)
}
