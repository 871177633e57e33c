package analysis

import (
	"math"
	"sort"
)

// idxBefore returns the greatest index i with v[i] <= x for an ascending v.
// It reports false when x precedes v[0], v is empty or x is NaN.
func idxBefore(v []float64, x float64) (int, bool) {
	if math.IsNaN(x) {
		return 0, false
	}
	i := sort.Search(len(v), func(i int) bool { return v[i] > x })
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}
