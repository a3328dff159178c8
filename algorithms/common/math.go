package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DenormalThreshold is the magnitude below which filter state is flushed to zero.
const DenormalThreshold = 1e-30

// Basic numeric helpers shared by the analysis stages. Statistics go through gonum.

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample variance of a slice using gonum
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.Variance(data, nil)
}

// Pearson returns the Pearson correlation of x and y, or ok=false when either
// series is too short or effectively constant.
func Pearson(x, y []float64, minVariance float64) (r float64, ok bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0.0, false
	}
	if Variance(x) < minVariance || Variance(y) < minVariance {
		return 0.0, false
	}

	r = stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0.0, false
	}
	return Clamp(r, -1.0, 1.0), true
}

// SumOfSquares returns Σ x² using gonum
func SumOfSquares(data []float64) float64 {
	return floats.Dot(data, data)
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampInt constrains an integer to a range
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// FlushDenormal forces tiny magnitudes to exactly zero
func FlushDenormal(v float64) float64 {
	if math.Abs(v) < DenormalThreshold {
		return 0.0
	}
	return v
}

// CentsBetween returns the signed interval from base to target in cents.
// Non-positive inputs yield a full octave so callers treat them as a miss.
func CentsBetween(baseHz, targetHz float64) float64 {
	if baseHz <= 0 || targetHz <= 0 {
		return 1200.0
	}
	return 1200.0 * math.Log2(targetHz/baseHz)
}

// AbsCents is the unsigned distance between two frequencies in cents
func AbsCents(a, b float64) float64 {
	return math.Abs(CentsBetween(a, b))
}

// RatioFromCents converts an interval in cents to a frequency ratio
func RatioFromCents(cents float64) float64 {
	return math.Pow(2.0, cents/1200.0)
}

// NearestIndex returns the index of the value in a strictly increasing slice
// closest to query. Exact midpoints resolve to the higher index.
func NearestIndex(sorted []float64, query float64) int {
	n := len(sorted)
	if n == 0 {
		return -1
	}
	if query <= sorted[0] {
		return 0
	}
	if query >= sorted[n-1] {
		return n - 1
	}

	lo, hi := 0, n-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if sorted[mid] <= query {
			lo = mid
		} else {
			hi = mid
		}
	}

	if query-sorted[lo] < sorted[hi]-query {
		return lo
	}
	return hi
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
