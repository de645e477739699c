package common

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical helpers shared by the analyzers, backed by gonum.

// Mean calculates the arithmetic mean of a slice
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample variance of a slice
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.Variance(data, nil)
}

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return math.Sqrt(Variance(data))
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}

// MeanAbs calculates the mean absolute amplitude
func MeanAbs(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, 1) / float64(len(data))
}

// Peak returns the largest absolute sample value
func Peak(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, math.Inf(1))
}

// Max returns the largest value, 0 for empty input
func Max(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Max(data)
}

// MaxNormalize scales data so its largest value is 1. Data whose maximum is
// not positive comes back as zeros.
func MaxNormalize(data []float64) []float64 {
	out := make([]float64, len(data))
	m := Max(data)
	if m <= 1e-12 {
		return out
	}
	for i, v := range data {
		out[i] = v / m
	}
	return out
}

// SumNormalize scales non-negative data to sum to 1. Returns false when the
// sum is zero.
func SumNormalize(data []float64) ([]float64, bool) {
	out := make([]float64, len(data))
	sum := floats.Sum(data)
	if sum <= 1e-12 {
		return out, false
	}
	for i, v := range data {
		out[i] = v / sum
	}
	return out, true
}

// MovingAverage calculates a centered moving average with the given window size
func MovingAverage(data []float64, windowSize int) []float64 {
	if len(data) == 0 || windowSize <= 1 {
		return slices.Clone(data)
	}

	half := windowSize / 2
	result := make([]float64, len(data))
	for i := range data {
		lo := max(0, i-half)
		hi := min(len(data), i+half+1)
		result[i] = floats.Sum(data[lo:hi]) / float64(hi-lo)
	}
	return result
}

// Correlation calculates Pearson correlation coefficient.
// Returns 0 when either input has no variance.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0.0
	}
	if StandardDeviation(x) < 1e-12 || StandardDeviation(y) < 1e-12 {
		return 0.0
	}
	return stat.Correlation(x, y, nil)
}

// Clamp restricts value to [lo, hi]
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Clamp01 restricts value to [0, 1]
func Clamp01(value float64) float64 {
	return Clamp(value, 0, 1)
}

// Lerp performs linear interpolation
func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo returns the smallest power of 2 that is >= n
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// ParabolicPeak refines the position of a peak at index i using its two
// neighbours. The returned offset lies in [-0.5, 0.5].
func ParabolicPeak(data []float64, i int) float64 {
	if i <= 0 || i >= len(data)-1 {
		return 0
	}
	a, b, c := data[i-1], data[i], data[i+1]
	den := a - 2*b + c
	if math.Abs(den) < 1e-12 {
		return 0
	}
	return Clamp(0.5*(a-c)/den, -0.5, 0.5)
}
