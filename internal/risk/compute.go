package risk

import "math"

// computeMean calculates the arithmetic mean. Returns 0 for empty input.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (ddof=1).
// Returns 0 when fewer than 2 values.
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(n-1))
}

// computeCovariance calculates sample covariance (ddof=1) of two equal
// length series. Returns 0 when fewer than 2 pairs.
func computeCovariance(a, b []float64) float64 {
	n := len(a)
	if n < 2 || n != len(b) {
		return 0
	}
	meanA := computeMean(a)
	meanB := computeMean(b)
	sum := 0.0
	for i := range a {
		sum += (a[i] - meanA) * (b[i] - meanB)
	}
	return sum / float64(n-1)
}

// compoundReturns compounds a daily return series into a period return:
// prod(1+r) - 1.
func compoundReturns(returns []float64) float64 {
	period := 1.0
	for _, r := range returns {
		period *= 1.0 + r
	}
	return period - 1.0
}

// computeMaxDrawdown calculates the peak-to-trough drawdown of a daily
// return series via log-compounded returns. A single day returning -100%
// resets the compounded series to zero. Result is a positive fraction.
func computeMaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	compounded := make([]float64, 0, len(returns))
	cur := 0.0
	for _, r := range returns {
		if r != -1.0 {
			cur += math.Log(1.0 + r)
		} else {
			cur = 0.0
		}
		compounded = append(compounded, cur)
	}

	curMax := math.Inf(-1)
	maxDrawdown := math.Inf(1)
	for _, c := range compounded {
		if c > curMax {
			curMax = c
		}
		if dd := c - curMax; dd < maxDrawdown {
			maxDrawdown = dd
		}
	}

	return 1.0 - math.Exp(maxDrawdown)
}
