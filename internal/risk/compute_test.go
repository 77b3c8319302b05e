package risk

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestComputeMean(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5}, 5},
		{"several", []float64{1, 2, 3, 4}, 2.5},
		{"negative", []float64{-1, 1}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := computeMean(tc.values); !almostEqual(got, tc.want) {
				t.Errorf("computeMean = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestComputeStddevSample(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	want := math.Sqrt(5.0 / 3.0)
	if got := computeStddev(values, computeMean(values)); !almostEqual(got, want) {
		t.Errorf("computeStddev = %v, want %v", got, want)
	}

	if got := computeStddev([]float64{7}, 7); got != 0 {
		t.Errorf("stddev of one value = %v, want 0", got)
	}
}

func TestCompoundReturns(t *testing.T) {
	if got := compoundReturns([]float64{0.1, 0.1}); !almostEqual(got, 0.21) {
		t.Errorf("compoundReturns = %v, want 0.21", got)
	}
	if got := compoundReturns(nil); got != 0 {
		t.Errorf("compoundReturns(nil) = %v, want 0", got)
	}
}

func TestComputeCovariance(t *testing.T) {
	a := []float64{0.01, 0.02, 0.03}
	b := []float64{0.02, 0.04, 0.06}

	varA := computeCovariance(a, a)
	if got := computeCovariance(a, b); !almostEqual(got, 2*varA) {
		t.Errorf("cov(a, 2a) = %v, want %v", got, 2*varA)
	}
	if got := computeCovariance(a[:1], b[:1]); got != 0 {
		t.Errorf("cov of single pair = %v, want 0", got)
	}
}

func TestComputeBeta(t *testing.T) {
	bm := []float64{0.01, -0.02, 0.03, 0.005}
	algo := make([]float64, len(bm))
	for i, r := range bm {
		algo[i] = 2 * r
	}

	if got := computeBeta(algo, bm); !almostEqual(got, 2.0) {
		t.Errorf("beta of doubled benchmark = %v, want 2", got)
	}
	if got := computeBeta(bm[:1], bm[:1]); got != 0 {
		t.Errorf("beta below two days = %v, want 0", got)
	}
}

func TestComputeMaxDrawdown(t *testing.T) {
	// peak 1.1 after day one, trough 0.55 after day two: drawdown 50%
	got := computeMaxDrawdown([]float64{0.1, -0.5, 0.2})
	if !almostEqual(got, 0.5) {
		t.Errorf("computeMaxDrawdown = %v, want 0.5", got)
	}

	if got := computeMaxDrawdown([]float64{0.01, 0.02}); !almostEqual(got, 0) {
		t.Errorf("drawdown of rising series = %v, want 0", got)
	}

	// a -100% day resets the compounded series instead of producing -Inf
	if got := computeMaxDrawdown([]float64{-1.0}); math.IsInf(got, 0) || math.IsNaN(got) {
		t.Errorf("drawdown with -100%% day = %v, want finite", got)
	}
}
