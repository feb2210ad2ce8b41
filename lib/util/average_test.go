package util

import (
	"math"
	"math/rand"
	"testing"
)

func TestRunningAverageEmpty(t *testing.T) {
	var avg RunningAverage
	if avg.Count() != 0 {
		t.Errorf("Count() = %d, want 0", avg.Count())
	}
	if avg.Average() != 0 {
		t.Errorf("Average() = %f, want 0", avg.Average())
	}
}

func TestRunningAverageFirstSample(t *testing.T) {
	var avg RunningAverage
	avg.Observe(42.5)

	if avg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", avg.Count())
	}
	if avg.Average() != 42.5 {
		t.Errorf("Average() = %f, want 42.5", avg.Average())
	}
}

// TestRunningAverageMatchesMean feeds different sample sequences and compares
// against the arithmetic mean
func TestRunningAverageMatchesMean(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	random := make([]float64, 1000)
	for i := range random {
		random[i] = rng.Float64() * 100
	}

	testCases := []struct {
		name    string
		samples []float64
	}{
		{"Two samples", []float64{1, 3}},
		{"Constant", []float64{5, 5, 5, 5}},
		{"Negative", []float64{-1, -2, -3, 6}},
		{"Mixed magnitude", []float64{0.001, 1000, 0.5, 250}},
		{"Latencies", []float64{0.120, 0.080, 0.095, 0.300, 0.110}},
		{"Random", random},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var avg RunningAverage
			sum := 0.0
			for i, s := range tc.samples {
				avg.Observe(s)
				sum += s

				want := sum / float64(i+1)
				if math.Abs(avg.Average()-want) > 1e-9 {
					t.Fatalf("after %d samples Average() = %.12f, want %.12f", i+1, avg.Average(), want)
				}
			}
			if avg.Count() != uint64(len(tc.samples)) {
				t.Errorf("Count() = %d, want %d", avg.Count(), len(tc.samples))
			}
		})
	}
}
