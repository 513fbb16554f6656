package math

import (
	"math"

	"golang.org/x/exp/rand"
)

// Blobs generates n samples around each of the given centers,
// with gaussian noise of the given standard deviation on every feature.
// Samples are interleaved, sample i belongs to center i % len(centers).
func Blobs(seed uint64, n int, std float64, centers ...[]float64) [][]float64 {
	rnd := rand.New(rand.NewSource(seed))
	samples := make([][]float64, 0, n*len(centers))
	for i := 0; i < n; i++ {
		for _, c := range centers {
			s := make([]float64, len(c))
			for j := range c {
				s[j] = c[j] + rnd.NormFloat64()*std
			}
			samples = append(samples, s)
		}
	}
	return samples
}

// Grid returns k centers with the given dimension spread on the axes at the given spacing.
func Grid(k, dim int, spacing float64) [][]float64 {
	centers := make([][]float64, k)
	for i := 0; i < k; i++ {
		c := make([]float64, dim)
		c[i%dim] = spacing * float64(i/dim+1)
		if i%2 == 1 {
			c[i%dim] = -c[i%dim]
		}
		centers[i] = c
	}
	return centers
}

// Pairs generates n labelled distances, alternating same (label 1) and different (label 0) pairs.
// Distances are drawn around the given means and are never negative.
func Pairs(seed uint64, n int, same, different, std float64) ([]int, []float64) {
	rnd := rand.New(rand.NewSource(seed))
	labels := make([]int, n)
	distances := make([]float64, n)
	for i := 0; i < n; i++ {
		mean := different
		if i%2 == 0 {
			labels[i] = 1
			mean = same
		}
		distances[i] = math.Abs(mean + rnd.NormFloat64()*std)
	}
	return labels, distances
}
