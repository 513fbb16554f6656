package ml

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cdipaolo/goml/cluster"
	"github.com/drakos74/free-face/internal/math/tensor"
	"github.com/drakos74/go-ex-machina/xmath"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// goml picks the initial centroids from the shared math/rand source,
// fitting is serialized so that the seed applies to exactly one fit.
var fitLock sync.Mutex

// KMeans is a fitted k-means model.
// It is not modified after construction and can be shared between goroutines.
type KMeans struct {
	id        string
	nFeatures int
	nClusters int
	batchSize int
	model     *cluster.KMeans
	centers   xmath.Matrix
	observer  Observer
	input     *tensor.Node
	negDist   *tensor.Node
}

// NewKMeans fits a k-means model with nClusters on the given samples.
func NewKMeans(samples [][]float64, nClusters int, opts ...Option) (*KMeans, error) {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}
	if s.observer == nil {
		s.observer = void{}
	}
	if nClusters < 1 {
		return nil, fmt.Errorf("number of clusters must be positive but was %d: %w", nClusters, ErrInvalidInput)
	}
	if s.iterations < 1 {
		return nil, fmt.Errorf("iterations must be positive but was %d: %w", s.iterations, ErrInvalidInput)
	}
	if s.batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive but was %d: %w", s.batchSize, ErrInvalidInput)
	}
	nFeatures, err := dim(samples)
	if err != nil {
		return nil, err
	}
	if len(samples) < nClusters {
		return nil, fmt.Errorf("need at least %d samples for %d clusters but got %d: %w",
			nClusters, nClusters, len(samples), ErrInvalidInput)
	}

	data := make([][]float64, len(samples))
	for i, row := range samples {
		data[i] = append([]float64(nil), row...)
	}

	k := &KMeans{
		id:        uuid.New().String(),
		nFeatures: nFeatures,
		nClusters: nClusters,
		batchSize: s.batchSize,
		observer:  s.observer,
	}

	log.Debug().
		Str("id", k.id).
		Int("samples", len(data)).
		Int("features", nFeatures).
		Int("clusters", nClusters).
		Msg("fitting k-means")
	start := time.Now()
	k.model, err = fit(data, nClusters, s.iterations, s.seed)
	if err != nil {
		log.Error().
			Err(err).
			Str("id", k.id).
			Int("samples", len(data)).
			Int("clusters", nClusters).
			Msg("could not fit k-means")
		return nil, fmt.Errorf("could not fit k-means (%s): %w", err.Error(), ErrInvalidInput)
	}

	if len(k.model.Centroids) != nClusters {
		return nil, fmt.Errorf("k-means produced %d centers instead of %d: %w",
			len(k.model.Centroids), nClusters, ErrInvalidInput)
	}
	for i, c := range k.model.Centroids {
		if len(c) != nFeatures {
			return nil, fmt.Errorf("center %d has %d features instead of %d: %w", i, len(c), nFeatures, ErrInvalidInput)
		}
	}
	// goml moves the training rows it picked as centroids,
	// the centers are settled again on the untouched samples.
	k.model.Centroids = lloyd(data, k.model.Centroids, s.iterations)

	k.centers = xmath.Mat(nClusters)
	flat := make([]float64, 0, nClusters*nFeatures)
	for i, c := range k.model.Centroids {
		k.centers[i] = xmath.Vec(nFeatures).With(c...)
		flat = append(flat, c...)
	}

	g := tensor.NewGraph()
	k.input = g.Placeholder("x", k.batchSize, nFeatures)
	k.negDist = g.NegSquaredDistance(k.input, g.Constant("centers", mat.NewDense(nClusters, nFeatures, flat)))

	k.observer.Fitted(k.id, len(data), nClusters, time.Since(start))
	return k, nil
}

func fit(data [][]float64, nClusters, iterations int, seed int64) (*cluster.KMeans, error) {
	train := make([][]float64, len(data))
	for i, row := range data {
		train[i] = append([]float64(nil), row...)
	}

	fitLock.Lock()
	defer fitLock.Unlock()
	model := cluster.NewKMeans(nClusters, iterations, train)
	// NewKMeans seeds the shared source from the clock
	rand.Seed(seed)
	model.Output = io.Discard
	if err := model.Learn(); err != nil {
		return nil, err
	}
	return model, nil
}

// lloyd moves every center to the mean of the samples closest to it,
// until the assignment does not change.
// A center without samples keeps its position.
func lloyd(samples, centroids [][]float64, iterations int) [][]float64 {
	centers := make([][]float64, len(centroids))
	for i, c := range centroids {
		centers[i] = append([]float64(nil), c...)
	}
	labels := make([]int, len(samples))
	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, x := range samples {
			if l := nearest(centers, x); l != labels[i] {
				labels[i] = l
				changed = true
			}
		}
		if !changed {
			break
		}
		sums := make([][]float64, len(centers))
		counts := make([]int, len(centers))
		for i, x := range samples {
			l := labels[i]
			if sums[l] == nil {
				sums[l] = make([]float64, len(x))
			}
			floats.Add(sums[l], x)
			counts[l]++
		}
		for j := range centers {
			if counts[j] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[j]), sums[j])
			centers[j] = sums[j]
		}
	}
	return centers
}

// nearest returns the first center with the smallest squared distance to x.
func nearest(centers [][]float64, x []float64) int {
	guess := 0
	best := math.Inf(1)
	for j, c := range centers {
		var d float64
		for i := range x {
			d += (x[i] - c[i]) * (x[i] - c[i])
		}
		if d < best {
			best = d
			guess = j
		}
	}
	return guess
}

// Labeling fits a model on the samples and returns the cluster of each sample.
func Labeling(samples [][]float64, nClusters int, opts ...Option) ([]int, error) {
	k, err := NewKMeans(samples, nClusters, append(opts, WithObserver(nil))...)
	if err != nil {
		return nil, err
	}
	return k.Predict(samples)
}

func (k *KMeans) ID() string {
	return k.id
}

func (k *KMeans) Features() int {
	return k.nFeatures
}

func (k *KMeans) Clusters() int {
	return k.nClusters
}

func (k *KMeans) BatchSize() int {
	return k.batchSize
}

// Centers returns a copy of the cluster centers.
func (k *KMeans) Centers() xmath.Matrix {
	return k.centers.Copy()
}

// Predict assigns every row of x to its closest center.
func (k *KMeans) Predict(x [][]float64) ([]int, error) {
	if err := k.check(x); err != nil {
		return nil, err
	}
	labels := make([]int, len(x))
	for i, row := range x {
		guess, err := k.model.Predict(row)
		if err != nil {
			log.Error().
				Err(err).
				Str("id", k.id).
				Int("row", i).
				Msg("could not predict for k-means")
			return nil, fmt.Errorf("could not predict row %d: %w", i, err)
		}
		labels[i] = int(math.Round(guess[0]))
	}
	return labels, nil
}

func (k *KMeans) check(x [][]float64) error {
	for i, row := range x {
		if len(row) != k.nFeatures {
			return fmt.Errorf("x should have %d features but row %d has %d: %w",
				k.nFeatures, i, len(row), ErrFeatureMismatch)
		}
	}
	return nil
}

func dim(samples [][]float64) (int, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("no samples given: %w", ErrInvalidInput)
	}
	n := len(samples[0])
	if n == 0 {
		return 0, fmt.Errorf("samples have no features: %w", ErrInvalidInput)
	}
	for i, row := range samples {
		if len(row) != n {
			return 0, fmt.Errorf("sample %d has %d features instead of %d: %w", i, len(row), n, ErrInvalidInput)
		}
	}
	return n, nil
}
