package ml

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs generates n samples around each of the given centers.
func blobs(seed int64, n int, centers ...[]float64) [][]float64 {
	rnd := rand.New(rand.NewSource(seed))
	samples := make([][]float64, 0, n*len(centers))
	for i := 0; i < n; i++ {
		for _, c := range centers {
			s := make([]float64, len(c))
			for j := range c {
				s[j] = c[j] + rnd.NormFloat64()*0.5
			}
			samples = append(samples, s)
		}
	}
	return samples
}

type countingObserver struct {
	lock    sync.Mutex
	fitted  int
	batches []int
	total   int
}

func (c *countingObserver) Fitted(id string, samples, clusters int, duration time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.fitted++
}

func (c *countingObserver) Batch(id string, batch, total int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.batches = append(c.batches, batch)
	c.total = total
}

func TestKMeans_Scenario(t *testing.T) {

	samples := [][]float64{{0, 0}, {0, 1}, {10, 10}, {10, 11}}
	k, err := NewKMeans(samples, 2)
	require.NoError(t, err)

	labels, err := k.Predict([][]float64{{0, 0}, {10, 10}})
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.NotEqual(t, labels[0], labels[1])

	sess := newSession()
	defer sess.Close()

	hash, err := k.KHash(sess, [][]float64{{0, 0}})
	require.NoError(t, err)
	require.Len(t, hash, 1)
	require.Len(t, hash[0], 2)

	label, err := k.Predict([][]float64{{0, 0}})
	require.NoError(t, err)
	assert.Equal(t, label[0], argmax(hash[0]))
}

func TestKMeans_Centers(t *testing.T) {

	type test struct {
		samples  [][]float64
		clusters int
	}

	tests := map[string]test{
		"2d-2": {
			samples:  blobs(1, 20, []float64{-5, -5}, []float64{5, 5}),
			clusters: 2,
		},
		"3d-3": {
			samples:  blobs(2, 20, []float64{0, 0, 0}, []float64{10, 0, 0}, []float64{0, 10, 0}),
			clusters: 3,
		},
		"1d": {
			samples:  blobs(3, 10, []float64{-3}, []float64{3}),
			clusters: 2,
		},
		"single": {
			samples:  blobs(3, 10, []float64{1, 2, 3, 4}),
			clusters: 1,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			k, err := NewKMeans(tt.samples, tt.clusters, WithObserver(nil))
			require.NoError(t, err)
			assert.Equal(t, tt.clusters, k.Clusters())
			assert.Equal(t, len(tt.samples[0]), k.Features())
			assert.NotEmpty(t, k.ID())

			centers := k.Centers()
			require.Len(t, centers, tt.clusters)
			for _, c := range centers {
				assert.Len(t, c, len(tt.samples[0]))
			}

			labels, err := k.Predict(tt.samples)
			require.NoError(t, err)
			require.Len(t, labels, len(tt.samples))
			for _, l := range labels {
				assert.GreaterOrEqual(t, l, 0)
				assert.Less(t, l, tt.clusters)
			}
		})
	}
}

func TestKMeans_CentersAreCopies(t *testing.T) {
	samples := blobs(4, 10, []float64{-5, -5}, []float64{5, 5})
	k, err := NewKMeans(samples, 2, WithObserver(nil))
	require.NoError(t, err)

	before := k.Centers()
	c := k.Centers()
	c[0][0] = 1000
	assert.Equal(t, before, k.Centers())

	// the training samples are not shared with the model either
	samples[0][0] = 1000
	assert.Equal(t, before, k.Centers())
}

func TestKMeans_PredictIdempotent(t *testing.T) {
	samples := blobs(5, 30, []float64{-5, 0}, []float64{5, 0}, []float64{0, 8})
	k, err := NewKMeans(samples, 3, WithObserver(nil))
	require.NoError(t, err)

	first, err := k.Predict(samples)
	require.NoError(t, err)
	second, err := k.Predict(samples)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestKMeans_Deterministic(t *testing.T) {
	samples := blobs(6, 30, []float64{-5, 0}, []float64{5, 0}, []float64{0, 8})

	k1, err := NewKMeans(samples, 3, WithSeed(7), WithObserver(nil))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		// the clock must not leak into the fit
		time.Sleep(1100 * time.Millisecond)
		k2, err := NewKMeans(samples, 3, WithSeed(7), WithObserver(nil))
		require.NoError(t, err)

		assert.Equal(t, k1.Centers(), k2.Centers())
		assert.NotEqual(t, k1.ID(), k2.ID())
	}
}

func TestKMeans_CentersAreMeans(t *testing.T) {

	type test struct {
		samples  [][]float64
		clusters int
		centers  [][]float64
	}

	tests := map[string]test{
		"pairs": {
			samples:  [][]float64{{0, 0}, {0, 1}, {10, 10}, {10, 11}},
			clusters: 2,
			centers:  [][]float64{{0, 0.5}, {10, 10.5}},
		},
		"blobs": {
			samples:  blobs(14, 25, []float64{-5, -5}, []float64{5, 5}, []float64{5, -5}),
			clusters: 3,
		},
		"3d": {
			samples:  blobs(15, 20, []float64{0, 0, 0}, []float64{8, 8, 8}),
			clusters: 2,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for seed := int64(0); seed < 5; seed++ {
				k, err := NewKMeans(tt.samples, tt.clusters, WithSeed(seed), WithObserver(nil))
				require.NoError(t, err)

				labels, err := k.Predict(tt.samples)
				require.NoError(t, err)

				centers := k.Centers()
				for c := range centers {
					mean := make([]float64, k.Features())
					n := 0
					for i, l := range labels {
						if l != c {
							continue
						}
						for j := range mean {
							mean[j] += tt.samples[i][j]
						}
						n++
					}
					if n == 0 {
						continue
					}
					for j := range mean {
						mean[j] /= float64(n)
					}
					assert.InDeltaSlice(t, mean, []float64(centers[c]), 1e-9)
				}

				if tt.centers != nil {
					for _, expected := range tt.centers {
						found := false
						for _, c := range centers {
							if math.Abs(c[0]-expected[0]) < 1e-9 && math.Abs(c[1]-expected[1]) < 1e-9 {
								found = true
							}
						}
						assert.True(t, found, "%v not in %v", expected, centers)
					}
				}
			}
		})
	}
}

func TestKMeans_InvalidInput(t *testing.T) {

	type test struct {
		samples  [][]float64
		clusters int
		opts     []Option
	}

	tests := map[string]test{
		"too-few-samples": {
			samples:  [][]float64{{0, 0}},
			clusters: 2,
		},
		"no-samples": {
			samples:  [][]float64{},
			clusters: 1,
		},
		"no-features": {
			samples:  [][]float64{{}, {}},
			clusters: 1,
		},
		"ragged": {
			samples:  [][]float64{{0, 0}, {1}},
			clusters: 1,
		},
		"zero-clusters": {
			samples:  [][]float64{{0, 0}, {1, 1}},
			clusters: 0,
		},
		"zero-batch": {
			samples:  [][]float64{{0, 0}, {1, 1}},
			clusters: 1,
			opts:     []Option{WithBatchSize(0)},
		},
		"zero-iterations": {
			samples:  [][]float64{{0, 0}, {1, 1}},
			clusters: 1,
			opts:     []Option{WithIterations(0)},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewKMeans(tt.samples, tt.clusters, tt.opts...)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

func TestKMeans_FeatureMismatch(t *testing.T) {

	k, err := NewKMeans(blobs(8, 10, []float64{0, 0, 0}, []float64{5, 5, 5}), 2, WithObserver(nil))
	require.NoError(t, err)

	sess := newSession()
	defer sess.Close()

	tests := map[string][][]float64{
		"less":   {{1, 2}},
		"more":   {{1, 2, 3, 4}},
		"many":   {{1, 2, 3, 4, 5, 6, 7, 8}},
		"ragged": {{1, 2, 3}, {1, 2}},
		"empty":  {{}},
	}

	for name, x := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := k.Predict(x)
			assert.True(t, errors.Is(err, ErrFeatureMismatch))
			_, err = k.KHash(sess, x)
			assert.True(t, errors.Is(err, ErrFeatureMismatch))
		})
	}
	assert.Equal(t, 0, sess.Runs())
}

func TestLabeling(t *testing.T) {
	samples := [][]float64{{0, 0}, {0, 1}, {10, 10}, {10, 11}}
	labels, err := Labeling(samples, 2)
	require.NoError(t, err)
	require.Len(t, labels, 4)
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[2], labels[3])
	assert.NotEqual(t, labels[0], labels[2])

	_, err = Labeling(samples, 5)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestConfig_Options(t *testing.T) {
	observer := &countingObserver{}
	cfg := Config{
		Clusters:   2,
		Iterations: 50,
		BatchSize:  3,
		Seed:       11,
	}
	k, err := NewKMeans(blobs(9, 10, []float64{0, 0}, []float64{5, 5}), cfg.Clusters,
		append(cfg.Options(), WithObserver(observer))...)
	require.NoError(t, err)
	assert.Equal(t, 3, k.BatchSize())
	assert.Equal(t, 1, observer.fitted)

	k, err = NewKMeans(blobs(9, 10, []float64{0, 0}, []float64{5, 5}), 2, Config{}.Options()...)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, k.BatchSize())
}

func argmax(v []float64) int {
	idx := 0
	for i := range v {
		if v[i] > v[idx] {
			idx = i
		}
	}
	return idx
}
