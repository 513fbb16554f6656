package ml

import (
	"errors"
	"fmt"

	"github.com/drakos74/free-face/internal/math/tensor"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// Session runs tensor graphs. The caller opens and closes it.
type Session interface {
	Run(fetch *tensor.Node, feed tensor.Feed) (*mat.Dense, error)
	Closed() bool
}

// KHash returns for every row of x the negative squared distance to each of the centers.
// The bigger the value, the closer the row is to the center.
// Rows are evaluated in batches through the given session,
// the last batch is padded with zero rows which are dropped from the result.
func (k *KMeans) KHash(sess Session, x [][]float64) ([][]float64, error) {
	if sess == nil || sess.Closed() {
		return nil, fmt.Errorf("no open session for k-hash: %w", ErrSessionUnavailable)
	}
	if err := k.check(x); err != nil {
		return nil, err
	}
	m := len(x)
	if m == 0 {
		return [][]float64{}, nil
	}

	padded := m
	if r := m % k.batchSize; r != 0 {
		padded += k.batchSize - r
	}
	data := mat.NewDense(padded, k.nFeatures, nil)
	for i, row := range x {
		data.SetRow(i, row)
	}

	nbatch := padded / k.batchSize
	hash := make([][]float64, 0, m)
	for b := 0; b < nbatch; b++ {
		batch := data.Slice(b*k.batchSize, (b+1)*k.batchSize, 0, k.nFeatures)
		out, err := sess.Run(k.negDist, tensor.Feed{k.input: batch})
		if err != nil {
			log.Error().
				Err(err).
				Str("id", k.id).
				Int("batch", b).
				Int("total", nbatch).
				Msg("could not run k-hash batch")
			if errors.Is(err, tensor.ErrClosed) {
				return nil, fmt.Errorf("session closed at batch %d: %w", b, ErrSessionUnavailable)
			}
			return nil, fmt.Errorf("could not run batch %d: %w", b, err)
		}
		for i := 0; i < k.batchSize && len(hash) < m; i++ {
			hash = append(hash, mat.Row(nil, i, out))
		}
		k.observer.Batch(k.id, b+1, nbatch)
	}
	return hash, nil
}
