package ml

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// CustomROC computes the roc curve for distances, where a smaller distance means a positive pair.
// labels must be 1 for the same identity and 0 for different ones.
// The returned thresholds are on the distance scale,
// point i classifies a pair as positive if its distance is <= thr[i].
func CustomROC(labels []int, distances []float64) (fpr, tpr, thr []float64, err error) {
	if len(labels) == 0 {
		return nil, nil, nil, fmt.Errorf("no labels given: %w", ErrInvalidInput)
	}
	if len(labels) != len(distances) {
		return nil, nil, nil, fmt.Errorf("labels and distances must be aligned [%d vs %d]: %w",
			len(labels), len(distances), ErrInvalidInput)
	}

	scores := make([]float64, len(distances))
	var pos int
	for i, d := range distances {
		if math.IsNaN(d) {
			return nil, nil, nil, fmt.Errorf("distance at %d is not a number: %w", i, ErrInvalidInput)
		}
		scores[i] = -d
		switch labels[i] {
		case 1:
			pos++
		case 0:
		default:
			return nil, nil, nil, fmt.Errorf("label at %d must be 0 or 1 but was %d: %w", i, labels[i], ErrInvalidInput)
		}
	}
	if pos == 0 || pos == len(labels) {
		log.Warn().
			Int("positive", pos).
			Int("negative", len(labels)-pos).
			Msg("roc curve is not defined for a single class")
	}

	// the scores need to be sorted for the roc calculation
	idx := make([]int, len(scores))
	floats.Argsort(scores, idx)
	classes := make([]bool, len(scores))
	for i, j := range idx {
		classes[i] = labels[j] == 1
	}

	tpr, fpr, thr = stat.ROC(nil, scores, classes, nil)
	for i := range thr {
		thr[i] = -thr[i]
	}
	return fpr, tpr, thr, nil
}

// AUC returns the area under the given roc curve.
func AUC(fpr, tpr []float64) (float64, error) {
	if len(fpr) != len(tpr) || len(fpr) < 2 {
		return 0, fmt.Errorf("invalid curve of size [%d | %d]: %w", len(fpr), len(tpr), ErrInvalidInput)
	}
	for i := range fpr {
		if math.IsNaN(fpr[i]) || math.IsNaN(tpr[i]) {
			return 0, fmt.Errorf("undefined rate at %d: %w", i, ErrInvalidInput)
		}
		if i > 0 && fpr[i] < fpr[i-1] {
			return 0, fmt.Errorf("false positive rate must be non-decreasing: %w", ErrInvalidInput)
		}
	}
	return integrate.Trapezoidal(fpr, tpr), nil
}
