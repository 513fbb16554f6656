package ml

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/sjwhitworth/golearn/evaluation"
)

const (
	Same      = "same"
	Different = "different"
)

// Evaluation describes the verification performance at a given distance threshold.
type Evaluation struct {
	Threshold float64
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	Confusion evaluation.ConfusionMatrix
}

// Summary returns the golearn text summary of the confusion matrix.
func (e Evaluation) Summary() string {
	return evaluation.GetSummary(e.Confusion)
}

func (e Evaluation) String() string {
	return fmt.Sprintf("threshold=%.4f accuracy=%.4f precision=%.4f recall=%.4f f1=%.4f",
		e.Threshold, e.Accuracy, e.Precision, e.Recall, e.F1)
}

// Evaluate classifies every pair with distance <= threshold as the same identity
// and compares the outcome against the labels.
func Evaluate(labels []int, distances []float64, threshold float64) (Evaluation, error) {
	if len(labels) == 0 || len(labels) != len(distances) {
		return Evaluation{}, fmt.Errorf("labels and distances must be aligned [%d vs %d]: %w",
			len(labels), len(distances), ErrInvalidInput)
	}
	confusion := evaluation.ConfusionMatrix{
		Same:      {Same: 0, Different: 0},
		Different: {Same: 0, Different: 0},
	}
	for i, d := range distances {
		var ref string
		switch labels[i] {
		case 1:
			ref = Same
		case 0:
			ref = Different
		default:
			return Evaluation{}, fmt.Errorf("label at %d must be 0 or 1 but was %d: %w", i, labels[i], ErrInvalidInput)
		}
		predicted := Different
		if d <= threshold {
			predicted = Same
		}
		confusion[ref][predicted]++
	}
	return Evaluation{
		Threshold: threshold,
		Accuracy:  evaluation.GetAccuracy(confusion),
		Precision: evaluation.GetPrecision(Same, confusion),
		Recall:    evaluation.GetRecall(Same, confusion),
		F1:        evaluation.GetF1Score(Same, confusion),
		Confusion: confusion,
	}, nil
}

// BestThreshold evaluates all thresholds of the roc curve and returns the most accurate one.
func BestThreshold(labels []int, distances []float64) (Evaluation, error) {
	_, _, thr, err := CustomROC(labels, distances)
	if err != nil {
		return Evaluation{}, err
	}
	var best Evaluation
	found := false
	for _, t := range thr {
		if math.IsInf(t, 0) || math.IsNaN(t) {
			continue
		}
		e, err := Evaluate(labels, distances, t)
		if err != nil {
			return Evaluation{}, err
		}
		if !found || e.Accuracy > best.Accuracy {
			best = e
			found = true
		}
	}
	if !found {
		return Evaluation{}, fmt.Errorf("no finite threshold: %w", ErrInvalidInput)
	}
	log.Debug().
		Float64("threshold", best.Threshold).
		Float64("accuracy", best.Accuracy).
		Int("candidates", len(thr)).
		Msg("selected threshold")
	return best, nil
}
