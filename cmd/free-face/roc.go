package main

import (
	"fmt"
	"io"

	face_math "github.com/drakos74/free-face/internal/math"
	"github.com/drakos74/free-face/internal/math/ml"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rocOptions struct {
	in        string
	synthetic int
	seed      uint64
	summary   bool
}

func newRocCmd() *cobra.Command {
	opts := rocOptions{}
	cmd := &cobra.Command{
		Use:   "roc",
		Short: "Compute the roc curve of labelled distances",
		Long: `Reads label,distance pairs (label 1 for the same identity, 0 otherwise)
and prints fpr,tpr,threshold for every point of the roc curve,
followed by the area under the curve and the most accurate threshold.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoc(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.in, "in", "", "CSV file with label,distance records")
	cmd.Flags().IntVar(&opts.synthetic, "synthetic", 0, "Generate the given number of random pairs instead of reading a file")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Seed for synthetic pairs")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Print the confusion matrix summary at the best threshold")
	return cmd
}

func runRoc(out io.Writer, opts rocOptions) error {
	var labels []int
	var distances []float64
	switch {
	case opts.synthetic > 0:
		labels, distances = face_math.Pairs(opts.seed, opts.synthetic, 0.6, 1.2, 0.3)
	case opts.in != "":
		records, err := readCSV(opts.in)
		if err != nil {
			return err
		}
		labels, distances, err = pairs(records)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("either --in or --synthetic is required")
	}

	fpr, tpr, thr, err := ml.CustomROC(labels, distances)
	if err != nil {
		return fmt.Errorf("could not compute roc curve: %w", err)
	}
	fmt.Fprintln(out, "fpr,tpr,threshold")
	for i := range thr {
		fmt.Fprintln(out, formatRow([]float64{fpr[i], tpr[i], thr[i]}))
	}

	auc, err := ml.AUC(fpr, tpr)
	if err != nil {
		log.Warn().Err(err).Msg("could not compute area under curve")
	} else {
		fmt.Fprintf(out, "auc=%.6f\n", auc)
	}

	best, err := ml.BestThreshold(labels, distances)
	if err != nil {
		log.Warn().Err(err).Msg("could not find best threshold")
		return nil
	}
	fmt.Fprintln(out, best.String())
	if opts.summary {
		fmt.Fprintln(out, best.Summary())
	}
	return nil
}
