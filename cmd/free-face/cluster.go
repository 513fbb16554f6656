package main

import (
	"fmt"
	"io"

	"github.com/drakos74/free-face/infra/config"
	face_math "github.com/drakos74/free-face/internal/math"
	"github.com/drakos74/free-face/internal/math/ml"
	"github.com/drakos74/free-face/internal/math/tensor"
	"github.com/drakos74/free-face/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type clusterOptions struct {
	in        string
	config    string
	synthetic int
	hash      bool
	metrics   bool
	cfg       ml.Config
}

func newClusterCmd() *cobra.Command {
	opts := clusterOptions{}
	config.MustLoad("kmeans", &opts.cfg)
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Fit k-means on samples and print labels and k-hashes",
		Long: `Reads one sample per line (comma separated features), fits k-means
and prints the cluster label of every sample. With --hash the negative squared
distances to all centers are printed instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.config != "" {
				var cfg ml.Config
				if err := config.Load(opts.config, &cfg); err != nil {
					return err
				}
				merge(cmd, &opts.cfg, cfg)
			}
			return runCluster(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.in, "in", "", "CSV file with one sample per line")
	cmd.Flags().StringVar(&opts.config, "config", "", "JSON config file, explicit flags take precedence")
	cmd.Flags().IntVar(&opts.synthetic, "synthetic", 0, "Generate the given number of samples per cluster instead of reading a file")
	cmd.Flags().BoolVar(&opts.hash, "hash", false, "Print the k-hash of every sample")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print the collected metrics")
	cmd.Flags().IntVar(&opts.cfg.Clusters, "clusters", opts.cfg.Clusters, "Number of clusters")
	cmd.Flags().IntVar(&opts.cfg.Iterations, "iterations", opts.cfg.Iterations, "Maximum k-means iterations")
	cmd.Flags().IntVar(&opts.cfg.BatchSize, "batch", opts.cfg.BatchSize, "Rows per k-hash batch")
	cmd.Flags().Int64Var(&opts.cfg.Seed, "seed", opts.cfg.Seed, "Seed for fitting and synthetic samples")
	return cmd
}

// merge applies the config values for all flags that were not set explicitly.
func merge(cmd *cobra.Command, target *ml.Config, cfg ml.Config) {
	if !cmd.Flags().Changed("clusters") && cfg.Clusters > 0 {
		target.Clusters = cfg.Clusters
	}
	if !cmd.Flags().Changed("iterations") && cfg.Iterations > 0 {
		target.Iterations = cfg.Iterations
	}
	if !cmd.Flags().Changed("batch") && cfg.BatchSize > 0 {
		target.BatchSize = cfg.BatchSize
	}
	if !cmd.Flags().Changed("seed") {
		target.Seed = cfg.Seed
	}
	target.Quiet = cfg.Quiet
}

func runCluster(out io.Writer, opts clusterOptions) error {
	var x [][]float64
	switch {
	case opts.synthetic > 0:
		centers := face_math.Grid(opts.cfg.Clusters, 2, 10)
		x = face_math.Blobs(uint64(opts.cfg.Seed), opts.synthetic, 1, centers...)
	case opts.in != "":
		records, err := readCSV(opts.in)
		if err != nil {
			return err
		}
		x, err = samples(records)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("either --in or --synthetic is required")
	}

	prom := metrics.NewPrometheusMetrics()
	registry := prometheus.NewRegistry()
	if err := prom.Register(registry); err != nil {
		return err
	}
	observers := ml.Observers{prom}
	if !opts.cfg.Quiet {
		observers = append(observers, ml.LogObserver{})
	}

	k, err := ml.NewKMeans(x, opts.cfg.Clusters, append(opts.cfg.Options(), ml.WithObserver(observers))...)
	if err != nil {
		return fmt.Errorf("could not create k-means: %w", err)
	}

	if opts.hash {
		sess := tensor.NewSession()
		defer sess.Close()
		hash, err := k.KHash(sess, x)
		if err != nil {
			return fmt.Errorf("could not hash samples: %w", err)
		}
		for _, h := range hash {
			fmt.Fprintln(out, formatRow(h))
		}
	} else {
		labels, err := k.Predict(x)
		if err != nil {
			return fmt.Errorf("could not predict samples: %w", err)
		}
		for _, l := range labels {
			fmt.Fprintln(out, l)
		}
	}

	if opts.metrics {
		families, err := registry.Gather()
		if err != nil {
			log.Warn().Err(err).Msg("could not gather metrics")
			return nil
		}
		for _, family := range families {
			for _, m := range family.GetMetric() {
				switch {
				case m.GetCounter() != nil:
					fmt.Fprintf(out, "%s %v\n", family.GetName(), m.GetCounter().GetValue())
				case m.GetHistogram() != nil:
					fmt.Fprintf(out, "%s_count %v\n", family.GetName(), m.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	return nil
}
