package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "free_face"

// Prometheus collects the k-means progress.
// It can be passed as an observer to the k-means model.
type Prometheus struct {
	Fits        *prometheus.CounterVec
	FitDuration prometheus.Histogram
	Batches     prometheus.Counter
}

func NewPrometheusMetrics() Prometheus {
	return Prometheus{
		Fits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fits_total",
				Help:      "number of fitted k-means models",
			}, []string{"clusters"}),
		FitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fit_duration_seconds",
				Help:      "time spent fitting k-means models",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			}),
		Batches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hash_batches_total",
				Help:      "number of k-hash batches evaluated",
			}),
	}
}

// Register registers all collectors.
func (p Prometheus) Register(registerer prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{p.Fits, p.FitDuration, p.Batches} {
		if err := registerer.Register(c); err != nil {
			return fmt.Errorf("could not register collector: %w", err)
		}
	}
	return nil
}

func (p Prometheus) Fitted(id string, samples, clusters int, duration time.Duration) {
	p.Fits.WithLabelValues(fmt.Sprintf("%d", clusters)).Inc()
	p.FitDuration.Observe(duration.Seconds())
}

func (p Prometheus) Batch(id string, batch, total int) {
	p.Batches.Inc()
}
