package ml

import (
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultBatchSize  = 2
	DefaultIterations = 300
	DefaultSeed       = 0
)

// Config holds the k-means parameters as they are configured in json.
type Config struct {
	Clusters   int   `json:"clusters"`
	Iterations int   `json:"iterations"`
	BatchSize  int   `json:"batch_size"`
	Seed       int64 `json:"seed"`
	Quiet      bool  `json:"quiet"`
}

// Options translates the config into constructor options.
// Zero values keep the defaults.
func (c Config) Options() []Option {
	opts := make([]Option, 0)
	if c.Iterations > 0 {
		opts = append(opts, WithIterations(c.Iterations))
	}
	if c.BatchSize > 0 {
		opts = append(opts, WithBatchSize(c.BatchSize))
	}
	opts = append(opts, WithSeed(c.Seed))
	if c.Quiet {
		opts = append(opts, WithObserver(nil))
	}
	return opts
}

type settings struct {
	seed       int64
	iterations int
	batchSize  int
	observer   Observer
}

func defaults() settings {
	return settings{
		seed:       DefaultSeed,
		iterations: DefaultIterations,
		batchSize:  DefaultBatchSize,
		observer:   LogObserver{},
	}
}

type Option func(s *settings)

func WithSeed(seed int64) Option {
	return func(s *settings) {
		s.seed = seed
	}
}

func WithIterations(iterations int) Option {
	return func(s *settings) {
		s.iterations = iterations
	}
}

// WithBatchSize sets the number of rows evaluated per session run in KHash.
func WithBatchSize(size int) Option {
	return func(s *settings) {
		s.batchSize = size
	}
}

// WithObserver replaces the progress observer, nil disables progress reporting.
func WithObserver(observer Observer) Option {
	return func(s *settings) {
		s.observer = observer
	}
}

// Observer is notified about the progress of fitting and hashing.
// It is purely diagnostic.
type Observer interface {
	Fitted(id string, samples, clusters int, duration time.Duration)
	Batch(id string, batch, total int)
}

// Observers fans out the progress to all observers.
type Observers []Observer

func (o Observers) Fitted(id string, samples, clusters int, duration time.Duration) {
	for _, observer := range o {
		observer.Fitted(id, samples, clusters, duration)
	}
}

func (o Observers) Batch(id string, batch, total int) {
	for _, observer := range o {
		observer.Batch(id, batch, total)
	}
}

// LogObserver logs the progress.
type LogObserver struct{}

func (LogObserver) Fitted(id string, samples, clusters int, duration time.Duration) {
	log.Info().
		Str("id", id).
		Int("samples", samples).
		Int("clusters", clusters).
		Dur("duration", duration).
		Msg("fitted k-means")
}

func (LogObserver) Batch(id string, batch, total int) {
	log.Debug().
		Str("id", id).
		Int("batch", batch).
		Int("total", total).
		Msg("k-hash")
}

type void struct{}

func (void) Fitted(string, int, int, time.Duration) {}

func (void) Batch(string, int, int) {}
