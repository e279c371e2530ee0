package batch

import (
	"log/slog"
	"time"

	"github.com/MeKo-Tech/dmscan/internal/naming"
	"github.com/MeKo-Tech/dmscan/internal/preprocess"
)

// Option configures a Runner.
type Option func(*Runner)

// WithPreprocessOptions sets denoising and threshold parameters. The scale
// always comes from the job.
func WithPreprocessOptions(opts preprocess.Options) Option {
	return func(r *Runner) { r.preprocess = opts }
}

// WithEngine selects the preprocessing engine.
func WithEngine(e preprocess.Engine) Option {
	return func(r *Runner) { r.engine = e }
}

// WithClock replaces the time source used for run stamps and events.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) { r.clock = clock }
}

// WithLogger sets the logger for state transitions and warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMaxBaseLength caps the text part of output file names.
func WithMaxBaseLength(n int) Option {
	return func(r *Runner) { r.maxBaseLength = n }
}

func defaultRunner() *Runner {
	return &Runner{
		engine:        preprocess.DefaultEngine(),
		preprocess:    preprocess.DefaultOptions(),
		clock:         time.Now,
		logger:        slog.Default(),
		maxBaseLength: naming.DefaultMaxBaseLength,
	}
}
