package trainer

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/samuelfneumann/onpolicy/experiment/checkpointer"
	"github.com/samuelfneumann/onpolicy/experiment/tracker"
)

// Option configures optional behaviour of a Trainer
type Option func(*Trainer)

// WithLogger sets the logger of the Trainer. By default nothing is
// logged.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Trainer) {
		t.logger = logger.With().Str("component", "trainer").Logger()
	}
}

// WithTracker adds a Tracker which receives every metric of the run
func WithTracker(tr tracker.Tracker) Option {
	return func(t *Trainer) {
		t.trackers = append(t.trackers, tr)
	}
}

// WithCheckpointer adds a Checkpointer which is called after every
// cycle
func WithCheckpointer(c checkpointer.Checkpointer) Option {
	return func(t *Trainer) {
		t.checkpointers = append(t.checkpointers, c)
	}
}

// WithProgress prints a progress bar of the environment steps taken to
// out after every cycle
func WithProgress(out io.Writer) Option {
	return func(t *Trainer) {
		t.progressOut = out
	}
}

// WithProcessMetrics tracks the resident memory and CPU usage of the
// training process after every cycle
func WithProcessMetrics() Option {
	return func(t *Trainer) {
		t.processMetrics = true
	}
}
