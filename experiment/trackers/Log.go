package trackers

import "github.com/rs/zerolog"

// Log writes every metric as a structured log event
type Log struct {
	logger zerolog.Logger
	level  zerolog.Level
}

// NewLog returns a new Log which logs metrics to logger at level
func NewLog(logger zerolog.Logger, level zerolog.Level) *Log {
	return &Log{
		logger: logger.With().Str("component", "tracker").Logger(),
		level:  level,
	}
}

// Track logs a metric value
func (l *Log) Track(name string, value float64, step int) {
	l.logger.WithLevel(l.level).
		Str("metric", name).
		Float64("value", value).
		Int("step", step).
		Msg("")
}

// Save is a no-op, events are written as they are tracked
func (l *Log) Save() error {
	return nil
}
