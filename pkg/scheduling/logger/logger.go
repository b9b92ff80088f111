// Package logger implements the logging stage: the single reader of the log
// channel, relaying every completion record to a sink in delivery order.
package logger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/prioflow/pkg/common/validation"
	"github.com/vnykmshr/prioflow/pkg/metrics"
	"github.com/vnykmshr/prioflow/pkg/sink"
	"github.com/vnykmshr/prioflow/pkg/streaming/channel"
	"github.com/vnykmshr/prioflow/pkg/task"
)

// Config holds configuration options for a Logger.
type Config struct {
	// Sink receives every record. Required.
	Sink sink.Sink

	// Name labels metrics emitted by this logger.
	Name string

	// Metrics receives relayed and sink error counters. Optional.
	Metrics *metrics.Registry

	// Logger receives lifecycle events. The zero value discards them.
	Logger zerolog.Logger
}

// Logger drains a log channel into a sink.
type Logger struct {
	config Config
	log    zerolog.Logger
}

// New creates a Logger.
func New(config Config) (*Logger, error) {
	if err := validation.ValidateNotNil("logger", "Sink", config.Sink); err != nil {
		return nil, err
	}
	return &Logger{
		config: config,
		log:    config.Logger.With().Str("component", "logger").Logger(),
	}, nil
}

// Run opens the reader end of pipe, blocking until a writer exists, and
// relays records until the pipe is closed and drained. It returns the
// number of records received.
//
// A sink error does not stop the drain, so writers never block on a dead
// logger; the first sink error is returned once the pipe reaches EOF.
func (l *Logger) Run(ctx context.Context, pipe *channel.Pipe[task.Record]) (int, error) {
	r, err := pipe.OpenReader(ctx)
	if err != nil {
		return 0, fmt.Errorf("open log channel: %w", err)
	}
	defer r.Close()

	var (
		n        int
		sinkErr  error
		failures int
	)
	for {
		rec, err := r.Receive(ctx)
		if errors.Is(err, channel.ErrChannelClosed) {
			break
		}
		if err != nil {
			return n, err
		}
		n++

		if err := l.config.Sink.Consume(ctx, rec); err != nil {
			failures++
			if sinkErr == nil {
				sinkErr = fmt.Errorf("sink: %w", err)
			}
			l.log.Warn().Err(err).Str("task", rec.Task.Name).Msg("sink rejected record")
			if l.config.Metrics != nil {
				l.config.Metrics.SinkErrors.WithLabelValues(l.config.Name).Inc()
			}
			continue
		}
		if l.config.Metrics != nil {
			l.config.Metrics.RecordsRelayed.WithLabelValues(l.config.Name).Inc()
		}
	}

	l.log.Debug().Int("records", n).Int("sink_errors", failures).Msg("log channel drained")
	return n, sinkErr
}
