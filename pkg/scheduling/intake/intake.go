// Package intake forwards submitted tasks from a Source onto the intake
// channel and terminates the stream with task.Sentinel.
package intake

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/prioflow/pkg/metrics"
	"github.com/vnykmshr/prioflow/pkg/task"
)

// Source yields task requests in submission order. Next returns io.EOF
// when input is exhausted.
type Source interface {
	Next(ctx context.Context) (task.Task, error)
}

// Config holds configuration options for a Handler.
type Config struct {
	// Name labels metrics emitted by this handler.
	Name string

	// Metrics receives the submitted counter. Optional.
	Metrics *metrics.Registry

	// Logger receives lifecycle events. The zero value discards them.
	Logger zerolog.Logger
}

// Handler is the task input stage.
type Handler struct {
	config Config
	log    zerolog.Logger
}

// New creates a Handler.
func New(config Config) *Handler {
	return &Handler{
		config: config,
		log:    config.Logger.With().Str("component", "intake").Logger(),
	}
}

// Run forwards tasks from a default Handler. See Handler.Run.
func Run(ctx context.Context, src Source, out chan<- task.Task) (int, error) {
	return New(Config{}).Run(ctx, src, out)
}

// Run forwards every task from src to out in order, then sends
// task.Sentinel and closes out. It returns the number of tasks forwarded.
//
// Priorities are not validated. A source error other than io.EOF still
// ends the stream with the sentinel and is returned. When ctx is cancelled
// out is closed without the sentinel, which the queue manager treats the
// same way.
func (h *Handler) Run(ctx context.Context, src Source, out chan<- task.Task) (n int, err error) {
	defer close(out)

	for {
		t, nerr := src.Next(ctx)
		if nerr != nil {
			if !errors.Is(nerr, io.EOF) {
				err = nerr
			}
			break
		}
		if t.IsSentinel() {
			// An explicit marker from the source ends input early.
			break
		}
		select {
		case out <- t:
			n++
			if h.config.Metrics != nil {
				h.config.Metrics.TasksSubmitted.WithLabelValues(h.config.Name).Inc()
			}
		case <-ctx.Done():
			return n, ctx.Err()
		}
	}

	select {
	case out <- task.Sentinel:
	case <-ctx.Done():
		return n, ctx.Err()
	}

	ev := h.log.Info()
	if err != nil {
		ev = h.log.Warn().Err(err)
	}
	ev.Int("tasks", n).Msg("task input completed")
	return n, err
}
