// Package queue implements the queue manager: the single consumer of the
// intake channel and the only writer of the shared task store.
package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/prioflow/pkg/metrics"
	"github.com/vnykmshr/prioflow/pkg/scheduling/store"
	"github.com/vnykmshr/prioflow/pkg/task"
)

// Config holds configuration options for a queue manager.
type Config struct {
	// Capacity bounds the number of tasks kept in the store. Tasks beyond
	// it are dropped. Zero means store.DefaultCapacity.
	Capacity int

	// Name labels metrics emitted by this manager.
	Name string

	// Metrics receives stored/dropped counters. Optional.
	Metrics *metrics.Registry

	// Logger receives lifecycle events. The zero value discards them.
	Logger zerolog.Logger

	// OnDrop is called for every task discarded for lack of capacity.
	OnDrop func(t task.Task)
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity: store.DefaultCapacity,
		Logger:   zerolog.Nop(),
	}
}

// Manager collects tasks from the intake channel into a store.
type Manager struct {
	config Config
	log    zerolog.Logger
}

// New creates a queue manager.
func New(config Config) (*Manager, error) {
	if config.Capacity == 0 {
		config.Capacity = store.DefaultCapacity
	}
	// Probe the capacity now so a bad value fails before any goroutine runs.
	if _, err := store.NewBuilder(config.Capacity); err != nil {
		return nil, err
	}
	return &Manager{
		config: config,
		log:    config.Logger.With().Str("component", "queue").Logger(),
	}, nil
}

// Collect reads tasks from in until it sees task.Sentinel or in is closed,
// whichever comes first, then sorts and publishes the store.
//
// If ctx is cancelled Collect stops reading and returns ctx.Err() without a
// store; the default pipeline never cancels.
func (m *Manager) Collect(ctx context.Context, in <-chan task.Task) (*store.Store, error) {
	b, err := store.NewBuilder(m.config.Capacity)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case t, ok := <-in:
			if !ok || t.IsSentinel() {
				return m.finalize(b), nil
			}
			if !b.Add(t) {
				m.dropped(t)
				continue
			}
			if m.config.Metrics != nil {
				m.config.Metrics.TasksStored.WithLabelValues(m.config.Name).Inc()
			}
		}
	}
}

func (m *Manager) dropped(t task.Task) {
	m.log.Debug().Str("task", t.Name).Int("priority", int(t.Priority)).
		Int("capacity", m.config.Capacity).Msg("store full, task dropped")
	if m.config.Metrics != nil {
		m.config.Metrics.TasksDropped.WithLabelValues(m.config.Name).Inc()
	}
	if m.config.OnDrop != nil {
		m.config.OnDrop(t)
	}
}

func (m *Manager) finalize(b *store.Builder) *store.Store {
	s := b.Finalize()
	m.log.Info().Int("tasks", s.Len()).Int("dropped", s.Dropped()).Msg("task queue finalized")
	return s
}
