// Package sink provides log sink consumers: the destinations the logger
// relays completion records to, in the order it receives them.
package sink

import (
	"context"
	"errors"
	"sync"

	"github.com/vnykmshr/prioflow/pkg/task"
)

// Sink consumes completion records. Consume is called by a single
// goroutine, one record at a time.
type Sink interface {
	Consume(ctx context.Context, rec task.Record) error
	Close() error
}

// RunScoped is implemented by sinks that group records by pipeline run.
// The orchestrator calls BeginRun before the first record of each run.
type RunScoped interface {
	BeginRun(ctx context.Context, pipeline, runID string) error
}

// BeginRun announces a run to s if it is RunScoped.
func BeginRun(ctx context.Context, s Sink, pipeline, runID string) error {
	if rs, ok := s.(RunScoped); ok {
		return rs.BeginRun(ctx, pipeline, runID)
	}
	return nil
}

// Collector keeps every record in memory. It is safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	records []task.Record
	runs    []string
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Consume implements Sink.
func (c *Collector) Consume(_ context.Context, rec task.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

// BeginRun implements RunScoped.
func (c *Collector) BeginRun(_ context.Context, _, runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, runID)
	return nil
}

// Records returns a copy of the records consumed so far, in arrival order.
func (c *Collector) Records() []task.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]task.Record, len(c.records))
	copy(out, c.records)
	return out
}

// Runs returns the run IDs announced so far.
func (c *Collector) Runs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.runs))
	copy(out, c.runs)
	return out
}

// Lines renders the collected records as sink text lines.
func (c *Collector) Lines() []string {
	recs := c.Records()
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.String()
	}
	return out
}

// Close implements Sink.
func (c *Collector) Close() error { return nil }

// Multi fans every record out to several sinks.
type Multi []Sink

// Consume delivers rec to every sink, even when an earlier one fails.
func (m Multi) Consume(ctx context.Context, rec task.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Consume(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BeginRun implements RunScoped for the members that support it.
func (m Multi) BeginRun(ctx context.Context, pipeline, runID string) error {
	var errs []error
	for _, s := range m {
		if err := BeginRun(ctx, s, pipeline, runID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
