package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/prioflow/pkg/common/validation"
	"github.com/vnykmshr/prioflow/pkg/metrics"
	"github.com/vnykmshr/prioflow/pkg/task"
)

// Executor performs the work for one task.
type Executor interface {
	// Execute runs the task. It should respect context cancellation and
	// return any error encountered.
	Execute(ctx context.Context, t task.Task) error
}

// ExecutorFunc is a function type that implements the Executor interface.
type ExecutorFunc func(ctx context.Context, t task.Task) error

// Execute implements the Executor interface for ExecutorFunc.
func (f ExecutorFunc) Execute(ctx context.Context, t task.Task) error {
	return f(ctx, t)
}

// Simulate returns an Executor that "runs" every task by waiting delay.
func Simulate(delay time.Duration) Executor {
	return ExecutorFunc(func(ctx context.Context, _ task.Task) error {
		if delay <= 0 {
			return nil
		}
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// Claimer hands out tasks one at a time. ok is false once nothing is left.
// *store.Store implements it.
type Claimer interface {
	ClaimNext() (t task.Task, ok bool)
}

// RecordWriter receives completion records. Close is called once by the
// pool after every worker has returned. *channel.Writer[task.Record]
// implements it.
type RecordWriter interface {
	Send(ctx context.Context, rec task.Record) error
	Close() error
}

// Summary reports the outcome of one Run.
type Summary struct {
	// Workers is the number of workers that ran.
	Workers int

	// Claimed is the number of tasks taken from the claimer.
	Claimed int

	// Completed and Failed count the records sent for claimed tasks.
	Completed int
	Failed    int

	// Undelivered counts claimed tasks whose record could not be sent.
	Undelivered int

	// PerWorker holds the number of tasks each worker claimed, by worker id.
	PerWorker []int

	// Duration is the wall time of the run.
	Duration time.Duration
}

// Stats holds cumulative counters across every Run of a pool.
type Stats struct {
	Runs           int64
	TotalClaimed   int64
	TotalCompleted int64
	TotalFailed    int64
	ActiveWorkers  int
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers started by each Run.
	// Must be greater than 0.
	WorkerCount int

	// ExecDelay is the simulated execution time used when Executor is nil.
	ExecDelay time.Duration

	// Executor runs each claimed task. Defaults to Simulate(ExecDelay).
	Executor Executor

	// Name labels metrics emitted by this pool.
	Name string

	// Metrics receives pool counters and gauges. Optional.
	Metrics *metrics.Registry

	// Logger receives per-task and lifecycle events. The zero value
	// discards them.
	Logger zerolog.Logger

	// OnWorkerStart is called when a worker starts.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker stops.
	OnWorkerStop func(workerID int)

	// OnTaskStart is called before a task begins execution.
	OnTaskStart func(workerID int, t task.Task)

	// OnTaskComplete is called after a task completes (success or failure),
	// before its record is sent.
	OnTaskComplete func(workerID int, rec task.Record)
}

// DefaultConfig returns a default configuration: three workers and a one
// second simulated execution.
func DefaultConfig() Config {
	return Config{
		WorkerCount: 3,
		ExecDelay:   time.Second,
	}
}

// Pool executes the tasks of a claimer with a fixed number of workers.
// A Pool may run several times, but not concurrently.
type Pool struct {
	config  Config
	log     zerolog.Logger
	metrics poolMetrics

	active atomic.Int32

	stats   Stats
	statsMu sync.Mutex
}

// worker represents a single worker in one Run.
type worker struct {
	id  int
	run *run
}

// New creates a new worker pool with the specified configuration.
func New(config Config) (*Pool, error) {
	if err := validation.ValidatePositive("workerpool", "WorkerCount", config.WorkerCount); err != nil {
		return nil, err
	}
	if err := validation.ValidateDuration("workerpool", "ExecDelay", config.ExecDelay); err != nil {
		return nil, err
	}
	if config.Executor == nil {
		config.Executor = Simulate(config.ExecDelay)
	}

	return &Pool{
		config:  config,
		log:     config.Logger.With().Str("component", "executor").Logger(),
		metrics: poolMetrics{registry: config.Metrics, name: config.Name},
	}, nil
}

// Size returns the number of workers each Run starts.
func (p *Pool) Size() int {
	return p.config.WorkerCount
}

// ActiveWorkers returns the number of workers currently executing a task.
func (p *Pool) ActiveWorkers() int {
	return int(p.active.Load())
}

// Stats returns cumulative statistics.
func (p *Pool) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	s := p.stats
	s.ActiveWorkers = p.ActiveWorkers()
	return s
}

func (p *Pool) updateStats(updater func(*Stats)) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	updater(&p.stats)
}
