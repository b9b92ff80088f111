package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	gferrors "github.com/vnykmshr/prioflow/pkg/common/errors"
	"github.com/vnykmshr/prioflow/pkg/common/validation"
	"github.com/vnykmshr/prioflow/pkg/metrics"
	"github.com/vnykmshr/prioflow/pkg/scheduling/intake"
	"github.com/vnykmshr/prioflow/pkg/scheduling/logger"
	"github.com/vnykmshr/prioflow/pkg/scheduling/queue"
	"github.com/vnykmshr/prioflow/pkg/scheduling/store"
	"github.com/vnykmshr/prioflow/pkg/scheduling/workerpool"
	"github.com/vnykmshr/prioflow/pkg/sink"
	"github.com/vnykmshr/prioflow/pkg/streaming/channel"
	"github.com/vnykmshr/prioflow/pkg/task"
)

// Stage names reported in StageResult and Stats.
const (
	StageIntake   = "intake"
	StageQueue    = "queue"
	StageExecutor = "executor"
	StageLogger   = "logger"
)

// ErrRunInProgress is returned when Run is called while another Run of the
// same pipeline has not returned.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Result represents the outcome of one pipeline run.
type Result struct {
	// RunID uniquely identifies the run.
	RunID string

	// Submitted is the number of tasks intake forwarded.
	Submitted int

	// Stored and Dropped split the submitted tasks by whether they fit in
	// the task store.
	Stored  int
	Dropped int

	// Order is the stored tasks in execution (priority) order.
	Order []task.Task

	// Records is the number of completion records relayed to the sink.
	Records int

	// Failed is the number of records with status Failed.
	Failed int

	// Executor is the executor pool's own summary.
	Executor workerpool.Summary

	// IntakeErr is the source error that ended input early, if any.
	IntakeErr error

	// Stages holds per-stage timings in completion order.
	Stages []StageResult

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// StageResult represents the result of a single stage.
type StageResult struct {
	StageName string
	Error     error
	Duration  time.Duration
}

// Stats holds pipeline execution statistics.
type Stats struct {
	TotalExecutions int64
	SuccessfulRuns  int64
	FailedRuns      int64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	TasksExecuted   int64
	TasksDropped    int64
	StageStats      map[string]StageStats
	LastExecutionAt time.Time
}

// StageStats holds statistics for individual stages.
type StageStats struct {
	Name            string
	ExecutionCount  int64
	SuccessCount    int64
	ErrorCount      int64
	TotalDuration   time.Duration
	AverageDuration time.Duration
}

// Config holds pipeline configuration options.
type Config struct {
	// Name labels metrics and log events of this pipeline.
	Name string

	// Capacity bounds the task store. Submissions beyond it are dropped.
	Capacity int

	// Workers is the executor pool size.
	Workers int

	// ExecDelay is the simulated execution time used when Executor is nil.
	ExecDelay time.Duration

	// Executor runs each task. Defaults to workerpool.Simulate(ExecDelay).
	Executor workerpool.Executor

	// IntakeBuffer and LogBuffer size the intake channel and log channel.
	// Zero means unbuffered intake and the channel package default for logs.
	IntakeBuffer int
	LogBuffer    int

	// Metrics receives every component's metrics. Optional.
	Metrics *metrics.Registry

	// Logger receives structured events from every component. The zero
	// value discards them.
	Logger zerolog.Logger

	// OnPipelineStart is called when a run starts.
	OnPipelineStart func(runID string)

	// OnPipelineComplete is called when a run completes, successfully or not.
	OnPipelineComplete func(result Result)

	// OnStageComplete is called when a stage finishes.
	OnStageComplete func(result StageResult)

	// OnDrop is called for each task rejected by a full store.
	OnDrop func(t task.Task)

	// OnTaskStart and OnTaskComplete are forwarded to the executor pool.
	OnTaskStart    func(workerID int, t task.Task)
	OnTaskComplete func(workerID int, rec task.Record)
}

// DefaultConfig returns the classic configuration: a store of 100 tasks,
// three workers and one second per task.
func DefaultConfig() Config {
	return Config{
		Name:         "prioflow",
		Capacity:     store.DefaultCapacity,
		Workers:      3,
		ExecDelay:    time.Second,
		IntakeBuffer: 16,
		LogBuffer:    channel.DefaultConfig().BufferSize,
	}
}

// Pipeline wires intake, queue manager, executor pool and logger together.
type Pipeline struct {
	config  Config
	log     zerolog.Logger
	intake  *intake.Handler
	queue   *queue.Manager
	pool    *workerpool.Pool
	running atomic.Bool

	stats Stats
	mu    sync.RWMutex
}

// New creates a pipeline, validating the configuration up front so that
// setup failures surface before any stage starts.
func New(config Config) (*Pipeline, error) {
	const module = "pipeline"
	if err := validation.ValidatePositive(module, "Capacity", config.Capacity); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive(module, "Workers", config.Workers); err != nil {
		return nil, err
	}
	if err := validation.ValidateDuration(module, "ExecDelay", config.ExecDelay); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative(module, "IntakeBuffer", config.IntakeBuffer); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative(module, "LogBuffer", config.LogBuffer); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = DefaultConfig().Name
	}

	log := config.Logger.With().Str("pipeline", config.Name).Logger()

	qm, err := queue.New(queue.Config{
		Capacity: config.Capacity,
		Name:     config.Name,
		Metrics:  config.Metrics,
		Logger:   log,
		OnDrop:   config.OnDrop,
	})
	if err != nil {
		return nil, err
	}

	pool, err := workerpool.New(workerpool.Config{
		WorkerCount:    config.Workers,
		ExecDelay:      config.ExecDelay,
		Executor:       config.Executor,
		Name:           config.Name,
		Metrics:        config.Metrics,
		Logger:         log,
		OnTaskStart:    config.OnTaskStart,
		OnTaskComplete: config.OnTaskComplete,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config: config,
		log:    log.With().Str("component", "orchestrator").Logger(),
		intake: intake.New(intake.Config{Name: config.Name, Metrics: config.Metrics, Logger: log}),
		queue:  qm,
		pool:   pool,
		stats: Stats{
			StageStats: make(map[string]StageStats),
		},
	}, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.config.Name
}

// Run performs one complete batch: intake and queue manager run until the
// store is finalized (first barrier), then the executor pool and logger run
// until every record has reached snk (second barrier).
//
// The returned Result is non-nil whenever setup succeeded, even if a later
// stage failed. A source error ends input early without aborting the run;
// it is reported in Result.IntakeErr and returned after the batch finishes.
func (p *Pipeline) Run(ctx context.Context, src intake.Source, snk sink.Sink) (*Result, error) {
	if err := validation.ValidateNotNil("pipeline", "Source", src); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil("pipeline", "Sink", snk); err != nil {
		return nil, err
	}
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.running.Store(false)

	result := &Result{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	log := p.log.With().Str("run_id", result.RunID).Logger()
	if p.config.Metrics != nil {
		p.config.Metrics.PipelineRuns.WithLabelValues(p.config.Name).Inc()
	}
	if p.config.OnPipelineStart != nil {
		p.config.OnPipelineStart(result.RunID)
	}

	err := p.execute(ctx, log, src, snk, result)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	p.updateStats(result, err)

	if p.config.Metrics != nil {
		p.config.Metrics.PipelineDuration.WithLabelValues(p.config.Name).Observe(result.Duration.Seconds())
		if err != nil {
			p.config.Metrics.PipelineFailures.WithLabelValues(p.config.Name).Inc()
		}
	}
	if p.config.OnPipelineComplete != nil {
		p.config.OnPipelineComplete(*result)
	}

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Int("submitted", result.Submitted).
		Int("stored", result.Stored).
		Int("dropped", result.Dropped).
		Int("records", result.Records).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("pipeline finished")

	return result, err
}

func (p *Pipeline) execute(ctx context.Context, log zerolog.Logger, src intake.Source, snk sink.Sink, result *Result) error {
	// Setup. Anything failing here aborts before the first barrier.
	if err := sink.BeginRun(ctx, snk, p.config.Name, result.RunID); err != nil {
		return gferrors.NewOperationError("pipeline", "begin run", err).WithContext(result.RunID)
	}
	lg, err := logger.New(logger.Config{
		Sink:    snk,
		Name:    p.config.Name,
		Metrics: p.config.Metrics,
		Logger:  log,
	})
	if err != nil {
		return err
	}
	pipe := channel.New[task.Record](p.config.LogBuffer)
	defer pipe.Close()

	// Barrier 1: intake and queue manager.
	intakeCh := make(chan task.Task, p.config.IntakeBuffer)
	var st *store.Store

	g, gctx := errgroup.WithContext(ctx)
	g.Go(p.stage(StageIntake, result, func() error {
		n, err := p.intake.Run(gctx, src, intakeCh)
		result.Submitted = n
		if err != nil && gctx.Err() == nil {
			// The stream was still terminated; keep going with what arrived.
			result.IntakeErr = err
			return nil
		}
		return err
	}))
	g.Go(p.stage(StageQueue, result, func() error {
		s, err := p.queue.Collect(gctx, intakeCh)
		st = s
		return err
	}))
	if err := g.Wait(); err != nil {
		return err
	}

	result.Stored = st.Len()
	result.Dropped = st.Dropped()
	result.Order = st.Snapshot()
	log.Debug().Int("tasks", result.Stored).Msg("barrier 1 passed")

	// Barrier 2: executor pool and logger. The writer is opened before
	// either goroutine starts so the logger's open never waits on a
	// scheduling race.
	w, err := pipe.OpenWriter()
	if err != nil {
		return gferrors.NewOperationError("pipeline", "open log channel", err)
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(p.stage(StageExecutor, result, func() error {
		summary, err := p.pool.Run(gctx, st, w)
		result.Executor = summary
		result.Failed = summary.Failed
		return err
	}))
	g.Go(p.stage(StageLogger, result, func() error {
		n, err := lg.Run(gctx, pipe)
		result.Records = n
		return err
	}))
	if err := g.Wait(); err != nil {
		return err
	}

	if result.IntakeErr != nil {
		return fmt.Errorf("intake: %w", result.IntakeErr)
	}
	return nil
}

// stage wraps fn to time it and report a StageResult.
func (p *Pipeline) stage(name string, result *Result, fn func() error) func() error {
	return func() error {
		start := time.Now()
		err := fn()
		sr := StageResult{StageName: name, Error: err, Duration: time.Since(start)}

		p.mu.Lock()
		result.Stages = append(result.Stages, sr)
		p.mu.Unlock()
		p.updateStageStats(sr)

		if p.config.OnStageComplete != nil {
			p.config.OnStageComplete(sr)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

// Stats returns pipeline execution statistics.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	statsCopy := p.stats
	statsCopy.StageStats = make(map[string]StageStats, len(p.stats.StageStats))
	for k, v := range p.stats.StageStats {
		statsCopy.StageStats[k] = v
	}
	if statsCopy.TotalExecutions > 0 {
		statsCopy.AverageDuration = time.Duration(int64(statsCopy.TotalDuration) / statsCopy.TotalExecutions)
	}
	return statsCopy
}

func (p *Pipeline) updateStats(result *Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.TotalExecutions++
	p.stats.TotalDuration += result.Duration
	p.stats.LastExecutionAt = result.EndTime
	p.stats.TasksExecuted += int64(result.Executor.Claimed)
	p.stats.TasksDropped += int64(result.Dropped)

	if err == nil {
		p.stats.SuccessfulRuns++
	} else {
		p.stats.FailedRuns++
	}
}

func (p *Pipeline) updateStageStats(sr StageResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats, exists := p.stats.StageStats[sr.StageName]
	if !exists {
		stats = StageStats{Name: sr.StageName}
	}

	stats.ExecutionCount++
	stats.TotalDuration += sr.Duration
	if sr.Error == nil {
		stats.SuccessCount++
	} else {
		stats.ErrorCount++
	}
	stats.AverageDuration = time.Duration(int64(stats.TotalDuration) / stats.ExecutionCount)

	p.stats.StageStats[sr.StageName] = stats
}
