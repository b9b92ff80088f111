package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/prioflow/pkg/scheduling/intake"
	"github.com/vnykmshr/prioflow/pkg/scheduling/pipeline"
	"github.com/vnykmshr/prioflow/pkg/sink"
)

var (
	// ErrJobExists is returned when adding a job under an id already in use.
	ErrJobExists = errors.New("job already exists")

	// ErrJobNotFound is returned for operations on an unknown job id.
	ErrJobNotFound = errors.New("job not found")

	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")

	// ErrStopped is returned by Start after Stop. A stopped scheduler
	// cannot be restarted.
	ErrStopped = errors.New("scheduler stopped")
)

// SourceFunc opens a fresh task source for one run. If the returned source
// implements io.Closer it is closed when the run ends.
type SourceFunc func(ctx context.Context) (intake.Source, error)

// Job describes a batch that runs on a cron schedule.
type Job struct {
	// ID names the job. Must be unique within a scheduler.
	ID string

	// Expr is a cron expression: five fields, six with leading seconds,
	// or a descriptor such as "@hourly" or "@every 10m".
	Expr string

	// Pipeline runs each batch. Each run is independent.
	Pipeline *pipeline.Pipeline

	// Source opens the tasks for each run.
	Source SourceFunc

	// Sink receives the records of every run.
	Sink sink.Sink
}

// JobInfo is a snapshot of a scheduled job.
type JobInfo struct {
	ID      string
	Expr    string
	Next    time.Time
	Prev    time.Time
	Runs    int64
	Skips   int64
	Failed  int64
	Running bool
	LastErr error
}

// Config holds scheduler configuration.
type Config struct {
	// Location evaluates cron expressions. Default: time.Local.
	Location *time.Location

	// Logger receives scheduling events. The zero value discards them.
	Logger zerolog.Logger

	// OnRun is called after every run with its result.
	OnRun func(id string, result *pipeline.Result, err error)

	// OnSkip is called when a tick arrives while the previous run of the
	// same job is still in progress.
	OnSkip func(id string)
}

type job struct {
	Job
	entry cron.EntryID
	sched *Scheduler

	busy    atomic.Bool
	runs    atomic.Int64
	skips   atomic.Int64
	failed  atomic.Int64
	mu      sync.Mutex
	lastErr error
}

// Scheduler re-runs pipelines on cron schedules, skipping a tick while the
// previous run of the same job has not finished.
type Scheduler struct {
	config Config
	log    zerolog.Logger
	parser cron.Parser
	cron   *cron.Cron

	mu      sync.RWMutex
	jobs    map[string]*job
	running bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler.
func New(config Config) *Scheduler {
	if config.Location == nil {
		config.Location = time.Local
	}
	log := config.Logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		config: config,
		log:    log,
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		cron: cron.New(
			cron.WithLocation(config.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ValidateExpr reports whether expr is a cron expression Add would accept.
func (s *Scheduler) ValidateExpr(expr string) error {
	if expr == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}
	if _, err := s.parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Add schedules j. Jobs may be added before or after Start.
func (s *Scheduler) Add(j Job) error {
	if j.ID == "" {
		return fmt.Errorf("job ID cannot be empty")
	}
	if j.Pipeline == nil || j.Source == nil || j.Sink == nil {
		return fmt.Errorf("job %q: pipeline, source and sink are required", j.ID)
	}
	if err := s.ValidateExpr(j.Expr); err != nil {
		return err
	}
	schedule, _ := s.parser.Parse(j.Expr)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.ID]; exists {
		return fmt.Errorf("%w: %q", ErrJobExists, j.ID)
	}
	sj := &job{Job: j, sched: s}
	sj.entry = s.cron.Schedule(schedule, sj)
	s.jobs[j.ID] = sj

	s.log.Info().Str("job", j.ID).Str("expr", j.Expr).Msg("job scheduled")
	return nil
}

// Remove unschedules the job. A run in progress is not interrupted.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, ok := s.jobs[id]
	if !ok {
		return false
	}
	s.cron.Remove(sj.entry)
	delete(s.jobs, id)
	return true
}

// List returns the scheduled jobs sorted by next run time.
func (s *Scheduler) List() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, sj := range s.jobs {
		e := s.cron.Entry(sj.entry)
		sj.mu.Lock()
		lastErr := sj.lastErr
		sj.mu.Unlock()
		out = append(out, JobInfo{
			ID:      sj.ID,
			Expr:    sj.Expr,
			Next:    e.Next,
			Prev:    e.Prev,
			Runs:    sj.runs.Load(),
			Skips:   sj.skips.Load(),
			Failed:  sj.failed.Load(),
			Running: sj.busy.Load(),
			LastErr: lastErr,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Next.Equal(out[j].Next) {
			return out[i].ID < out[j].ID
		}
		return out[i].Next.Before(out[j].Next)
	})
	return out
}

// RunNow triggers the job immediately, with the same skip rule as a
// scheduled tick. It returns false if the run was skipped.
func (s *Scheduler) RunNow(id string) (bool, error) {
	s.mu.RLock()
	sj, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrJobNotFound, id)
	}
	return sj.execute(), nil
}

// Start begins firing scheduled jobs in the background.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.stopped {
		return ErrStopped
	}
	s.running = true
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
	return nil
}

// Stop stops firing new runs and cancels runs in progress. The returned
// channel is closed once every run has returned.
func (s *Scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.stopped = true
	s.mu.Unlock()

	var cronDone <-chan struct{}
	if wasRunning {
		cronDone = s.cron.Stop().Done()
	}
	s.cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if cronDone != nil {
			<-cronDone
		}
		s.wg.Wait()
		s.log.Info().Msg("scheduler stopped")
	}()
	return stopped
}

// track registers a run with the wait group unless Stop has been called.
// Stop sets stopped under the same lock before waiting, so no run starts
// after the channel it returns is closed.
func (s *Scheduler) track() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

// Run implements cron.Job.
func (j *job) Run() {
	j.execute()
}

func (j *job) execute() bool {
	s := j.sched
	if !s.track() {
		return false
	}
	defer s.wg.Done()

	if !j.busy.CompareAndSwap(false, true) {
		j.skips.Add(1)
		s.log.Warn().Str("job", j.ID).Msg("previous run still in progress, tick skipped")
		if s.config.OnSkip != nil {
			s.config.OnSkip(j.ID)
		}
		return false
	}
	defer j.busy.Store(false)

	result, err := j.runOnce(s.ctx)
	j.runs.Add(1)
	if err != nil {
		j.failed.Add(1)
	}
	j.mu.Lock()
	j.lastErr = err
	j.mu.Unlock()

	if s.config.OnRun != nil {
		s.config.OnRun(j.ID, result, err)
	}
	return true
}

func (j *job) runOnce(ctx context.Context) (*pipeline.Result, error) {
	src, err := j.Source(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source for job %q: %w", j.ID, err)
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	log := j.sched.log.With().Str("job", j.ID).Logger()
	log.Info().Msg("run started")
	result, err := j.Pipeline.Run(ctx, src, j.Sink)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
	}
	return result, err
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
