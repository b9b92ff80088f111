package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/vnykmshr/prioflow/pkg/common/validation"
	"github.com/vnykmshr/prioflow/pkg/task"
)

// run is the state shared by the workers of one Run call.
type run struct {
	pool    *Pool
	ctx     context.Context
	claimer Claimer
	out     RecordWriter

	mu        sync.Mutex
	summary   Summary
	firstErr  error
	abandoned bool
}

// Run starts the workers, which claim tasks until the claimer is empty,
// execute them and send exactly one record per claimed task to out. After
// every worker has returned, Run closes out.
//
// A task that fails or panics yields a Failed record; the pool keeps going.
// If ctx is cancelled workers stop claiming, and a send that cannot
// complete stops the worker that attempted it. Run returns the first such
// error.
func (p *Pool) Run(ctx context.Context, claimer Claimer, out RecordWriter) (Summary, error) {
	if err := validation.ValidateNotNil("workerpool", "RecordWriter", out); err != nil {
		return Summary{}, err
	}
	if err := validation.ValidateNotNil("workerpool", "Claimer", claimer); err != nil {
		out.Close()
		return Summary{}, err
	}

	start := time.Now()
	r := &run{
		pool:    p,
		ctx:     ctx,
		claimer: claimer,
		out:     out,
		summary: Summary{
			Workers:   p.config.WorkerCount,
			PerWorker: make([]int, p.config.WorkerCount),
		},
	}
	p.metrics.poolSize(p.config.WorkerCount)

	var wg sync.WaitGroup
	for i := 0; i < p.config.WorkerCount; i++ {
		w := &worker{id: i, run: r}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop()
		}()
	}
	wg.Wait()

	closeErr := out.Close()

	r.mu.Lock()
	summary := r.summary
	err := r.firstErr
	r.mu.Unlock()
	summary.Duration = time.Since(start)
	if err == nil {
		err = closeErr
	}

	p.updateStats(func(s *Stats) {
		s.Runs++
		s.TotalClaimed += int64(summary.Claimed)
		s.TotalCompleted += int64(summary.Completed)
		s.TotalFailed += int64(summary.Failed)
	})

	p.log.Info().
		Int("claimed", summary.Claimed).
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("all tasks executed")

	return summary, err
}

// loop is the main loop for a worker.
func (w *worker) loop() {
	p := w.run.pool
	if p.config.OnWorkerStart != nil {
		p.config.OnWorkerStart(w.id)
	}
	defer func() {
		if p.config.OnWorkerStop != nil {
			p.config.OnWorkerStop(w.id)
		}
	}()

	for {
		if w.run.stopped() {
			return
		}
		t, ok := w.run.claimer.ClaimNext()
		if !ok {
			return
		}
		w.run.claimed(w.id)
		p.metrics.claimed()

		rec := w.executeTask(t)
		if err := w.run.out.Send(w.run.ctx, rec); err != nil {
			w.run.undelivered(fmt.Errorf("send record for %q: %w", t.Name, err))
			return
		}
		w.run.delivered(rec)
	}
}

// executeTask executes a single task and builds its record. Panics are
// recovered into a Failed record.
func (w *worker) executeTask(t task.Task) (rec task.Record) {
	p := w.run.pool
	start := time.Now()

	p.log.Info().Int("worker", w.id).Str("task", t.Name).Int("priority", int(t.Priority)).Msg("executing")
	if p.config.OnTaskStart != nil {
		p.config.OnTaskStart(w.id, t)
	}
	p.active.Add(1)
	p.metrics.activeInc()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			p.log.Error().Int("worker", w.id).Str("task", t.Name).
				Str("stack", string(debug.Stack())).Msgf("task panicked: %v", r)
		}
		p.active.Add(-1)
		p.metrics.activeDec()

		rec = task.Record{
			Task:     t,
			Status:   task.Completed,
			WorkerID: w.id,
			Duration: time.Since(start),
		}
		if err != nil {
			rec.Status = task.Failed
			rec.Err = err.Error()
		}
		p.metrics.executed(rec)

		if p.config.OnTaskComplete != nil {
			p.config.OnTaskComplete(w.id, rec)
		}
	}()

	err = p.config.Executor.Execute(w.run.ctx, t)
	return rec
}

// stopped reports whether workers should stop claiming.
func (r *run) stopped() bool {
	if r.ctx.Err() != nil {
		r.fail(r.ctx.Err())
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abandoned
}

func (r *run) claimed(workerID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Claimed++
	r.summary.PerWorker[workerID]++
}

func (r *run) delivered(rec task.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.Status == task.Failed {
		r.summary.Failed++
	} else {
		r.summary.Completed++
	}
}

// fail records the first error and stops all workers from claiming more.
func (r *run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.firstErr == nil {
		r.firstErr = err
	}
	r.abandoned = true
}

func (r *run) undelivered(err error) {
	r.mu.Lock()
	r.summary.Undelivered++
	r.mu.Unlock()
	r.fail(err)
}
