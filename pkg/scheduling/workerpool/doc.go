/*
Package workerpool provides the executor pool: a fixed number of worker
goroutines that drain a finalized task store in priority order and report
one completion record per task.

Basic usage:

	pool, err := workerpool.New(workerpool.DefaultConfig()) // 3 workers, 1s per task
	if err != nil {
		return err
	}

	w, _ := pipe.OpenWriter()
	summary, err := pool.Run(ctx, store, w) // closes w when every worker is done

Each worker repeatedly claims the next task from the Claimer, runs it
through the Executor and sends a task.Record to the RecordWriter. Workers
exit when the claimer is empty. Claims are serialized by the claimer, so a
task is never run twice, and records from one worker arrive in the order
that worker finished them.

Executors:

The default executor is Simulate(ExecDelay), which waits a fixed time.
Real work plugs in through the Executor interface or ExecutorFunc:

	config := workerpool.DefaultConfig()
	config.Executor = workerpool.ExecutorFunc(func(ctx context.Context, t task.Task) error {
		return deploy(ctx, t.Name)
	})

An executor error or panic produces a Failed record rather than stopping
the pool.

Lifecycle hooks:

OnWorkerStart, OnWorkerStop, OnTaskStart and OnTaskComplete are called
from the worker goroutines and must be safe for concurrent use.

Cancellation:

Run never times out on its own. When ctx is cancelled, workers stop
claiming new tasks, the tasks already claimed still receive a record when
the writer accepts it, and Run returns the context error.
*/
package workerpool
