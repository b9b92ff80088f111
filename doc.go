/*
Package prioflow runs batches of named, prioritized tasks through a fixed
pipeline: intake, a bounded priority store, a pool of executor workers and
a logger relaying one completion record per task to a sink.

Task Model (pkg/task):
  - Task: a name and a priority (1=High, 2=Medium, 3=Low)
  - Record: the outcome of executing one task

Scheduling (pkg/scheduling):
  - intake: reads tasks from a source until the input ends
  - queue: builds and finalizes the priority-ordered task store
  - store: the immutable, claim-once task store
  - workerpool: executor workers claiming tasks in priority order
  - logger: relays completion records to a sink
  - pipeline: orchestrates one run across all stages
  - scheduler: re-runs a batch on a cron schedule

Streaming (pkg/streaming):
  - channel: multi-writer, single-reader pipe carrying records
  - writer: async buffered writing

Sinks (pkg/sink): text lines, SQLite and Redis.

Example usage:

	import (
		"github.com/vnykmshr/prioflow/pkg/scheduling/intake"
		"github.com/vnykmshr/prioflow/pkg/scheduling/pipeline"
		"github.com/vnykmshr/prioflow/pkg/sink"
		"github.com/vnykmshr/prioflow/pkg/task"
	)

	p, _ := pipeline.New(pipeline.DefaultConfig()) // capacity 100, 3 workers
	src := intake.NewSliceSource([]task.Task{
		task.New("B", task.Medium),
		task.New("A", task.High),
	})
	out := sink.NewText(os.Stdout, sink.TextConfig{})
	defer out.Close()

	result, err := p.Run(ctx, src, out)

The prioflow command (cmd/prioflow) wraps the same pipeline for the
command line.
*/
package prioflow
