/*
Package pipeline provides the orchestrator that runs one priority-ordered
batch from submission to the last log line.

# Quick Start

	p, err := pipeline.New(pipeline.DefaultConfig())
	if err != nil {
		return err // setup failure, nothing has started
	}

	src := intake.NewSliceSource([]task.Task{
		task.New("backup", task.Medium),
		task.New("deploy", task.High),
		task.New("cleanup", task.Low),
	})
	out := sink.NewText(os.Stdout, sink.TextConfig{})
	defer out.Close()

	result, err := p.Run(ctx, src, out)

prints

	[Logger] Completed: deploy (Priority 1)
	[Logger] Completed: backup (Priority 2)
	[Logger] Completed: cleanup (Priority 3)

with the exact interleaving depending on the three workers.

# Stages

A run has two phases separated by barriers:

  - intake forwards tasks from the Source to the queue manager, which stores
    at most Capacity of them and stable-sorts them by priority;
  - once the store is final, the executor pool drains it while the logger
    relays every completion record to the Sink.

The second phase never starts before the store is final, and Run returns
only after the logger has seen the end of the log channel, so every
claimed task has exactly one record in the sink.

# Configuration

	config := pipeline.Config{
		Name:      "nightly",
		Capacity:  100,
		Workers:   3,
		ExecDelay: time.Second,
		Metrics:   metrics.Default(),
		Logger:    zerolog.New(os.Stderr),
		OnDrop: func(t task.Task) {
			fmt.Println("dropped", t.Name)
		},
	}

# Statistics

Stats accumulates run counts and per-stage timings across runs:

	stats := p.Stats()
	fmt.Printf("runs=%d avg=%v\n", stats.TotalExecutions, stats.AverageDuration)
	fmt.Println(stats.StageStats[pipeline.StageExecutor].AverageDuration)

# Cancellation

Run has no timeout of its own. Cancelling ctx stops intake, makes workers
stop claiming and unblocks the logger; Run then returns the context error
with a partial Result.
*/
package pipeline
