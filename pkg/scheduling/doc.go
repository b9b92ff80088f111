/*
Package scheduling groups the stages of a prioflow run and the components
that drive them.

A run has two phases separated by barriers:

  - intake forwards tasks from a Source to the queue manager
  - queue builds a store.Store in priority order, dropping tasks beyond
    capacity, and finalizes it once intake ends
  - workerpool starts a fixed number of workers that claim tasks from the
    finalized store in priority order, execute them and send one
    task.Record each into the log channel
  - logger drains the log channel into a sink until every worker is done

pipeline wires the stages together:

	p, err := pipeline.New(pipeline.DefaultConfig())
	if err != nil {
		return err
	}
	result, err := p.Run(ctx, intake.NewSliceSource(tasks), sink.NewCollector())

scheduler re-runs a pipeline on a cron schedule, one independent batch per
tick:

	s := scheduler.New(scheduler.Config{})
	defer func() { <-s.Stop() }()

	s.Add(scheduler.Job{
		ID:       "nightly",
		Expr:     "0 2 * * *",
		Pipeline: p,
		Source:   openTasks,
		Sink:     snk,
	})
	s.Start()

Workers never claim a task before the store is finalized, and every stored
task is claimed exactly once.
*/
package scheduling
