/*
Package scheduler re-runs priority pipelines on cron schedules.

Each tick opens a fresh task source and performs one complete, independent
pipeline run. If the previous run of the same job is still in progress the
tick is skipped rather than queued, so runs of one job never overlap.

Basic Usage:

	s := scheduler.New(scheduler.Config{Logger: log})
	defer func() { <-s.Stop() }()

	err := s.Add(scheduler.Job{
		ID:       "nightly",
		Expr:     "0 2 * * *",
		Pipeline: p,
		Source: func(ctx context.Context) (intake.Source, error) {
			return intake.OpenFile("tasks.yaml")
		},
		Sink: out,
	})
	if err != nil {
		return err
	}
	s.Start()

Expressions:

Standard five-field expressions are accepted, as are six-field expressions
with a leading seconds field and descriptors:

	"0,30 * * * *"    on the hour and half hour
	"30 0 9 * * 1-5"  09:00:30 on weekdays
	"@hourly"         at the start of every hour
	"@every 90s"      every ninety seconds

Monitoring:

List reports every job with its next and previous fire times, run, skip and
failure counts and the last error. OnRun and OnSkip hooks observe each
tick as it happens.
*/
package scheduler
