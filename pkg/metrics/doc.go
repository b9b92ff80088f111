// Package metrics provides Prometheus instrumentation for prioflow components.
//
// A Registry groups the counters, gauges and histograms emitted by intake,
// the queue manager, the executor pool, the logger and the orchestrator.
// Components receive a *Registry through their Config and skip
// instrumentation when it is nil.
//
// Use a dedicated Prometheus registry for isolation:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistry(reg)
//
//	p, err := pipeline.New(pipeline.Config{Name: "nightly", Metrics: m})
//
// and expose it with promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).
//
// # Available Metrics
//
//   - prioflow_intake_tasks_submitted_total
//   - prioflow_queue_tasks_stored_total
//   - prioflow_queue_tasks_dropped_total
//   - prioflow_workerpool_tasks_claimed_total
//   - prioflow_workerpool_tasks_completed_total
//   - prioflow_workerpool_tasks_failed_total
//   - prioflow_workerpool_task_duration_seconds
//   - prioflow_workerpool_size
//   - prioflow_workerpool_active_workers
//   - prioflow_logger_records_relayed_total
//   - prioflow_logger_sink_errors_total
//   - prioflow_pipeline_runs_total
//   - prioflow_pipeline_failures_total
//   - prioflow_pipeline_duration_seconds
//
// Every metric carries a single "pipeline" label holding the pipeline name.
package metrics
