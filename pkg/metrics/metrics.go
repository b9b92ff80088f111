package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every prioflow metric.
const Namespace = "prioflow"

// Registry holds all metric instances for prioflow components. Every vector
// is labelled by pipeline name.
type Registry struct {
	// Intake and queue manager
	TasksSubmitted *prometheus.CounterVec
	TasksStored    *prometheus.CounterVec
	TasksDropped   *prometheus.CounterVec

	// Executor pool
	TasksClaimed          *prometheus.CounterVec
	TasksCompleted        *prometheus.CounterVec
	TasksFailed           *prometheus.CounterVec
	TaskExecutionDuration *prometheus.HistogramVec
	WorkerPoolSize        *prometheus.GaugeVec
	WorkerPoolActive      *prometheus.GaugeVec

	// Log channel and logger
	RecordsRelayed *prometheus.CounterVec
	SinkErrors     *prometheus.CounterVec

	// Orchestrator
	PipelineRuns     *prometheus.CounterVec
	PipelineFailures *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns a registry bound to prometheus.DefaultRegisterer. It is
// created on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	labels := []string{"pipeline"}

	counter := func(subsystem, name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
	gauge := func(subsystem, name, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
	histogram := func(subsystem, name, help string) *prometheus.HistogramVec {
		return factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
			Buckets:   prometheus.DefBuckets,
		}, labels)
	}

	return &Registry{
		TasksSubmitted: counter("intake", "tasks_submitted_total", "Total number of tasks forwarded by intake"),
		TasksStored:    counter("queue", "tasks_stored_total", "Total number of tasks accepted into the task store"),
		TasksDropped:   counter("queue", "tasks_dropped_total", "Total number of tasks dropped because the task store was full"),

		TasksClaimed:          counter("workerpool", "tasks_claimed_total", "Total number of tasks claimed by workers"),
		TasksCompleted:        counter("workerpool", "tasks_completed_total", "Total number of tasks completed successfully"),
		TasksFailed:           counter("workerpool", "tasks_failed_total", "Total number of tasks that failed"),
		TaskExecutionDuration: histogram("workerpool", "task_duration_seconds", "Time spent executing tasks"),
		WorkerPoolSize:        gauge("workerpool", "size", "Number of workers in the executor pool"),
		WorkerPoolActive:      gauge("workerpool", "active_workers", "Number of workers currently executing a task"),

		RecordsRelayed: counter("logger", "records_relayed_total", "Total number of log records relayed to the sink"),
		SinkErrors:     counter("logger", "sink_errors_total", "Total number of log records the sink failed to consume"),

		PipelineRuns:     counter("pipeline", "runs_total", "Total number of pipeline runs"),
		PipelineFailures: counter("pipeline", "failures_total", "Total number of pipeline runs that returned an error"),
		PipelineDuration: histogram("pipeline", "duration_seconds", "Wall time of a pipeline run"),
	}
}
