package workerpool

import (
	"github.com/vnykmshr/prioflow/pkg/metrics"
	"github.com/vnykmshr/prioflow/pkg/task"
)

// poolMetrics records pool activity in a metrics registry. A nil registry
// disables it.
type poolMetrics struct {
	registry *metrics.Registry
	name     string
}

func (m poolMetrics) enabled() bool {
	return m.registry != nil
}

func (m poolMetrics) poolSize(n int) {
	if !m.enabled() {
		return
	}
	m.registry.WorkerPoolSize.WithLabelValues(m.name).Set(float64(n))
}

func (m poolMetrics) claimed() {
	if !m.enabled() {
		return
	}
	m.registry.TasksClaimed.WithLabelValues(m.name).Inc()
}

func (m poolMetrics) activeInc() {
	if !m.enabled() {
		return
	}
	m.registry.WorkerPoolActive.WithLabelValues(m.name).Inc()
}

func (m poolMetrics) activeDec() {
	if !m.enabled() {
		return
	}
	m.registry.WorkerPoolActive.WithLabelValues(m.name).Dec()
}

func (m poolMetrics) executed(rec task.Record) {
	if !m.enabled() {
		return
	}
	m.registry.TaskExecutionDuration.WithLabelValues(m.name).Observe(rec.Duration.Seconds())
	if rec.Status == task.Failed {
		m.registry.TasksFailed.WithLabelValues(m.name).Inc()
	} else {
		m.registry.TasksCompleted.WithLabelValues(m.name).Inc()
	}
}
