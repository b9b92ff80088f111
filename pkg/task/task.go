// Package task defines the values that flow through a prioflow pipeline:
// submitted tasks, the end-of-stream sentinel and completion records.
package task

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxNameLen is the longest task name, in bytes, accepted by intake.
const MaxNameLen = 255

// SentinelName is the reserved name carried by the end-of-stream marker.
const SentinelName = "DONE"

// Priority orders tasks; lower values run first.
type Priority int

// Priorities understood by the scheduler. Other values pass through intake
// unchanged and still sort by their integer value.
const (
	High   Priority = 1
	Medium Priority = 2
	Low    Priority = 3
)

func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Task is a named unit of work. It is a value type and is never mutated
// after creation.
type Task struct {
	Name     string
	Priority Priority
}

// New creates a task, truncating name to at most MaxNameLen bytes without
// splitting a UTF-8 character.
func New(name string, priority Priority) Task {
	if len(name) > MaxNameLen {
		cut := MaxNameLen
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return Task{Name: name, Priority: priority}
}

// Sentinel marks the end of submission on the intake channel.
var Sentinel = Task{Name: SentinelName, Priority: 0}

// IsSentinel reports whether t is the end-of-stream marker.
func (t Task) IsSentinel() bool {
	return t == Sentinel
}

func (t Task) String() string {
	return fmt.Sprintf("%s (Priority %d)", t.Name, int(t.Priority))
}

// Status is the outcome carried by a Record.
type Status string

const (
	Completed Status = "Completed"
	Failed    Status = "Failed"
)

// Record is the completion notice a worker emits for one claimed task.
type Record struct {
	Task     Task
	Status   Status
	WorkerID int
	Duration time.Duration
	Err      string
}

// String renders the record the way log sinks display it, for example
// "Completed: deploy (Priority 1)".
func (r Record) String() string {
	if r.Status == Failed && r.Err != "" {
		return fmt.Sprintf("%s: %s: %s", r.Status, r.Task, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Status, r.Task)
}
