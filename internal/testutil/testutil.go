package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/vnykmshr/prioflow/pkg/task"
)

// TestTimeout is the default timeout for tests
const TestTimeout = 5 * time.Second

// WithTimeout creates a context with the default test timeout
func WithTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), TestTimeout)
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertEqual fails the test if got != want
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// AssertNotEqual fails the test if got == notWant
func AssertNotEqual[T comparable](t *testing.T, got, notWant T) {
	t.Helper()
	if got == notWant {
		t.Fatalf("got %v, expected a different value", got)
	}
}

// AssertTasks fails the test unless got and want hold the same tasks in the
// same order.
func AssertTasks(t *testing.T, got, want []task.Task) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d tasks %v, want %d tasks %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("task %d: got %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

// Tasks builds a task slice from name/priority pairs.
func Tasks(pairs ...interface{}) []task.Task {
	if len(pairs)%2 != 0 {
		panic("testutil.Tasks needs name/priority pairs")
	}
	out := make([]task.Task, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, task.Task{
			Name:     pairs[i].(string),
			Priority: task.Priority(pairs[i+1].(int)),
		})
	}
	return out
}
