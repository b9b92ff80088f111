package intake

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/prioflow/internal/testutil"
	"github.com/vnykmshr/prioflow/pkg/metrics"
	"github.com/vnykmshr/prioflow/pkg/task"
)

func drain(ch <-chan task.Task) []task.Task {
	var out []task.Task
	for t := range ch {
		out = append(out, t)
	}
	return out
}

func TestRunForwardsInOrderThenSentinel(t *testing.T) {
	in := testutil.Tasks("A", 2, "B", 1, "C", 3)
	out := make(chan task.Task, 8)

	n, err := Run(context.Background(), NewSliceSource(in), out)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, 3)

	want := append(append([]task.Task{}, in...), task.Sentinel)
	testutil.AssertTasks(t, drain(out), want)
}

func TestRunEmptySource(t *testing.T) {
	out := make(chan task.Task, 1)
	n, err := Run(context.Background(), NewSliceSource(nil), out)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, 0)
	testutil.AssertTasks(t, drain(out), []task.Task{task.Sentinel})
}

func TestRunDoesNotValidatePriority(t *testing.T) {
	in := testutil.Tasks("weird", 42, "negative", -1)
	out := make(chan task.Task, 4)
	_, err := Run(context.Background(), NewSliceSource(in), out)
	testutil.AssertNoError(t, err)
	testutil.AssertTasks(t, drain(out), append(in, task.Sentinel))
}

type errSource struct {
	tasks []task.Task
	err   error
}

func (s *errSource) Next(context.Context) (task.Task, error) {
	if len(s.tasks) == 0 {
		return task.Task{}, s.err
	}
	t := s.tasks[0]
	s.tasks = s.tasks[1:]
	return t, nil
}

func TestRunSourceErrorStillTerminates(t *testing.T) {
	boom := errors.New("read failed")
	out := make(chan task.Task, 4)

	n, err := Run(context.Background(), &errSource{tasks: testutil.Tasks("A", 1), err: boom}, out)
	testutil.AssertEqual(t, errors.Is(err, boom), true)
	testutil.AssertEqual(t, n, 1)
	testutil.AssertTasks(t, drain(out), []task.Task{task.New("A", 1), task.Sentinel})
}

func TestRunStopsAtExplicitSentinel(t *testing.T) {
	in := []task.Task{task.New("A", 1), task.Sentinel, task.New("B", 1)}
	out := make(chan task.Task, 4)
	n, err := Run(context.Background(), NewSliceSource(in), out)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, 1)
	testutil.AssertTasks(t, drain(out), []task.Task{task.New("A", 1), task.Sentinel})
}

func TestRunCancelledClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan task.Task) // nobody reads
	cancel()

	_, err := Run(ctx, NewSliceSource(testutil.Tasks("A", 1)), out)
	testutil.AssertEqual(t, errors.Is(err, context.Canceled), true)
	_, ok := <-out
	testutil.AssertEqual(t, ok, false)
}

func TestHandlerMetrics(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	h := New(Config{Name: "p", Metrics: reg})
	out := make(chan task.Task, 8)

	_, err := h.Run(context.Background(), NewSliceSource(testutil.Tasks("A", 1, "B", 2)), out)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.TasksSubmitted.WithLabelValues("p")), 2.0)
}

func TestScannerSourceProtocol(t *testing.T) {
	input := "3\nbackup 2\ndeploy 1\ncleanup 3\n"
	var prompts strings.Builder
	src := NewScannerSource(strings.NewReader(input), &prompts)

	out := make(chan task.Task, 8)
	n, err := Run(context.Background(), src, out)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, 3)
	testutil.AssertEqual(t, src.Declared(), 3)
	testutil.AssertTasks(t, drain(out), append(testutil.Tasks("backup", 2, "deploy", 1, "cleanup", 3), task.Sentinel))

	want := "Enter the number of tasks: " +
		"Task 1 (enter task name): Priority (1=High, 2=Medium, 3=Low): " +
		"Task 2 (enter task name): Priority (1=High, 2=Medium, 3=Low): " +
		"Task 3 (enter task name): Priority (1=High, 2=Medium, 3=Low): "
	testutil.AssertEqual(t, prompts.String(), want)
}

func TestScannerSourceEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []task.Task
		wantErr bool
	}{
		{name: "empty input", input: "", want: nil},
		{name: "zero tasks", input: "0\n", want: nil},
		{name: "early EOF", input: "3 A 1 B", want: testutil.Tasks("A", 1)},
		{name: "extra tokens ignored", input: "1 A 1 B 2", want: testutil.Tasks("A", 1)},
		{name: "bad count", input: "many", wantErr: true},
		{name: "negative count", input: "-2", wantErr: true},
		{name: "bad priority", input: "1 A high", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewScannerSource(strings.NewReader(tt.input), nil)
			var got []task.Task
			for {
				tk, err := src.Next(context.Background())
				if err == io.EOF {
					break
				}
				if err != nil {
					if !tt.wantErr {
						t.Fatalf("unexpected error: %v", err)
					}
					return
				}
				got = append(got, tk)
			}
			if tt.wantErr {
				t.Fatal("expected an error")
			}
			testutil.AssertTasks(t, got, tt.want)
		})
	}
}

func TestScannerSourceTruncatesLongNames(t *testing.T) {
	long := strings.Repeat("x", task.MaxNameLen+10)
	src := NewScannerSource(strings.NewReader("1 "+long+" 2"), nil)
	tk, err := src.Next(context.Background())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(tk.Name), task.MaxNameLen)
}

func TestYAMLSource(t *testing.T) {
	doc := `
tasks:
  - name: backup
    priority: 2
  - name: deploy
    priority: 1
`
	src, err := NewYAMLSource(strings.NewReader(doc))
	testutil.AssertNoError(t, err)

	out := make(chan task.Task, 4)
	_, err = Run(context.Background(), src, out)
	testutil.AssertNoError(t, err)
	testutil.AssertTasks(t, drain(out), append(testutil.Tasks("backup", 2, "deploy", 1), task.Sentinel))

	_, err = NewYAMLSource(strings.NewReader("tasks: [unterminated"))
	testutil.AssertError(t, err)
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "tasks.yml")
	txtPath := filepath.Join(dir, "tasks.txt")
	testutil.AssertNoError(t, os.WriteFile(yamlPath, []byte("tasks:\n  - {name: A, priority: 3}\n"), 0o644))
	testutil.AssertNoError(t, os.WriteFile(txtPath, []byte("1\nB 1\n"), 0o644))

	for path, want := range map[string][]task.Task{
		yamlPath: testutil.Tasks("A", 3),
		txtPath:  testutil.Tasks("B", 1),
	} {
		fs, err := OpenFile(path)
		testutil.AssertNoError(t, err)
		out := make(chan task.Task, 4)
		_, err = Run(context.Background(), fs, out)
		testutil.AssertNoError(t, err)
		testutil.AssertTasks(t, drain(out), append(want, task.Sentinel))
		testutil.AssertNoError(t, fs.Close())
	}

	_, err := OpenFile(filepath.Join(dir, "missing.yaml"))
	testutil.AssertError(t, err)
}
