package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/prioflow/pkg/metrics"
	"github.com/vnykmshr/prioflow/pkg/scheduling/scheduler"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const tasksYAML = `tasks:
  - name: B
    priority: 2
  - name: A
    priority: 1
  - name: C
    priority: 3
`

func TestRunFile(t *testing.T) {
	path := writeFile(t, "tasks.yaml", tasksYAML)

	stdout, stderr, err := execute(t, "", "run", "--file", path, "--workers", "1", "--delay", "0", "--log-level", "off")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "[Logger] Completed: A (Priority 1)\n" +
		"[Logger] Completed: B (Priority 2)\n" +
		"[Logger] Completed: C (Priority 3)\n"
	if stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
	if !strings.Contains(stderr, "3 stored, 0 dropped, 3 completed, 0 failed") {
		t.Errorf("expected run summary on stderr, got: %s", stderr)
	}
}

func TestRunInteractive(t *testing.T) {
	stdout, _, err := execute(t, "2\nB 2\nA 1\n", "run", "--workers", "1", "--delay", "0", "--log-level", "off")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, want := range []string{
		"Enter the number of tasks: ",
		"Task 1 (enter task name): ",
		"Priority (1=High, 2=Medium, 3=Low): ",
		"Task 2 (enter task name): ",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected prompt %q in stdout, got: %q", want, stdout)
		}
	}
	a := strings.Index(stdout, "[Logger] Completed: A (Priority 1)")
	b := strings.Index(stdout, "[Logger] Completed: B (Priority 2)")
	if a < 0 || b < 0 || a > b {
		t.Errorf("expected A before B in stdout, got: %q", stdout)
	}
}

func TestRunQuiet(t *testing.T) {
	stdout, stderr, err := execute(t, "1 solo 2", "run", "--quiet", "--delay", "0", "--log-level", "off")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "[Logger] Completed: solo (Priority 2)\n" {
		t.Errorf("stdout = %q", stdout)
	}
	if stderr != "" {
		t.Errorf("expected no stderr output, got: %q", stderr)
	}
}

func TestRunCapacity(t *testing.T) {
	path := writeFile(t, "tasks.yaml", tasksYAML)

	stdout, stderr, err := execute(t, "", "run", "-f", path, "--capacity", "2", "--delay", "0", "--log-level", "off")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(stdout, "Completed: C") {
		t.Errorf("third task should have been dropped, got: %q", stdout)
	}
	if !strings.Contains(stderr, "2 stored, 1 dropped") {
		t.Errorf("expected drop in summary, got: %s", stderr)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"zero workers", "", []string{"run", "--workers", "0"}},
		{"negative delay", "", []string{"run", "--delay", "-1s"}},
		{"bad log format", "", []string{"run", "--log-format", "xml"}},
		{"missing file", "", []string{"run", "--file", "/nonexistent/tasks.yaml"}},
		{"missing config", "", []string{"run", "--config", "/nonexistent/prioflow.yaml"}},
		{"bad priority", "1 A high", []string{"run", "--quiet", "--delay", "0", "--log-level", "off"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.stdin, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunConfigFile(t *testing.T) {
	tasks := writeFile(t, "tasks.txt", "2 X 3 Y 1")
	cfg := writeFile(t, "prioflow.yaml", "workers: 1\ndelay: 0s\nlog_level: off\ntask_file: "+tasks+"\n")

	stdout, _, err := execute(t, "", "run", "--config", cfg, "--quiet")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "[Logger] Completed: Y (Priority 1)\n[Logger] Completed: X (Priority 3)\n"
	if stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestRunSQLiteAndHistory(t *testing.T) {
	tasks := writeFile(t, "tasks.yaml", tasksYAML)
	db := filepath.Join(t.TempDir(), "prioflow.db")

	_, _, err := execute(t, "", "run", "-f", tasks, "--sqlite", db, "--workers", "1", "--delay", "0", "--log-level", "off")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	stdout, _, err := execute(t, "", "history", "--sqlite", db, "--quiet", "--log-level", "off")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := "Completed: A (Priority 1)\nCompleted: B (Priority 2)\nCompleted: C (Priority 3)\n"
	if stdout != want {
		t.Errorf("history = %q, want %q", stdout, want)
	}

	_, _, err = execute(t, "", "history", "--log-level", "off")
	if err == nil {
		t.Error("expected error without a database")
	}
}

func TestScheduleRequiresCronAndFile(t *testing.T) {
	tasks := writeFile(t, "tasks.yaml", tasksYAML)

	_, _, err := execute(t, "", "schedule", "--file", tasks, "--log-level", "off")
	if err == nil || !strings.Contains(err.Error(), "cron") {
		t.Errorf("expected cron error, got %v", err)
	}
	_, _, err = execute(t, "", "schedule", "--cron", "@hourly", "--log-level", "off")
	if err == nil || !strings.Contains(err.Error(), "task file") {
		t.Errorf("expected task file error, got %v", err)
	}
	_, _, err = execute(t, "", "schedule", "--cron", "every tuesday", "--file", tasks, "--log-level", "off")
	if err == nil {
		t.Error("expected invalid cron expression error")
	}
}

func TestScheduleStopsOnCancel(t *testing.T) {
	tasks := writeFile(t, "tasks.yaml", tasksYAML)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"schedule", "--cron", "@hourly", "--file", tasks, "--log-level", "off"})
	if err := root.ExecuteContext(ctx); err != nil {
		t.Fatalf("schedule: %v", err)
	}
}

func TestMetricsServerShutdown(t *testing.T) {
	var nilServer *metricsServer
	nilServer.Shutdown()
	if nilServer.Err() != nil {
		t.Error("nil server should have no error channel")
	}

	reg := prometheus.NewRegistry()
	ms := serveMetrics("127.0.0.1:0", newRouter(reg, func() []scheduler.JobInfo { return nil }), zerolog.Nop())

	done := make(chan struct{})
	go func() {
		ms.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Shutdown did not wait for the listener to return")
	}
	select {
	case <-ms.done:
	default:
		t.Error("listener goroutine still running after Shutdown")
	}
}

func TestScheduleWithMetricsStopsOnCancel(t *testing.T) {
	tasks := writeFile(t, "tasks.yaml", tasksYAML)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"schedule", "--cron", "@hourly", "--file", tasks, "--metrics-addr", "127.0.0.1:0", "--log-level", "off"})
	if err := root.ExecuteContext(ctx); err != nil {
		t.Fatalf("schedule: %v", err)
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout, "prioflow dev") {
		t.Errorf("version = %q", stdout)
	}
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)
	m.PipelineRuns.WithLabelValues("prioflow").Inc()

	jobs := func() []scheduler.JobInfo {
		return []scheduler.JobInfo{{ID: "batch", Expr: "@hourly", Runs: 2, LastErr: errors.New("boom")}}
	}
	ts := httptest.NewServer(newRouter(reg, jobs))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status = %d", resp.StatusCode)
	}
	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode /healthz: %v", err)
	}
	if health.Status != "ok" || len(health.Jobs) != 1 || health.Jobs[0].Runs != 2 || health.Jobs[0].LastErr != "boom" {
		t.Errorf("unexpected health response: %+v", health)
	}

	resp2, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp2.Body.Close()
	body, _ := io.ReadAll(resp2.Body)
	if !strings.Contains(string(body), "prioflow_pipeline_runs_total") {
		t.Errorf("expected pipeline metric in /metrics output")
	}
}
