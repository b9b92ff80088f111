// Package integration contains integration tests that verify cross-package functionality.
// These tests ensure that different components work together correctly in realistic scenarios.
package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/prioflow/internal/testutil"
	"github.com/vnykmshr/prioflow/pkg/scheduling/intake"
	"github.com/vnykmshr/prioflow/pkg/scheduling/pipeline"
	"github.com/vnykmshr/prioflow/pkg/scheduling/scheduler"
	"github.com/vnykmshr/prioflow/pkg/sink"
	"github.com/vnykmshr/prioflow/pkg/streaming/channel"
	"github.com/vnykmshr/prioflow/pkg/streaming/writer"
	"github.com/vnykmshr/prioflow/pkg/task"
)

func newPipeline(t *testing.T, workers, capacity int) *pipeline.Pipeline {
	t.Helper()
	config := pipeline.DefaultConfig()
	config.Workers = workers
	config.Capacity = capacity
	config.ExecDelay = 0
	p, err := pipeline.New(config)
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	return p
}

// TestPipelineTextAndSQLite runs a batch into both the text sink and the
// SQLite sink and verifies each stored task reaches both exactly once.
func TestPipelineTextAndSQLite(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	db, err := sink.OpenSQLite(ctx, ":memory:", zerolog.Nop())
	testutil.AssertNoError(t, err)

	out := testutil.NewMockWriter()
	text := sink.NewText(out, sink.TextConfig{})
	snk := sink.Multi{text, db}
	defer snk.Close()

	const n = 60
	tasks := make([]task.Task, n)
	for i := range tasks {
		tasks[i] = task.New(fmt.Sprintf("task-%02d", i), task.Priority(i%3+1))
	}

	result, err := newPipeline(t, 4, 100).Run(ctx, intake.NewSliceSource(tasks), snk)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, result.Stored, n)
	testutil.AssertEqual(t, result.Records, n)
	testutil.AssertNoError(t, text.Flush(ctx))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	testutil.AssertEqual(t, len(lines), n)
	seen := make(map[string]int)
	for _, line := range lines {
		if !strings.HasPrefix(line, "[Logger] Completed: ") {
			t.Fatalf("unexpected line %q", line)
		}
		seen[line]++
	}
	for _, tk := range tasks {
		line := "[Logger] Completed: " + tk.String()
		if seen[line] != 1 {
			t.Errorf("%q seen %d times, want 1", line, seen[line])
		}
	}

	records, err := db.Records(ctx, result.RunID)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(records), n)
	for _, rec := range records {
		testutil.AssertEqual(t, rec.Status, task.Completed)
	}
}

// TestScheduledRunsRecordedSeparately triggers a scheduled job twice and
// verifies SQLite groups each batch under its own run.
func TestScheduledRunsRecordedSeparately(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	db, err := sink.OpenSQLite(ctx, ":memory:", zerolog.Nop())
	testutil.AssertNoError(t, err)
	defer db.Close()

	var (
		mu   sync.Mutex
		runs []string
	)
	sched := scheduler.New(scheduler.Config{OnRun: func(_ string, r *pipeline.Result, err error) {
		if err != nil {
			t.Errorf("run failed: %v", err)
			return
		}
		mu.Lock()
		runs = append(runs, r.RunID)
		mu.Unlock()
	}})
	defer func() { <-sched.Stop() }()

	testutil.AssertNoError(t, sched.Add(scheduler.Job{
		ID:       "batch",
		Expr:     "@daily",
		Pipeline: newPipeline(t, 3, 100),
		Source: func(context.Context) (intake.Source, error) {
			return intake.NewScannerSource(strings.NewReader("3 B 2 A 1 C 3"), nil), nil
		},
		Sink: db,
	}))

	for i := 0; i < 2; i++ {
		ran, err := sched.RunNow("batch")
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, ran, true)
	}

	testutil.AssertEqual(t, len(runs), 2)
	last, err := db.LastRun(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, last, runs[1])

	for _, id := range runs {
		records, err := db.Records(ctx, id)
		testutil.AssertNoError(t, err)
		names := make([]string, 0, len(records))
		for _, rec := range records {
			names = append(names, rec.Task.Name)
		}
		sort.Strings(names)
		testutil.AssertEqual(t, strings.Join(names, ","), "A,B,C")
	}
}

// TestPipeToAsyncWriter streams records from several writers through a
// Pipe into an AsyncWriter, the path the logger and text sink take.
func TestPipeToAsyncWriter(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	pipe := channel.New[task.Record](4)
	defer pipe.Close()

	underlying := testutil.NewMockWriter()
	w := writer.New(underlying)
	defer w.Close()

	const writers, perWriter = 3, 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		pw, err := pipe.OpenWriter()
		testutil.AssertNoError(t, err)
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			defer pw.Close()
			for j := 0; j < perWriter; j++ {
				rec := task.Record{Task: task.New(fmt.Sprintf("w%d-%02d", id, j), task.High), Status: task.Completed}
				if err := pw.Send(ctx, rec); err != nil {
					t.Errorf("send: %v", err)
					return
				}
			}
		}(i)
	}

	r, err := pipe.OpenReader(ctx)
	testutil.AssertNoError(t, err)
	defer r.Close()

	var received int
	for {
		rec, err := r.Receive(ctx)
		if err == channel.ErrChannelClosed {
			break
		}
		testutil.AssertNoError(t, err)
		_, err = w.WriteString(rec.String() + "\n")
		testutil.AssertNoError(t, err)
		received++
	}
	wg.Wait()

	testutil.AssertNoError(t, w.Flush(ctx))
	testutil.AssertEqual(t, received, writers*perWriter)
	testutil.AssertEqual(t, strings.Count(underlying.String(), "\n"), writers*perWriter)

	// Per-writer order is preserved.
	for i := 0; i < writers; i++ {
		prev := -1
		for _, line := range strings.Split(underlying.String(), "\n") {
			var id, seq int
			if _, err := fmt.Sscanf(line, "Completed: w%d-%d", &id, &seq); err != nil || id != i {
				continue
			}
			if seq <= prev {
				t.Fatalf("writer %d: record %d after %d", i, seq, prev)
			}
			prev = seq
		}
	}
}
