package writer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/vnykmshr/prioflow/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWriteAndClose(t *testing.T) {
	mw := testutil.NewMockWriter()
	aw := NewWithConfig(mw, Config{BufferSize: 1024})

	n, err := aw.WriteString("hello ")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, 6)
	_, err = aw.Write([]byte("world"))
	testutil.AssertNoError(t, err)

	// Nothing reaches the underlying writer until a flush.
	testutil.AssertEqual(t, mw.String(), "")
	testutil.AssertEqual(t, aw.Buffered(), 11)

	testutil.AssertNoError(t, aw.Close())
	testutil.AssertEqual(t, mw.String(), "hello world")
	testutil.AssertEqual(t, aw.IsClosed(), true)

	stats := aw.Stats()
	testutil.AssertEqual(t, stats.WriteCount, int64(2))
	testutil.AssertEqual(t, stats.BytesWritten, int64(11))
	testutil.AssertEqual(t, stats.FlushCount, int64(1))
}

func TestWriteAfterClose(t *testing.T) {
	aw := New(testutil.NewMockWriter())
	testutil.AssertNoError(t, aw.Close())
	testutil.AssertNoError(t, aw.Close())

	_, err := aw.WriteString("late")
	testutil.AssertEqual(t, errors.Is(err, ErrWriterClosed), true)
	testutil.AssertEqual(t, errors.Is(aw.Flush(context.Background()), ErrWriterClosed), true)
}

func TestExplicitFlush(t *testing.T) {
	mw := testutil.NewMockWriter()
	aw := NewWithConfig(mw, Config{BufferSize: 1024})
	defer aw.Close()

	aw.WriteString("line\n")
	testutil.AssertNoError(t, aw.Flush(context.Background()))
	testutil.AssertEqual(t, mw.String(), "line\n")
	testutil.AssertEqual(t, aw.Buffered(), 0)
}

func TestOverflowForcesFlush(t *testing.T) {
	mw := testutil.NewMockWriter()
	aw := NewWithConfig(mw, Config{BufferSize: 8})
	defer aw.Close()

	aw.WriteString("12345")
	aw.WriteString("67890")

	testutil.AssertEqual(t, mw.String(), "12345")
	testutil.AssertEqual(t, aw.Buffered(), 5)
}

func TestIntervalFlush(t *testing.T) {
	mw := testutil.NewMockWriter()
	aw := NewWithConfig(mw, Config{BufferSize: 1024, FlushInterval: 10 * time.Millisecond})
	defer aw.Close()

	aw.WriteString("tick")

	deadline := time.Now().Add(time.Second)
	for mw.String() != "tick" {
		if time.Now().After(deadline) {
			t.Fatal("interval flush did not happen")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFlushErrorRetriesAndReports(t *testing.T) {
	mw := testutil.NewMockWriter()
	mw.SetError(errors.New("disk full"))

	var reported error
	aw := NewWithConfig(mw, Config{
		BufferSize: 64,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnError:    func(err error) { reported = err },
	})

	aw.WriteString("x")
	err := aw.Close()
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, reported.Error(), "disk full")
	testutil.AssertEqual(t, mw.WriteCount(), 3)
	testutil.AssertEqual(t, aw.Stats().ErrorCount, int64(1))
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	mw := testutil.NewMockWriter()
	mw.SetErrorOnNth(1, nil)

	aw := NewWithConfig(mw, Config{BufferSize: 64, MaxRetries: 1, RetryDelay: time.Millisecond})
	aw.WriteString("ok")
	testutil.AssertNoError(t, aw.Close())
	testutil.AssertEqual(t, mw.String(), "ok")
}

func TestConcurrentWritesStayWhole(t *testing.T) {
	mw := testutil.NewMockWriter()
	aw := NewWithConfig(mw, Config{BufferSize: 64})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				aw.WriteString("[record]\n")
			}
		}()
	}
	wg.Wait()
	testutil.AssertNoError(t, aw.Close())

	lines := strings.Split(strings.TrimSuffix(mw.String(), "\n"), "\n")
	testutil.AssertEqual(t, len(lines), 1000)
	for _, l := range lines {
		if l != "[record]" {
			t.Fatalf("interleaved line %q", l)
		}
	}
}
