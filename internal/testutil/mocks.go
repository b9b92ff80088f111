package testutil

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// MockWriter is a test writer that can simulate slow or failing writes and
// counts the writes it receives.
type MockWriter struct {
	buf         *bytes.Buffer
	mu          sync.Mutex
	writeDelay  time.Duration
	errorOnNth  int
	writeCount  int
	shouldError bool
	err         error
}

// NewMockWriter creates a new MockWriter.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		buf: &bytes.Buffer{},
	}
}

// Write implements io.Writer.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.writeCount++

	if mw.writeDelay > 0 {
		time.Sleep(mw.writeDelay)
	}

	if mw.shouldError {
		return 0, mw.err
	}

	if mw.errorOnNth > 0 && mw.writeCount == mw.errorOnNth {
		return 0, mw.err
	}

	return mw.buf.Write(p)
}

// SetWriteDelay sets a delay for each write operation.
func (mw *MockWriter) SetWriteDelay(d time.Duration) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.writeDelay = d
}

// SetError makes every write fail with err.
func (mw *MockWriter) SetError(err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if err == nil {
		err = errors.New("mock write error")
	}
	mw.shouldError = true
	mw.err = err
}

// SetErrorOnNth makes only the nth write fail.
func (mw *MockWriter) SetErrorOnNth(n int, err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if err == nil {
		err = errors.New("mock write error")
	}
	mw.errorOnNth = n
	mw.err = err
}

// String returns everything written so far.
func (mw *MockWriter) String() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.String()
}

// WriteCount returns the number of Write calls.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.writeCount
}
