package writer

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ErrWriterClosed is returned when attempting to write to a closed writer.
var ErrWriterClosed = errors.New("writer is closed")

// Stats holds statistics about async writer performance.
type Stats struct {
	// BytesWritten is the total number of bytes handed to the underlying writer.
	BytesWritten int64

	// WriteCount is the total number of accepted write operations.
	WriteCount int64

	// FlushCount is the total number of flushes to the underlying writer.
	FlushCount int64

	// ErrorCount is the total number of failed flushes.
	ErrorCount int64

	// LastFlushTime is the timestamp of the last flush.
	LastFlushTime time.Time
}

// Config holds configuration options for AsyncWriter.
type Config struct {
	// BufferSize is the number of bytes buffered before a forced flush.
	// Default: 4KB
	BufferSize int

	// FlushInterval is how often buffered data is flushed automatically.
	// Set to 0 to flush only when the buffer fills, on Flush and on Close.
	// Default: 100ms
	FlushInterval time.Duration

	// MaxRetries is the number of times a failed flush is retried.
	// Default: 2
	MaxRetries int

	// RetryDelay is the delay between retries.
	// Default: 10ms
	RetryDelay time.Duration

	// OnError is called when a flush fails after all retries.
	OnError func(error)
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:    4 * 1024,
		FlushInterval: 100 * time.Millisecond,
		MaxRetries:    2,
		RetryDelay:    10 * time.Millisecond,
	}
}

// AsyncWriter buffers writes in memory and flushes them to an underlying
// io.Writer from a background goroutine. Each Write call is appended to the
// buffer whole, so concurrent callers never interleave within one write.
type AsyncWriter struct {
	underlying io.Writer
	config     Config

	mu     sync.Mutex
	buffer []byte

	// flushMu serialises writes to the underlying writer.
	flushMu sync.Mutex

	closed atomic.Bool
	stopCh chan struct{}
	wg     sync.WaitGroup

	stats   Stats
	statsMu sync.Mutex
}

// New creates a new AsyncWriter with default configuration.
func New(w io.Writer) *AsyncWriter {
	return NewWithConfig(w, DefaultConfig())
}

// NewWithConfig creates a new AsyncWriter with the specified configuration.
func NewWithConfig(w io.Writer, config Config) *AsyncWriter {
	def := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = def.RetryDelay
	}

	aw := &AsyncWriter{
		underlying: w,
		config:     config,
		buffer:     make([]byte, 0, config.BufferSize),
		stopCh:     make(chan struct{}),
	}

	if config.FlushInterval > 0 {
		aw.wg.Add(1)
		go aw.flushLoop()
	}
	return aw
}

// Write buffers data. It flushes synchronously when the buffer would
// overflow, so memory stays bounded by BufferSize plus one write.
func (aw *AsyncWriter) Write(data []byte) (int, error) {
	if aw.closed.Load() {
		return 0, ErrWriterClosed
	}
	if len(data) == 0 {
		return 0, nil
	}

	aw.mu.Lock()
	overflow := len(aw.buffer)+len(data) > aw.config.BufferSize
	aw.mu.Unlock()
	if overflow {
		if err := aw.flush(); err != nil {
			return 0, err
		}
	}

	aw.mu.Lock()
	aw.buffer = append(aw.buffer, data...)
	aw.mu.Unlock()

	aw.updateStats(func(s *Stats) { s.WriteCount++ })
	return len(data), nil
}

// WriteString writes a string.
func (aw *AsyncWriter) WriteString(s string) (int, error) {
	return aw.Write([]byte(s))
}

// Flush writes all buffered data to the underlying writer.
func (aw *AsyncWriter) Flush(ctx context.Context) error {
	if aw.closed.Load() {
		return ErrWriterClosed
	}
	done := make(chan error, 1)
	go func() { done <- aw.flush() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the background flusher and flushes remaining data. After
// Close returns no more writes are accepted. Close is idempotent.
func (aw *AsyncWriter) Close() error {
	if !aw.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(aw.stopCh)
	aw.wg.Wait()
	return aw.flush()
}

// IsClosed returns true if the writer is closed.
func (aw *AsyncWriter) IsClosed() bool {
	return aw.closed.Load()
}

// Buffered returns the current number of buffered bytes.
func (aw *AsyncWriter) Buffered() int {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return len(aw.buffer)
}

// Stats returns statistics about the writer.
func (aw *AsyncWriter) Stats() Stats {
	aw.statsMu.Lock()
	defer aw.statsMu.Unlock()
	return aw.stats
}

func (aw *AsyncWriter) flushLoop() {
	defer aw.wg.Done()

	ticker := time.NewTicker(aw.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = aw.flush() // errors reach OnError
		case <-aw.stopCh:
			return
		}
	}
}

// flush writes the buffer to the underlying writer with retries.
func (aw *AsyncWriter) flush() error {
	aw.flushMu.Lock()
	defer aw.flushMu.Unlock()

	aw.mu.Lock()
	if len(aw.buffer) == 0 {
		aw.mu.Unlock()
		return nil
	}
	data := make([]byte, len(aw.buffer))
	copy(data, aw.buffer)
	aw.buffer = aw.buffer[:0]
	aw.mu.Unlock()

	written, err := aw.writeWithRetries(data)

	aw.updateStats(func(s *Stats) {
		s.FlushCount++
		s.BytesWritten += int64(written)
		s.LastFlushTime = time.Now()
		if err != nil {
			s.ErrorCount++
		}
	})

	if err != nil && aw.config.OnError != nil {
		aw.config.OnError(err)
	}
	return err
}

func (aw *AsyncWriter) writeWithRetries(data []byte) (int, error) {
	var total int
	var lastErr error

	for attempt := 0; attempt <= aw.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(aw.config.RetryDelay)
		}

		n, err := aw.underlying.Write(data[total:])
		total += n
		if err != nil {
			lastErr = err
			continue
		}
		if total >= len(data) {
			return total, nil
		}
	}
	if lastErr == nil {
		lastErr = io.ErrShortWrite
	}
	return total, lastErr
}

func (aw *AsyncWriter) updateStats(updater func(*Stats)) {
	aw.statsMu.Lock()
	defer aw.statsMu.Unlock()
	updater(&aw.stats)
}
