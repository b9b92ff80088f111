package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrChannelClosed is returned by Receive once the pipe is closed and
// drained, and by Send or OpenWriter after the pipe has closed.
var ErrChannelClosed = errors.New("channel is closed")

// ErrWriterClosed is returned when sending through a writer that was closed.
var ErrWriterClosed = errors.New("channel writer is closed")

// ErrReaderBusy is returned when a second reader tries to open the pipe.
var ErrReaderBusy = errors.New("channel already has a reader")

// Stats holds statistics about pipe traffic.
type Stats struct {
	// SendCount is the total number of values sent.
	SendCount int64

	// ReceiveCount is the total number of values received.
	ReceiveCount int64

	// BlockedSends is the number of sends that found the buffer full.
	BlockedSends int64

	// Writers is the number of currently open writers.
	Writers int

	// WritersOpened is the number of writers ever opened.
	WritersOpened int

	// BufferUtilization is the current buffer utilization (0.0 to 1.0).
	BufferUtilization float64

	// LastSendTime is the timestamp of the last send operation.
	LastSendTime time.Time

	// LastReceiveTime is the timestamp of the last receive operation.
	LastReceiveTime time.Time
}

// Config holds configuration for a Pipe.
type Config struct {
	// BufferSize is the number of values buffered between writers and the
	// reader.
	BufferSize int

	// OnBlock is called when a send finds the buffer full and has to wait.
	OnBlock func()
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize: 64,
	}
}

// Pipe is a closable multi-producer, single-consumer channel with named
// pipe semantics: the reader's open blocks until a writer exists, and the
// reader sees end-of-stream only after every writer has closed and the
// buffer is drained.
type Pipe[T any] struct {
	config    Config
	ch        chan T
	ready     chan struct{}
	readyOnce sync.Once

	// mu guards writer accounting and the closed flag. It is never held
	// while a send blocks.
	mu            sync.RWMutex
	writers       int
	writersOpened int
	closed        bool

	// sends counts in-flight sends; ch is closed only once it drains.
	sends     sync.WaitGroup
	abort     chan struct{}
	abortOnce sync.Once
	chOnce    sync.Once

	readerOpen atomic.Bool

	stats   Stats
	statsMu sync.Mutex
}

// New creates a Pipe with the given buffer size.
func New[T any](bufferSize int) *Pipe[T] {
	config := DefaultConfig()
	config.BufferSize = bufferSize
	return NewWithConfig[T](config)
}

// NewWithConfig creates a Pipe with the specified configuration.
func NewWithConfig[T any](config Config) *Pipe[T] {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	return &Pipe[T]{
		config: config,
		ch:     make(chan T, config.BufferSize),
		ready:  make(chan struct{}),
		abort:  make(chan struct{}),
	}
}

// OpenWriter registers a producer. The pipe stays open until every writer
// returned by OpenWriter has been closed.
func (p *Pipe[T]) OpenWriter() (*Writer[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrChannelClosed
	}
	p.writers++
	p.writersOpened++
	p.signalReady()
	return &Writer[T]{pipe: p}, nil
}

// OpenReader attaches the single consumer. It blocks until the first writer
// has opened the pipe, or until ctx is done.
func (p *Pipe[T]) OpenReader(ctx context.Context) (*Reader[T], error) {
	if !p.readerOpen.CompareAndSwap(false, true) {
		return nil, ErrReaderBusy
	}

	select {
	case <-p.ready:
		return &Reader[T]{pipe: p}, nil
	case <-ctx.Done():
		p.releaseReader()
		return nil, ctx.Err()
	}
}

// Close forces the pipe closed regardless of open writers. Sends blocked on
// a full buffer fail with ErrChannelClosed; values already buffered are
// still delivered to the reader. A reader blocked in OpenReader is released
// and sees end-of-stream.
func (p *Pipe[T]) Close() error {
	p.shutdown(true)
	p.signalReady()
	return nil
}

// IsClosed returns true once no further values can be sent.
func (p *Pipe[T]) IsClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Len returns the current number of buffered values.
func (p *Pipe[T]) Len() int {
	return len(p.ch)
}

// Cap returns the buffer capacity.
func (p *Pipe[T]) Cap() int {
	return cap(p.ch)
}

// Stats returns pipe statistics.
func (p *Pipe[T]) Stats() Stats {
	p.mu.RLock()
	writers, opened := p.writers, p.writersOpened
	p.mu.RUnlock()

	p.statsMu.Lock()
	stats := p.stats
	p.statsMu.Unlock()

	stats.Writers = writers
	stats.WritersOpened = opened
	stats.BufferUtilization = float64(len(p.ch)) / float64(cap(p.ch))
	return stats
}

// shutdown refuses further sends, waits for in-flight sends and closes the
// underlying channel. With force, blocked sends are abandoned.
func (p *Pipe[T]) shutdown(force bool) {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	if force {
		p.abortOnce.Do(func() { close(p.abort) })
	}
	p.sends.Wait()
	p.chOnce.Do(func() { close(p.ch) })
}

func (p *Pipe[T]) signalReady() {
	p.readyOnce.Do(func() { close(p.ready) })
}

func (p *Pipe[T]) releaseReader() {
	p.readerOpen.Store(false)
}

func (p *Pipe[T]) updateStats(updater func(*Stats)) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	updater(&p.stats)
}

// Writer is a producer handle on a Pipe. It is safe for concurrent use by
// multiple goroutines.
type Writer[T any] struct {
	pipe   *Pipe[T]
	closed atomic.Bool
}

// Send delivers v as a single channel send, so concurrent writers never
// interleave within one value. It blocks while the buffer is full.
func (w *Writer[T]) Send(ctx context.Context, v T) error {
	p := w.pipe
	p.mu.RLock()
	if w.closed.Load() {
		p.mu.RUnlock()
		return ErrWriterClosed
	}
	if p.closed {
		p.mu.RUnlock()
		return ErrChannelClosed
	}
	p.sends.Add(1)
	p.mu.RUnlock()
	defer p.sends.Done()

	select {
	case p.ch <- v:
	default:
		if p.config.OnBlock != nil {
			p.config.OnBlock()
		}
		p.updateStats(func(s *Stats) { s.BlockedSends++ })
		select {
		case p.ch <- v:
		case <-p.abort:
			return ErrChannelClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.updateStats(func(s *Stats) {
		s.SendCount++
		s.LastSendTime = time.Now()
	})
	return nil
}

// Close releases the writer. When the last writer closes, the pipe reaches
// end-of-stream. Close is idempotent.
func (w *Writer[T]) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	p := w.pipe
	p.mu.Lock()
	p.writers--
	last := p.writers == 0
	p.mu.Unlock()

	if last {
		p.shutdown(false)
	}
	return nil
}

// Reader is the consumer handle on a Pipe.
type Reader[T any] struct {
	pipe *Pipe[T]
}

// Receive returns the next value in delivery order. It returns
// ErrChannelClosed after the pipe is closed and every buffered value has
// been received.
func (r *Reader[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-r.pipe.ch:
		if !ok {
			return zero, ErrChannelClosed
		}
		r.pipe.updateStats(func(s *Stats) {
			s.ReceiveCount++
			s.LastReceiveTime = time.Now()
		})
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close detaches the reader so another one may open the pipe.
func (r *Reader[T]) Close() error {
	r.pipe.releaseReader()
	return nil
}
