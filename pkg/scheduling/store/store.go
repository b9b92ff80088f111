// Package store implements the shared task store: a capacity-bounded list
// of tasks that is filled and sorted once by the queue manager and then
// drained by workers through a single mutex-guarded claim cursor.
//
// The store has two faces. A Builder is the writer side owned by the queue
// manager; Finalize sorts it and publishes a read-only Store. Workers only
// ever see the Store, whose sole mutation is ClaimNext.
package store

import (
	"sort"
	"sync"
	"sync/atomic"

	gferrors "github.com/vnykmshr/prioflow/pkg/common/errors"
	"github.com/vnykmshr/prioflow/pkg/common/validation"
	"github.com/vnykmshr/prioflow/pkg/task"
)

// DefaultCapacity is the number of tasks a store holds when no capacity is
// configured.
const DefaultCapacity = 100

// Builder accumulates submitted tasks up to a fixed capacity. Tasks added
// after the capacity is reached are dropped and counted, never reported as
// an error.
type Builder struct {
	items     []task.Task
	capacity  int
	dropped   int
	finalized bool
}

// NewBuilder allocates a builder for up to capacity tasks.
func NewBuilder(capacity int) (*Builder, error) {
	if err := validation.ValidatePositive("store", "capacity", capacity); err != nil {
		return nil, err
	}
	return &Builder{
		items:    make([]task.Task, 0, capacity),
		capacity: capacity,
	}, nil
}

// Add appends t if there is room. It returns false when t was dropped
// because the store is full. Add panics on a finalized builder.
func (b *Builder) Add(t task.Task) bool {
	if b.finalized {
		panic(gferrors.ErrFinalized)
	}
	if len(b.items) >= b.capacity {
		b.dropped++
		return false
	}
	b.items = append(b.items, t)
	return true
}

// Len returns the number of buffered tasks.
func (b *Builder) Len() int {
	return len(b.items)
}

// Dropped returns how many tasks were discarded for lack of capacity.
func (b *Builder) Dropped() int {
	return b.dropped
}

// Finalize stable-sorts the buffered tasks by ascending priority and
// publishes them as a read-only Store. Tasks of equal priority keep their
// submission order. The builder must not be used afterwards.
func (b *Builder) Finalize() *Store {
	if b.finalized {
		panic(gferrors.ErrFinalized)
	}
	b.finalized = true

	items := b.items
	b.items = nil
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority < items[j].Priority
	})

	return &Store{
		items:    items,
		capacity: b.capacity,
		dropped:  b.dropped,
	}
}

// Store is the finalized task list plus its claim cursor. It is safe for
// concurrent use.
type Store struct {
	mu     sync.Mutex
	cursor int

	// immutable after Finalize
	items    []task.Task
	capacity int
	dropped  int

	claimed atomic.Int64
}

// ClaimNext hands out the next unclaimed task in priority order. The second
// result is false once every task has been claimed; the store is never
// refilled, so a caller that sees false is done.
func (s *Store) ClaimNext() (task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor >= len(s.items) {
		return task.Task{}, false
	}
	t := s.items[s.cursor]
	s.cursor++
	s.claimed.Add(1)
	return t, true
}

// Len returns the number of stored tasks.
func (s *Store) Len() int {
	return len(s.items)
}

// Cap returns the configured capacity.
func (s *Store) Cap() int {
	return s.capacity
}

// Dropped returns how many submitted tasks did not fit.
func (s *Store) Dropped() int {
	return s.dropped
}

// Claimed returns how many tasks have been handed out so far.
func (s *Store) Claimed() int {
	return int(s.claimed.Load())
}

// Remaining returns how many tasks are still unclaimed.
func (s *Store) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) - s.cursor
}

// Snapshot returns a copy of the stored tasks in claim order.
func (s *Store) Snapshot() []task.Task {
	out := make([]task.Task, len(s.items))
	copy(out, s.items)
	return out
}
