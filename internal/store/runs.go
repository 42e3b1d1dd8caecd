package store

import (
	"sync"
	"time"
)

type runRecord[T any] struct {
	id      string
	started time.Time
	run     T
}

// RunStore is a concurrency-safe in-memory history of pipeline runs.
type RunStore[T any] struct {
	mu sync.RWMutex

	// oldest first
	runs []runRecord[T]

	// retention configuration
	maxHistory int           // max number of runs kept
	maxAge     time.Duration // optional max age for runs
	now        func() time.Time
}

// NewRunStore creates a new RunStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewRunStore[T any](maxHistory int, maxAge time.Duration) *RunStore[T] {
	return &RunStore[T]{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save appends a run and enforces retention.
func (s *RunStore[T]) Save(id string, started time.Time, run T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, runRecord[T]{id: id, started: started, run: run})

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.runs) > s.maxHistory {
		over := len(s.runs) - s.maxHistory
		s.runs = trim(s.runs, over)
	}

	// Enforce retention by age, always keeping the latest run.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.runs)-1; i++ {
			if !s.runs[i].started.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			s.runs = trim(s.runs, i)
		}
	}
}

// trim drops the first n records into a fresh slice so the dropped runs
// are not kept alive by the old backing array.
func trim[T any](runs []runRecord[T], n int) []runRecord[T] {
	out := make([]runRecord[T], len(runs)-n, cap(runs))
	copy(out, runs[n:])
	return out
}

// Latest returns the most recent run.
func (s *RunStore[T]) Latest() (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		var zero T
		return zero, ErrNotFound
	}
	return s.runs[len(s.runs)-1].run, nil
}

// Get returns the run with the given id.
func (s *RunStore[T]) Get(id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].id == id {
			return s.runs[i].run, nil
		}
	}
	var zero T
	return zero, ErrNotFound
}

// List returns all kept runs, newest first.
func (s *RunStore[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		out = append(out, s.runs[i].run)
	}
	return out
}
