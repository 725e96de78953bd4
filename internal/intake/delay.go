package intake

import (
	"sync"
	"time"
)

// Scheduler runs delayed transitions keyed by client session. Pending work
// for a session can be cancelled, and Close cancels everything.
type Scheduler struct {
	mu     sync.Mutex
	next   uint64
	timers map[string]map[uint64]*time.Timer
	closed bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]map[uint64]*time.Timer)}
}

// After runs fn once d has elapsed unless the key is cancelled first. The
// returned func cancels just this entry.
func (s *Scheduler) After(key string, d time.Duration, fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}

	s.next++
	id := s.next
	t := time.AfterFunc(d, func() {
		if s.take(key, id) {
			fn()
		}
	})
	if s.timers[key] == nil {
		s.timers[key] = make(map[uint64]*time.Timer)
	}
	s.timers[key][id] = t

	return func() {
		if s.take(key, id) {
			t.Stop()
		}
	}
}

// take removes an entry and reports whether it was still pending.
func (s *Scheduler) take(key string, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.timers[key]
	if !ok {
		return false
	}
	if _, ok := entries[id]; !ok {
		return false
	}
	delete(entries, id)
	if len(entries) == 0 {
		delete(s.timers, key)
	}
	return true
}

// Cancel drops every pending entry for key.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.timers[key] {
		t.Stop()
	}
	delete(s.timers, key)
}

func (s *Scheduler) Pending(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers[key])
}

func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for key, entries := range s.timers {
		for _, t := range entries {
			t.Stop()
		}
		delete(s.timers, key)
	}
}
