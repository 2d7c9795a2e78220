package device

import (
	"sync"
	"time"
)

// scheduler is a per-device work queue. Delayed jobs are armed with
// time.AfterFunc and, when due, queued for a single worker goroutine, so
// background transitions never run concurrently with each other.
type scheduler struct {
	jobs chan func()
	quit chan struct{}
	done chan struct{}

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

func newScheduler() *scheduler {
	s := &scheduler{
		jobs:   make(chan func(), 16),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		timers: make(map[*time.Timer]struct{}),
	}
	go s.run()
	return s
}

func (s *scheduler) run() {
	defer close(s.done)
	for {
		select {
		case job := <-s.jobs:
			job()
		case <-s.quit:
			return
		}
	}
}

// after queues job to run once d has elapsed.
func (s *scheduler) after(d time.Duration, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, t)
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		select {
		case s.jobs <- job:
		case <-s.quit:
		}
	})
	s.timers[t] = struct{}{}
	return nil
}

// pending returns the number of armed timers.
func (s *scheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// close stops pending timers and the worker. A job that is already
// running finishes before close returns.
func (s *scheduler) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.mu.Unlock()

	close(s.quit)
	<-s.done
}
