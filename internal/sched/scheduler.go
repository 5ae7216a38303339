// Package sched runs named jobs at absolute times, backed by a min-heap.
// The server uses it for the daily summary rollup.
package sched

import (
	"container/heap"
	"sync"
	"time"
)

// Job is a unit of scheduled work.
type Job struct {
	ID    string
	RunAt time.Time
	Fn    func()
	index int // position in the heap
}

// jobHeap is a min-heap of Jobs ordered by RunAt.
type jobHeap []*Job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].RunAt.Before(h[j].RunAt) }

func (h *jobHeap) Push(x interface{}) {
	job := x.(*Job)
	job.index = len(*h)
	*h = append(*h, job)
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	job.index = -1
	*h = old[:n-1]
	return job
}

// Scheduler dispatches jobs when their time arrives. Scheduling the same ID
// again replaces the pending job, which is how recurring jobs re-arm
// themselves from their own callback.
type Scheduler struct {
	mu      sync.Mutex
	heap    jobHeap
	jobs    map[string]*Job
	wakeup  chan struct{}
	stopCh  chan struct{}
	stopped bool
}

// NewScheduler creates a stopped scheduler; call Start to run it.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		jobs:   make(map[string]*Job),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	heap.Init(&s.heap)
	return s
}

// Start launches the dispatch loop.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop halts dispatching. Pending jobs are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
}

// Schedule arms a job, replacing any pending job with the same ID.
func (s *Scheduler) Schedule(id string, runAt time.Time, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	if existing, ok := s.jobs[id]; ok {
		heap.Remove(&s.heap, existing.index)
		delete(s.jobs, id)
	}

	job := &Job{ID: id, RunAt: runAt, Fn: fn}
	heap.Push(&s.heap, job)
	s.jobs[id] = job

	// Wake the loop if this job is now the earliest.
	if s.heap[0] == job {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

// Cancel disarms a pending job. Returns false when no such job exists.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	heap.Remove(&s.heap, job.index)
	delete(s.jobs, id)
	return true
}

// Pending returns the number of armed jobs.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) run() {
	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}

		wait := 24 * time.Hour
		if s.heap.Len() > 0 {
			next := s.heap[0]
			wait = time.Until(next.RunAt)
			if wait <= 0 {
				job := heap.Pop(&s.heap).(*Job)
				delete(s.jobs, job.ID)
				s.mu.Unlock()
				go job.Fn()
				continue
			}
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wakeup:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

var ErrSchedulerStopped = &SchedulerError{"scheduler is stopped"}

// SchedulerError represents a scheduling error.
type SchedulerError struct {
	msg string
}

func (e *SchedulerError) Error() string {
	return e.msg
}
