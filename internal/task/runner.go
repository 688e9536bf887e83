// Package task runs fire-and-forget side effects (recording start, log
// flush, SMS) off the webhook response path, with failures logged instead
// of lost.
package task

import (
	"context"
	"log"
	"sync"
	"time"
)

// defaultTimeout bounds a single background task.
const defaultTimeout = 30 * time.Second

// Runner executes named tasks on a bounded worker pool. Submission never
// blocks the caller: when the queue is full the task is rejected and logged.
type Runner struct {
	queue   chan job
	wg      sync.WaitGroup
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

type job struct {
	name string
	fn   func(context.Context) error
}

// NewRunner starts workers goroutines draining a queue of queueSize tasks.
func NewRunner(workers, queueSize int) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	r := &Runner{
		queue:   make(chan job, queueSize),
		timeout: defaultTimeout,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for j := range r.queue {
		r.run(j)
	}
}

func (r *Runner) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[task] %s panicked: %v", j.name, rec)
		}
	}()

	if err := j.fn(ctx); err != nil {
		log.Printf("[task] %s failed: %v", j.name, err)
		return
	}
}

// Submit queues fn for background execution under the given name. It
// reports whether the task was accepted. The lock spans the enqueue so a
// concurrent Close can never close the queue between the check and the send.
func (r *Runner) Submit(name string, fn func(context.Context) error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		log.Printf("[task] %s rejected: runner closed", name)
		return false
	}

	select {
	case r.queue <- job{name: name, fn: fn}:
		return true
	default:
		log.Printf("[task] %s rejected: queue full", name)
		return false
	}
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}
