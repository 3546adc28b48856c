package join

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool is the worker-pool contract the scheduler submits reaction bodies
// (the reaction pool) and decision passes (the decision pool) to.
// Submission fails fast with an error when the pool's queue is full; work
// is never dropped silently.
type Pool interface {
	// Submit runs task on a pool worker. Returns an error immediately if the
	// pool cannot accept more work (bounded queue full, or shut down).
	Submit(task func()) error

	// MarkIdle runs fn while temporarily not counting the calling goroutine
	// against the pool's worker budget, so a pool fully occupied by reactions
	// blocked on unsatisfied blocking molecules does not deadlock.
	// FixedPool's MarkIdle is a plain pass-through; only BlockingAwarePool
	// actually grows capacity.
	MarkIdle(fn func())

	// ShutdownNow stops accepting new work; in-flight tasks are allowed to
	// drain.
	ShutdownNow()
}

// FixedPool is a pool with a fixed goroutine count and a bounded task queue.
// It fails fast (returns an error) rather than blocking or silently
// dropping when the queue is full.
type FixedPool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewFixedPool starts size worker goroutines draining a queue of the given
// capacity.
func NewFixedPool(size, queueCapacity int) *FixedPool {
	if size <= 0 {
		size = 1
	}
	if queueCapacity <= 0 {
		queueCapacity = size * 4
	}
	p := &FixedPool{tasks: make(chan func(), queueCapacity)}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *FixedPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit enqueues task, failing fast with an error if the queue is full or
// the pool has been shut down. The enqueue happens under the mutex so it
// cannot race a concurrent ShutdownNow closing the channel.
func (p *FixedPool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("join: pool is shut down")
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return fmt.Errorf("join: pool queue is full")
	}
}

// MarkIdle is a pass-through on FixedPool: it has no elastic capacity to
// grow, so callers needing the blocking-aware guarantee must use
// BlockingAwarePool instead.
func (p *FixedPool) MarkIdle(fn func()) { fn() }

// ShutdownNow stops accepting new submissions and closes the task queue at
// once; workers run the tasks already queued and then exit. It does not
// wait for them.
func (p *FixedPool) ShutdownNow() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.tasks)
}

// BlockingAwarePool grows its effective worker budget around MarkIdle
// scopes: a blocked worker releases its capacity unit so another goroutine
// can run in its place. Capacity is gated by a
// golang.org/x/sync/semaphore.Weighted.
type BlockingAwarePool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewBlockingAwarePool creates a pool whose steady-state worker budget is
// initial; MarkIdle scopes temporarily free one unit of capacity so a
// blocked goroutine does not starve out the rest.
func NewBlockingAwarePool(initial int) *BlockingAwarePool {
	if initial <= 0 {
		initial = 1
	}
	return &BlockingAwarePool{sem: semaphore.NewWeighted(int64(initial))}
}

// Submit runs task on a freshly spawned goroutine gated by the weighted
// semaphore; it fails fast if the pool has been shut down.
func (p *BlockingAwarePool) Submit(task func()) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("join: pool is shut down")
	}
	if !p.sem.TryAcquire(1) {
		return fmt.Errorf("join: pool at capacity")
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		task()
	}()
	return nil
}

// MarkIdle releases one unit of capacity for the duration of fn, letting
// another goroutine run in its place, then reacquires before returning.
// Blocking emits do not call it themselves; reaction bodies wrap a
// blocking emit or synchronous I/O in it via JoinDefinition.MarkIdle.
func (p *BlockingAwarePool) MarkIdle(fn func()) {
	p.sem.Release(1)
	defer func() {
		_ = p.sem.Acquire(context.Background(), 1)
	}()
	fn()
}

// ShutdownNow marks the pool closed to new submissions and waits for
// in-flight tasks to drain.
func (p *BlockingAwarePool) ShutdownNow() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
