// Package worker implements a fixed-size goroutine pool that drains
// two lock-free priority rings (high before low, FIFO within a
// priority) so mesh generation never blocks the frame that submitted
// it.
package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"voxelcore/internal/config"
)

// Priority selects which ring a task is submitted to. High-priority
// tasks are always drained before any low-priority one.
type Priority int

const (
	High Priority = iota
	Low
)

// Task is one unit of work. Run executes on a worker goroutine and its
// return value is captured in the matching Result.
type Task struct {
	ID  uint64
	Run func() any
}

// Result is what a completed (or failed) Task produces.
type Result struct {
	ID    uint64
	Value any
	Err   error
}

// ring is a bounded, lock-free single-producer/multi-consumer queue.
// The producer advances tail with a plain atomic store (only one
// producer is ever allowed to call Push concurrently); consumers claim
// slots with a CAS on head so multiple workers can drain it safely.
type ring struct {
	mask uint64
	buf  []atomic.Pointer[Task]
	head atomic.Uint64
	tail atomic.Uint64
}

func newRing(capacity int) *ring {
	if capacity&(capacity-1) != 0 {
		panic("worker: ring capacity must be a power of two")
	}
	return &ring{
		mask: uint64(capacity - 1),
		buf:  make([]atomic.Pointer[Task], capacity),
	}
}

func (r *ring) push(t *Task) bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail-head >= uint64(len(r.buf)) {
		return false
	}
	r.buf[tail&r.mask].Store(t)
	r.tail.Store(tail + 1)
	return true
}

func (r *ring) pop() (*Task, bool) {
	for {
		head := r.head.Load()
		tail := r.tail.Load()
		if head >= tail {
			return nil, false
		}
		slot := &r.buf[head&r.mask]
		t := slot.Load()
		if t == nil {
			// Another consumer already claimed and cleared this slot;
			// reload head and retry.
			runtime.Gosched()
			continue
		}
		if r.head.CompareAndSwap(head, head+1) {
			// Clear only our own task: once head has moved the producer
			// may already have reused this slot for a newer one.
			slot.CompareAndSwap(t, nil)
			return t, true
		}
	}
}

// Pool owns a fixed set of worker goroutines draining a HIGH and a LOW
// ring. Callers submit tasks and later collect results via Collect or
// block for all outstanding work via WaitAll.
type Pool struct {
	high, low *ring

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	wake     *sync.Cond
	wakeMu   sync.Mutex

	doneMu sync.Mutex
	done   []Result
	doneCv *sync.Cond

	active atomic.Int64

	onPanic func(error)
}

// NewPool starts cfg.Workers() goroutines draining rings of capacity
// cfg.RingCapacity.
func NewPool(cfg config.Config, onPanic func(error)) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		high:    newRing(cfg.RingCapacity),
		low:     newRing(cfg.RingCapacity),
		ctx:     ctx,
		cancel:  cancel,
		onPanic: onPanic,
	}
	p.wake = sync.NewCond(&p.wakeMu)
	p.doneCv = sync.NewCond(&p.doneMu)

	n := cfg.Workers()
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.loop()
	}
	return p
}

// Submit enqueues a task at the given priority, spinning (yielding the
// scheduler) while its ring is full. Returns false if the pool has
// been closed before the task could be enqueued.
func (p *Pool) Submit(t Task, prio Priority) bool {
	r := p.high
	if prio == Low {
		r = p.low
	}
	task := t
	p.active.Add(1)
	for {
		select {
		case <-p.ctx.Done():
			p.active.Add(-1)
			return false
		default:
		}
		if r.push(&task) {
			p.wake.Broadcast()
			return true
		}
		runtime.Gosched()
	}
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for {
		if t, ok := p.high.pop(); ok {
			p.run(t)
			continue
		}
		if t, ok := p.low.pop(); ok {
			p.run(t)
			continue
		}

		p.wakeMu.Lock()
		// Re-check under the lock to avoid missing a wakeup that fired
		// between the pop attempts above and taking the lock. Only exit
		// once both rings are confirmed empty, so a cancel/Close racing
		// with a Submit never strands an already-queued task.
		if p.high.head.Load() == p.high.tail.Load() && p.low.head.Load() == p.low.tail.Load() {
			select {
			case <-p.ctx.Done():
				p.wakeMu.Unlock()
				return
			default:
			}

			done := make(chan struct{})
			go func() {
				select {
				case <-p.ctx.Done():
					p.wakeMu.Lock()
					p.wake.Broadcast()
					p.wakeMu.Unlock()
				case <-done:
				}
			}()
			p.wake.Wait()
			close(done)
		}
		p.wakeMu.Unlock()
	}
}

func (p *Pool) run(t *Task) {
	res := Result{ID: t.ID}
	panicked := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				err := panicError{r}
				if p.onPanic != nil {
					p.onPanic(err)
				}
				p.cancel()
			}
		}()
		res.Value = t.Run()
	}()

	// A panicking task leaves no partial state in done; the pool is
	// already shutting down and the host was notified via onPanic.
	if !panicked {
		p.doneMu.Lock()
		p.done = append(p.done, res)
		p.doneMu.Unlock()
	}

	if p.active.Add(-1) == 0 {
		p.doneCv.Broadcast()
	}
}

// Collect drains and returns every result completed so far.
func (p *Pool) Collect() []Result {
	p.doneMu.Lock()
	defer p.doneMu.Unlock()
	out := p.done
	p.done = nil
	return out
}

// WaitAll blocks until every submitted task has completed.
func (p *Pool) WaitAll() {
	p.doneMu.Lock()
	for p.active.Load() > 0 {
		p.doneCv.Wait()
	}
	p.doneMu.Unlock()
}

// Close cancels further submissions and joins all worker goroutines.
// Workers finish every task already queued before they exit, so Close
// returns only after those tasks have run.
func (p *Pool) Close() {
	p.cancel()
	p.wakeMu.Lock()
	p.wake.Broadcast()
	p.wakeMu.Unlock()
	p.wg.Wait()
}

type panicError struct{ v any }

func (e panicError) Error() string {
	if err, ok := e.v.(error); ok {
		return "worker: task panicked: " + err.Error()
	}
	return "worker: task panicked"
}
