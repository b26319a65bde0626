package worker

import (
	"sync"
	"testing"
	"time"

	"voxelcore/internal/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.MaxWorkerThreads = 2
	cfg.RingCapacity = 64
	return cfg
}

func TestSubmitAndCollectRoundTrip(t *testing.T) {
	p := NewPool(testConfig(), nil)
	defer p.Close()

	p.Submit(Task{ID: 1, Run: func() any { return 42 }}, High)
	p.WaitAll()

	results := p.Collect()
	if len(results) != 1 {
		t.Fatalf("Collect() returned %d results, want 1", len(results))
	}
	if results[0].ID != 1 || results[0].Value != 42 {
		t.Fatalf("Collect() = %+v, want {ID:1 Value:42}", results[0])
	}
}

func TestHighPriorityDrainsBeforeLow(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWorkerThreads = 1
	p := NewPool(cfg, nil)
	defer p.Close()

	var mu sync.Mutex
	var order []int

	// Hold the single running slot with a blocker so both priorities
	// queue up before either runs.
	block := make(chan struct{})
	p.Submit(Task{ID: 0, Run: func() any { <-block; return nil }}, High)

	for i := 1; i <= 5; i++ {
		id := i
		p.Submit(Task{ID: uint64(id), Run: func() any {
			mu.Lock()
			order = append(order, -id) // low priority marker
			mu.Unlock()
			return nil
		}}, Low)
	}
	for i := 6; i <= 8; i++ {
		id := i
		p.Submit(Task{ID: uint64(id), Run: func() any {
			mu.Lock()
			order = append(order, id) // high priority marker
			mu.Unlock()
			return nil
		}}, High)
	}

	close(block)
	p.WaitAll()

	mu.Lock()
	defer mu.Unlock()
	firstLowIdx := -1
	lastHighIdx := -1
	for i, v := range order {
		if v < 0 && firstLowIdx == -1 {
			firstLowIdx = i
		}
		if v > 0 {
			lastHighIdx = i
		}
	}
	if firstLowIdx != -1 && lastHighIdx > firstLowIdx {
		t.Fatalf("a high-priority task ran after a low-priority one: order=%v", order)
	}
}

func TestPanicRecoveryCancelsPool(t *testing.T) {
	var panicked error
	var mu sync.Mutex
	p := NewPool(testConfig(), func(err error) {
		mu.Lock()
		panicked = err
		mu.Unlock()
	})
	defer p.Close()

	p.Submit(Task{ID: 1, Run: func() any { panic("boom") }}, High)
	p.WaitAll()

	mu.Lock()
	defer mu.Unlock()
	if panicked == nil {
		t.Fatal("onPanic was never called")
	}

	results := p.Collect()
	if len(results) != 0 {
		t.Fatalf("Collect() = %+v, want no results — a panicking task leaves no partial state in done", results)
	}
}

func TestCloseDrainsQueuedTasksBeforeWorkersExit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWorkerThreads = 1
	p := NewPool(cfg, nil)

	block := make(chan struct{})
	p.Submit(Task{ID: 0, Run: func() any { <-block; return nil }}, High)

	const n = 10
	var mu sync.Mutex
	ran := 0
	for i := 1; i <= n; i++ {
		p.Submit(Task{ID: uint64(i), Run: func() any {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		}}, Low)
	}

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()

	close(block)
	<-closed

	mu.Lock()
	defer mu.Unlock()
	if ran != n {
		t.Fatalf("ran = %d queued tasks before workers exited, want %d", ran, n)
	}
}

func TestWaitAllBlocksUntilEverythingCompletes(t *testing.T) {
	p := NewPool(testConfig(), nil)
	defer p.Close()

	const n = 50
	for i := 0; i < n; i++ {
		p.Submit(Task{ID: uint64(i), Run: func() any {
			time.Sleep(time.Millisecond)
			return nil
		}}, Low)
	}
	p.WaitAll()

	results := p.Collect()
	if len(results) != n {
		t.Fatalf("Collect() returned %d results after WaitAll, want %d", len(results), n)
	}
}
