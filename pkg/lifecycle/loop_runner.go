package lifecycle

import (
	"context"
	"sync"
)

// LoopRunner provides a reusable start/stop lifecycle for background loops.
// It guarantees idempotent start/stop and waits for loop exit on stop.
type LoopRunner struct {
	mu      sync.RWMutex
	wg      sync.WaitGroup
	running bool
	cancel  context.CancelFunc
}

func NewLoopRunner() *LoopRunner {
	return &LoopRunner{}
}

// Start runs loop in a goroutine with a context derived from parent. The
// context is cancelled by Stop or when parent ends.
func (r *LoopRunner) Start(parent context.Context, loop func(ctx context.Context)) bool {
	if loop == nil {
		return false
	}
	if parent == nil {
		parent = context.Background()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		loop(ctx)
	}()
	return true
}

func (r *LoopRunner) Stop() bool {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return false
	}
	cancel := r.cancel
	r.cancel = nil
	r.running = false
	cancel()
	r.mu.Unlock()

	r.wg.Wait()
	return true
}

func (r *LoopRunner) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}
