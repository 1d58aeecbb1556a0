package lifecycle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunnerStartStopIdempotent(t *testing.T) {
	r := NewLoopRunner()
	var exited atomic.Bool

	started := r.Start(context.Background(), func(ctx context.Context) {
		<-ctx.Done()
		exited.Store(true)
	})
	if !started || !r.Running() {
		t.Fatalf("expected runner to start")
	}
	if r.Start(context.Background(), func(context.Context) {}) {
		t.Fatalf("second start should be refused")
	}

	if !r.Stop() {
		t.Fatalf("expected stop to succeed")
	}
	if !exited.Load() {
		t.Fatalf("Stop returned before the loop exited")
	}
	if r.Stop() || r.Running() {
		t.Fatalf("second stop should be a no-op")
	}
}

func TestLoopRunnerFollowsParent(t *testing.T) {
	r := NewLoopRunner()
	parent, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	r.Start(parent, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("loop did not observe parent cancellation")
	}
	r.Stop()
}

func TestLoopRunnerRejectsNilLoop(t *testing.T) {
	if NewLoopRunner().Start(context.Background(), nil) {
		t.Fatalf("nil loop should not start")
	}
}
