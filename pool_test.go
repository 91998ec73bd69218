package mymuduo

import "testing"

func TestLoopThreadPoolZeroThreadsReturnsBaseLoop(t *testing.T) {
	base := newTestLoop(t)
	pool := NewLoopThreadPool(base, testOptions(t, WithNumEventLoop(0)))
	pool.Start(nil)
	t.Cleanup(func() { pool.Stop() })

	for i := 0; i < 3; i++ {
		if got := pool.GetNextLoop(); got != base {
			t.Fatalf("iteration %d: expected base loop, got a different one", i)
		}
	}
}

func TestLoopThreadPoolRoundRobin(t *testing.T) {
	base := newTestLoop(t)
	opts := testOptions(t, WithNumEventLoop(3))
	pool := NewLoopThreadPool(base, opts)
	loops := pool.Start(nil)
	t.Cleanup(func() { pool.Stop() })

	if len(loops) != 3 {
		t.Fatalf("expected 3 subloops, got %d", len(loops))
	}

	var seen []*EventLoop
	for i := 0; i < 6; i++ {
		seen = append(seen, pool.GetNextLoop())
	}
	for i := 0; i < 3; i++ {
		if seen[i] != loops[i] || seen[i+3] != loops[i] {
			t.Fatalf("round robin did not repeat construction order: %v vs %v", seen, loops)
		}
	}
}
