package mymuduo

import (
	"sync"
	"testing"
	"time"
)

func TestEventLoopIsInLoopGoroutine(t *testing.T) {
	loop := newTestLoop(t)
	if loop.IsInLoopGoroutine() {
		t.Fatal("test goroutine should not be the loop's owner")
	}
	run(t, loop, func() {
		if !loop.IsInLoopGoroutine() {
			t.Fatal("loop-confined task should observe itself as owner")
		}
	})
}

func TestEventLoopRunInLoopInlinesOnOwner(t *testing.T) {
	loop := newTestLoop(t)
	run(t, loop, func() {
		ran := false
		loop.RunInLoop(func() { ran = true })
		if !ran {
			t.Fatal("RunInLoop on the owning goroutine must execute inline")
		}
	})
}

func TestEventLoopQueueInLoopFromForeignGoroutine(t *testing.T) {
	loop := newTestLoop(t)

	var mu sync.Mutex
	ran := false
	done := make(chan struct{})
	loop.QueueInLoop(func() {
		mu.Lock()
		ran = true
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for foreign-goroutine task to run")
	}

	mu.Lock()
	defer mu.Unlock()
	if !ran {
		t.Fatal("expected queued task to have run")
	}
}

// TestEventLoopQueueInLoopDuringPendingWakesLoop exercises spec.md §4.3's
// re-entry rule: a task enqueued by another pending task, from the owning
// goroutine itself, runs on the next iteration and must still wake the
// loop rather than wait behind the next Poll timeout.
func TestEventLoopQueueInLoopDuringPendingWakesLoop(t *testing.T) {
	loop := newTestLoop(t, WithPollTimeout(2*time.Second))

	done := make(chan struct{})
	loop.QueueInLoop(func() {
		loop.QueueInLoop(func() {
			close(done)
		})
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("nested QueueInLoop task did not run promptly")
	}
}

func TestEventLoopQuitFromForeignGoroutineUnblocksLoop(t *testing.T) {
	lt := NewLoopThread(testOptions(t, WithPollTimeout(30*time.Second)), nil, "")
	loop := lt.StartLoop()

	stopped := make(chan struct{})
	go func() {
		lt.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Quit from a foreign goroutine did not unblock a long poll timeout")
	}
}
