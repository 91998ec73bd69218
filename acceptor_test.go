package mymuduo

import (
	"net"
	"testing"
	"time"
)

// TestAcceptorAcceptsConnection exercises the real Listen -> Listen2 ->
// handleRead -> NewConnectionCallback path against a loopback TCP dial.
func TestAcceptorAcceptsConnection(t *testing.T) {
	loop := newTestLoop(t)

	var a *Acceptor
	accepted := make(chan int, 1)
	run(t, loop, func() {
		a = NewAcceptor(loop, "tcp", "127.0.0.1:0", false, testLogger{t})
		a.SetNewConnectionCallback(func(fd int, peerAddr *net.TCPAddr) {
			if peerAddr == nil || peerAddr.Port == 0 {
				t.Errorf("expected a non-zero peer address, got %v", peerAddr)
			}
			accepted <- fd
		})
		a.Listen()
	})
	t.Cleanup(func() { run(t, loop, a.Close) })

	if !a.Listening() {
		t.Fatal("expected Listening() to report true after Listen")
	}

	addr := a.Addr()
	if addr == nil || addr.Port == 0 {
		t.Fatalf("expected a resolved listen address with non-zero port, got %v", addr)
	}

	client, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	select {
	case fd := <-accepted:
		if fd < 0 {
			t.Fatalf("expected a valid accepted fd, got %d", fd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted connection")
	}
}

// TestAcceptorWithoutCallbackClosesFD verifies spec.md §4.5's fallback:
// an Acceptor with no NewConnectionCallback closes every accepted fd
// instead of leaking it. Observed indirectly: the peer sees the
// connection close right after being accepted.
func TestAcceptorWithoutCallbackClosesFD(t *testing.T) {
	loop := newTestLoop(t)

	var a *Acceptor
	run(t, loop, func() {
		a = NewAcceptor(loop, "tcp", "127.0.0.1:0", false, testLogger{t})
		a.Listen()
	})
	t.Cleanup(func() { run(t, loop, a.Close) })

	addr := a.Addr()
	client, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	n, err := client.Read(buf)
	if n != 0 || err == nil {
		t.Fatalf("expected immediate EOF on the unhandled connection, got n=%d err=%v", n, err)
	}
}
