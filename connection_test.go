package mymuduo

import (
	"net"
	"testing"
	"time"

	"github.com/kongxin123456/mymuduo/buffer"
	"golang.org/x/sys/unix"
)

// socketPair returns two connected, non-blocking TCP-like fds (a Unix
// domain socketpair works the same way from TcpConnection's point of
// view: it only ever calls read(2)/write(2)/shutdown(2) on the fd).
func socketPair(t *testing.T) (serverFD int, peer *net.UnixConn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	f := netFileFromFD(t, fds[1])
	c, err := net.FileConn(f)
	f.Close()
	if err != nil {
		t.Fatalf("FileConn: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return fds[0], c.(*net.UnixConn)
}

func TestConnectionSendAndReceive(t *testing.T) {
	loop := newTestLoop(t)
	fd, peer := socketPair(t)

	var received []byte
	msgCh := make(chan []byte, 1)

	var conn *TcpConnection
	run(t, loop, func() {
		conn = NewTcpConnection(loop, "t1", fd, &net.TCPAddr{}, &net.TCPAddr{}, 4096, 4096, testLogger{t})
		conn.SetMessageCallback(func(c *TcpConnection, in *buffer.Buffer, _ time.Time) {
			msgCh <- []byte(in.RetrieveAllAsString())
		})
		conn.connectEstablished()
	})
	t.Cleanup(func() { run(t, loop, conn.connectDestroyed) })

	if _, err := peer.Write([]byte("ping")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	select {
	case received = <-msgCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message callback")
	}
	if string(received) != "ping" {
		t.Fatalf("got %q, want %q", received, "ping")
	}

	conn.Send([]byte("pong"))
	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4)
	if _, err := peer.Read(buf); err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if string(buf) != "pong" {
		t.Fatalf("got %q, want %q", buf, "pong")
	}
}

func TestConnectionHighWaterMarkCrossing(t *testing.T) {
	loop := newTestLoop(t)
	fd, peer := socketPair(t)
	_ = peer // drained by the kernel socket buffer; never read in this test

	const mark = 1024
	crossed := make(chan int, 1)

	var conn *TcpConnection
	run(t, loop, func() {
		conn = NewTcpConnection(loop, "t2", fd, &net.TCPAddr{}, &net.TCPAddr{}, 4096, mark, testLogger{t})
		conn.SetHighWaterMarkCallback(func(c *TcpConnection, size int) {
			crossed <- size
		}, mark)
		conn.connectEstablished()
	})
	t.Cleanup(func() { run(t, loop, conn.connectDestroyed) })

	big := make([]byte, 4*1024*1024)
	conn.Send(big)

	select {
	case size := <-crossed:
		if size < mark {
			t.Fatalf("high water mark callback fired with size %d < mark %d", size, mark)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for high water mark callback")
	}
}

func TestConnectionShutdownIsIdempotent(t *testing.T) {
	loop := newTestLoop(t)
	fd, _ := socketPair(t)

	var conn *TcpConnection
	run(t, loop, func() {
		conn = NewTcpConnection(loop, "t3", fd, &net.TCPAddr{}, &net.TCPAddr{}, 4096, 4096, testLogger{t})
		conn.connectEstablished()
	})
	t.Cleanup(func() { run(t, loop, conn.connectDestroyed) })

	conn.Shutdown()
	conn.Shutdown() // must not panic or double-close

	run(t, loop, func() {
		if ConnState(conn.state.Load()) == StateConnecting {
			t.Fatal("expected shutdown to have moved the connection out of CONNECTING")
		}
	})
}
