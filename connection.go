package mymuduo

import (
	"net"
	"time"

	"github.com/kongxin123456/mymuduo/buffer"
	"github.com/kongxin123456/mymuduo/errors"
	"github.com/kongxin123456/mymuduo/internal/sockopt"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

// ConnState is a TcpConnection's lifecycle state, per spec.md §4.6's
// state machine.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnectionCallback fires on both the up (CONNECTED) and down
// (DISCONNECTED) transitions; inspect TcpConnection.Connected() to tell
// them apart.
type ConnectionCallback func(conn *TcpConnection)

// MessageCallback fires once per non-empty read, with the connection's
// input buffer (already containing the new bytes) and the Poll return
// time the bytes were observed at.
type MessageCallback func(conn *TcpConnection, in *buffer.Buffer, receiveTime time.Time)

// WriteCompleteCallback fires after the output buffer fully drains.
type WriteCompleteCallback func(conn *TcpConnection)

// HighWaterMarkCallback fires once per upward crossing of the configured
// threshold, with the output buffer size at the moment of the crossing.
type HighWaterMarkCallback func(conn *TcpConnection, size int)

// closeCallback is the library-internal hook TcpServer installs to learn
// a connection has reached DISCONNECTED, distinct from the user-facing
// ConnectionCallback.
type closeCallback func(conn *TcpConnection)

// TcpConnection is the per-connection state machine from spec.md §4.6:
// buffered non-blocking I/O, half-close, high-water-mark back-pressure.
// Ported from original_source/TcpConnection.h's member set (the .cc body
// was not present in the source pack; spec.md names this as following
// "the Muduo-family convention", which this file implements directly).
type TcpConnection struct {
	loop *EventLoop
	name string

	state atomic.Int32
	fault atomic.Bool

	fd      int
	channel *Channel

	localAddr *net.TCPAddr
	peerAddr  *net.TCPAddr

	inputBuffer  *buffer.Buffer
	outputBuffer *buffer.Buffer

	highWaterMark int

	connectionCB    ConnectionCallback
	messageCB       MessageCallback
	writeCompleteCB WriteCompleteCallback
	highWaterMarkCB HighWaterMarkCallback
	internalCloseCB closeCallback

	alive aliveFlag

	logger Logger
}

// NewTcpConnection builds a connection in state CONNECTING. It is always
// constructed on the base loop (by TcpServer.newConnection) but operated
// on exclusively from subloop, its owning loop from here on.
func NewTcpConnection(subloop *EventLoop, name string, fd int, localAddr, peerAddr *net.TCPAddr, readBufferCap, highWaterMark int, logger Logger) *TcpConnection {
	c := &TcpConnection{
		loop:          subloop,
		name:          name,
		fd:            fd,
		localAddr:     localAddr,
		peerAddr:      peerAddr,
		inputBuffer:   buffer.NewWithCap(readBufferCap),
		outputBuffer:  buffer.NewWithCap(readBufferCap),
		highWaterMark: highWaterMark,
		logger:        logger,
	}
	c.state.Store(int32(StateConnecting))

	c.channel = NewChannel(subloop, fd)
	c.channel.SetReadCallback(c.handleRead)
	c.channel.SetWriteCallback(c.handleWrite)
	c.channel.SetCloseCallback(c.handleClose)
	c.channel.SetErrorCallback(c.handleError)
	return c
}

func (c *TcpConnection) GetLoop() *EventLoop       { return c.loop }
func (c *TcpConnection) Name() string              { return c.name }
func (c *TcpConnection) LocalAddress() *net.TCPAddr { return c.localAddr }
func (c *TcpConnection) PeerAddress() *net.TCPAddr  { return c.peerAddr }

// Connected reports the fast-path atomic state read safe from any
// goroutine (spec.md §5).
func (c *TcpConnection) Connected() bool { return ConnState(c.state.Load()) == StateConnected }

func (c *TcpConnection) SetConnectionCallback(cb ConnectionCallback)         { c.connectionCB = cb }
func (c *TcpConnection) SetMessageCallback(cb MessageCallback)               { c.messageCB = cb }
func (c *TcpConnection) SetWriteCompleteCallback(cb WriteCompleteCallback)   { c.writeCompleteCB = cb }
func (c *TcpConnection) SetHighWaterMarkCallback(cb HighWaterMarkCallback, mark int) {
	c.highWaterMarkCB = cb
	c.highWaterMark = mark
}
func (c *TcpConnection) setCloseCallback(cb closeCallback) { c.internalCloseCB = cb }

// connectEstablished ties the Channel to this connection, enables
// reading, transitions to CONNECTED, and fires the user connection
// callback. Must run on the subloop.
func (c *TcpConnection) connectEstablished() {
	c.loop.assertInLoopGoroutine("TcpConnection.connectEstablished")
	c.state.Store(int32(StateConnected))
	c.channel.Tie(c.alive.isAlive)
	c.channel.EnableReading()
	if c.connectionCB != nil {
		c.connectionCB(c)
	}
}

// connectDestroyed finalizes teardown: if the connection is still
// CONNECTED (e.g. the server is tearing the connection down directly), it
// marks it DISCONNECTED and fires the user callback; in every state it
// detaches the Channel from the Poller, disposes the weak tie, and closes
// the fd.
// Must run on the subloop.
func (c *TcpConnection) connectDestroyed() {
	c.loop.assertInLoopGoroutine("TcpConnection.connectDestroyed")
	if ConnState(c.state.Load()) == StateConnected {
		c.state.Store(int32(StateDisconnected))
		c.channel.DisableAll()
		if c.connectionCB != nil {
			c.connectionCB(c)
		}
	}
	c.channel.Remove()
	c.alive.dispose()
	unix.Close(c.fd)
}

func (c *TcpConnection) handleRead(receiveTime time.Time) {
	n, err := c.inputBuffer.ReadFd(c.fd)
	switch {
	case err != nil:
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return
		}
		c.logger.Errorf("mymuduo: %s: read error: %v", c.name, err)
		c.handleError()
	case n == 0:
		c.handleClose()
	default:
		if c.messageCB != nil {
			c.messageCB(c, c.inputBuffer, receiveTime)
		}
	}
}

func (c *TcpConnection) handleWrite() {
	if !c.channel.IsWriting() {
		return
	}
	n, err := c.outputBuffer.WriteFd(c.fd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		c.logger.Errorf("mymuduo: %s: write error: %v", c.name, err)
		return
	}
	c.outputBuffer.Retrieve(n)
	if c.outputBuffer.ReadableBytes() == 0 {
		c.channel.DisableWriting()
		if c.writeCompleteCB != nil {
			cb := c.writeCompleteCB
			c.loop.QueueInLoop(func() { cb(c) })
		}
		if ConnState(c.state.Load()) == StateDisconnecting {
			c.shutdownInLoop()
		}
	}
}

// handleClose disables all events, marks DISCONNECTED, fires the user
// callback, then the library-internal close callback (TcpServer removing
// its strong reference and scheduling connectDestroyed).
func (c *TcpConnection) handleClose() {
	c.channel.DisableAll()
	c.state.Store(int32(StateDisconnected))
	if c.connectionCB != nil {
		c.connectionCB(c)
	}
	if c.internalCloseCB != nil {
		c.internalCloseCB(c)
	}
}

func (c *TcpConnection) handleError() {
	errno, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		c.logger.Errorf("mymuduo: %s: SO_ERROR lookup failed: %v", c.name, err)
		return
	}
	c.logger.Errorf("mymuduo: %s: socket error: %v", c.name, unix.Errno(errno))
}

// Send forwards bytes to the owning subloop via RunInLoop, per spec.md
// §4.6's cross-thread send path.
func (c *TcpConnection) Send(data []byte) {
	payload := append([]byte(nil), data...)
	c.loop.RunInLoop(func() { c.sendInLoop(payload) })
}

// sendInLoop implements spec.md §4.6's six-step policy.
func (c *TcpConnection) sendInLoop(data []byte) {
	if ConnState(c.state.Load()) == StateDisconnected {
		c.logger.Warnf("mymuduo: %s: send dropped: %v", c.name, errors.ErrConnectionClosed)
		return
	}
	if c.fault.Load() {
		return
	}

	wrote := 0
	if c.outputBuffer.ReadableBytes() == 0 && !c.channel.IsWriting() {
		n, err := unix.Write(c.fd, data)
		if err != nil {
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				c.logger.Errorf("mymuduo: %s: direct write error: %v", c.name, err)
				if err == unix.EPIPE || err == unix.ECONNRESET {
					c.fault.Store(true)
				}
			}
		} else {
			wrote = n
			if wrote == len(data) && c.writeCompleteCB != nil {
				cb := c.writeCompleteCB
				c.loop.QueueInLoop(func() { cb(c) })
			}
		}
	}

	remaining := data[wrote:]
	if len(remaining) == 0 {
		return
	}

	before := c.outputBuffer.ReadableBytes()
	after := before + len(remaining)
	if before < c.highWaterMark && after >= c.highWaterMark && c.highWaterMarkCB != nil {
		cb := c.highWaterMarkCB
		c.loop.QueueInLoop(func() { cb(c, after) })
	}

	c.outputBuffer.Append(remaining)
	if !c.channel.IsWriting() {
		c.channel.EnableWriting()
	}
}

// Shutdown forwards to shutdownInLoop on the owning subloop.
func (c *TcpConnection) Shutdown() {
	c.loop.RunInLoop(c.shutdownInLoop)
}

// shutdownInLoop half-closes the write side once the output buffer is
// drained (or immediately, if it already is); idempotent in
// DISCONNECTING/DISCONNECTED per spec.md §8.
func (c *TcpConnection) shutdownInLoop() {
	switch ConnState(c.state.Load()) {
	case StateConnected, StateDisconnecting:
		// proceed to the half-close below; DISCONNECTING is how
		// handleWrite re-enters once the output buffer has drained
	case StateDisconnected:
		c.logger.Warnf("mymuduo: %s: shutdown dropped: %v", c.name, errors.ErrConnectionClosed)
		return
	default:
		return
	}
	if !c.channel.IsWriting() {
		if err := sockopt.ShutdownWrite(c.fd); err != nil {
			c.logger.Errorf("mymuduo: %s: shutdown(SHUT_WR) failed: %v", c.name, err)
		}
	} else {
		c.state.Store(int32(StateDisconnecting))
	}
}
