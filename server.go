package mymuduo

import (
	"fmt"
	"net"
	"sync"

	"github.com/kongxin123456/mymuduo/errors"
	"github.com/kongxin123456/mymuduo/internal/sockopt"
	"go.uber.org/atomic"
)

// TcpServer is the user-facing façade from spec.md §4.7: it owns an
// Acceptor on the base loop, a LoopThreadPool of subloops, and the
// name -> *TcpConnection map, and wires accepted connections to
// subloops round-robin. Ported from
// _examples/walkon-gnet/server_unix.go's activateReactors /
// activateEventLoops / startSubReactors orchestration shape, adapted
// from gnet's Handler-centric API to muduo's per-connection-callback one.
type TcpServer struct {
	baseLoop *EventLoop
	acceptor *Acceptor
	pool     *LoopThreadPool
	opts     *Options
	logger   Logger

	name    string
	network string
	addr    string

	connectionCB    ConnectionCallback
	messageCB       MessageCallback
	writeCompleteCB WriteCompleteCallback

	// connMu guards conns; per spec.md §5, mutated only from the base
	// loop's goroutine, but SafeConnections() lets foreign goroutines
	// take a consistent snapshot.
	connMu     sync.Mutex
	conns      map[string]*TcpConnection
	nextConnID int64

	started atomic.Bool
}

// NewTcpServer builds a TcpServer bound to addr, not yet listening.
// baseLoop is the EventLoop the caller drives (typically via
// EventLoop.Loop() on the calling goroutine); opts configures the
// subloop pool, buffer sizing, and high-water mark.
func NewTcpServer(baseLoop *EventLoop, name, network, addr string, opts *Options) *TcpServer {
	if opts == nil {
		opts = NewOptions()
	}
	s := &TcpServer{
		baseLoop: baseLoop,
		opts:     opts,
		logger:   opts.Logger,
		name:     name,
		network:  network,
		addr:     addr,
		conns:    make(map[string]*TcpConnection),
	}
	s.acceptor = NewAcceptor(baseLoop, network, addr, opts.ReusePort, opts.Logger)
	s.acceptor.SetNewConnectionCallback(s.newConnection)
	s.pool = NewLoopThreadPool(baseLoop, opts)
	return s
}

func (s *TcpServer) SetConnectionCallback(cb ConnectionCallback)       { s.connectionCB = cb }
func (s *TcpServer) SetMessageCallback(cb MessageCallback)             { s.messageCB = cb }
func (s *TcpServer) SetWriteCompleteCallback(cb WriteCompleteCallback) { s.writeCompleteCB = cb }

// SetThreadNum must be called before Start; it configures the subloop
// pool size (0 keeps every connection on the base loop, spec.md §4.4).
// A no-op, logged via ErrServerAlreadyStarted, once the server has
// started.
func (s *TcpServer) SetThreadNum(n int) {
	if s.started.Load() {
		s.logger.Errorf("mymuduo: server %q: SetThreadNum: %v", s.name, errors.ErrServerAlreadyStarted)
		return
	}
	s.opts.NumEventLoop = n
}

// Addr is the listening socket's resolved local address, useful when the
// server was constructed with a ":0" port.
func (s *TcpServer) Addr() *net.TCPAddr { return s.acceptor.Addr() }

// Start is idempotent: the first call starts the Acceptor listening and
// the subloop pool; later calls are no-ops (spec.md §4.7).
func (s *TcpServer) Start() {
	if !s.started.CAS(false, true) {
		return
	}
	s.pool.Start(nil)
	s.baseLoop.RunInLoop(func() {
		s.acceptor.Listen()
		s.logger.Infof("mymuduo: server %q listening on %s", s.name, s.addr)
	})
}

// newConnection is the Acceptor's NewConnectionCallback; it always runs
// on the base loop's goroutine.
func (s *TcpServer) newConnection(fd int, peerAddr *net.TCPAddr) {
	subloop := s.pool.GetNextLoop()

	localAddr, err := sockopt.LocalAddr(fd)
	if err != nil {
		s.logger.Errorf("mymuduo: server %q: getsockname on accepted fd failed: %v", s.name, err)
		localAddr = &net.TCPAddr{}
	}

	s.connMu.Lock()
	s.nextConnID++
	connID := s.nextConnID
	s.connMu.Unlock()
	connName := fmt.Sprintf("%s-%s#%d", s.name, sockopt.AddrPort(localAddr), connID)

	conn := NewTcpConnection(subloop, connName, fd, localAddr, peerAddr, s.opts.ReadBufferCap, s.opts.HighWaterMark, s.logger)
	conn.SetConnectionCallback(s.connectionCB)
	conn.SetMessageCallback(s.messageCB)
	conn.SetWriteCompleteCallback(s.writeCompleteCB)
	conn.setCloseCallback(s.removeConnection)

	s.connMu.Lock()
	s.conns[connName] = conn
	s.connMu.Unlock()

	subloop.RunInLoop(conn.connectEstablished)
}

// removeConnection is TcpConnection's library-internal close callback; it
// always runs on the connection's subloop, so it forwards the map
// mutation to the base loop per spec.md §5's "conns map mutated only on
// the base loop" rule.
func (s *TcpServer) removeConnection(conn *TcpConnection) {
	s.baseLoop.RunInLoop(func() { s.removeConnectionInLoop(conn) })
}

func (s *TcpServer) removeConnectionInLoop(conn *TcpConnection) {
	s.connMu.Lock()
	delete(s.conns, conn.Name())
	s.connMu.Unlock()
	s.logger.Infof("mymuduo: server %q: connection %q removed", s.name, conn.Name())
	conn.GetLoop().QueueInLoop(conn.connectDestroyed)
}

// SafeConnections returns a snapshot of live connections, safe to call
// from any goroutine.
func (s *TcpServer) SafeConnections() []*TcpConnection {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	out := make([]*TcpConnection, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Stop shuts down every live connection, stops the subloop pool, and
// closes the Acceptor, aggregating any errors encountered.
func (s *TcpServer) Stop() error {
	for _, c := range s.SafeConnections() {
		c.Shutdown()
	}
	err := s.pool.Stop()
	s.baseLoop.RunInLoop(func() {
		s.acceptor.Close()
	})
	return err
}
