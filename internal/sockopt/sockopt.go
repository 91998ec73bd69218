// Package sockopt is the thin, out-of-core-scope collaborator spec.md §1
// names explicitly: "the descriptor-level wrappers for socket(2)/bind(2)/
// listen(2)/accept4(2)... referenced only by interface." The Acceptor
// calls these small functions rather than reimplementing socket setup
// itself.
package sockopt

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// Listen creates a non-blocking, close-on-exec TCP listening socket bound
// to addr with SO_REUSEADDR and, if reusePort, SO_REUSEPORT set. It does
// not call listen(2) yet — that is the Acceptor's Listen() operation, kept
// separate per spec.md §4.5 ("listen() transitions the socket to the
// listening state").
func Listen(network, addr string, reusePort bool) (fd int, resolved *net.TCPAddr, err error) {
	tcpAddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return -1, nil, fmt.Errorf("sockopt: resolve %s: %w", addr, err)
	}

	domain := unix.AF_INET
	if tcpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err = unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, nil, fmt.Errorf("sockopt: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("sockopt: SO_REUSEADDR: %w", err)
	}
	if reusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			unix.Close(fd)
			return -1, nil, fmt.Errorf("sockopt: SO_REUSEPORT: %w", err)
		}
	}

	sa, err := sockaddr(domain, tcpAddr)
	if err != nil {
		unix.Close(fd)
		return -1, nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("sockopt: bind: %w", err)
	}

	local, err := unix.Getsockname(fd)
	if err == nil {
		tcpAddr = sockaddrToTCPAddr(local)
	}
	return fd, tcpAddr, nil
}

// Listen2 transitions fd to the listening state with the given backlog.
func Listen2(fd, backlog int) error {
	if err := unix.Listen(fd, backlog); err != nil {
		return fmt.Errorf("sockopt: listen: %w", err)
	}
	return nil
}

// Accept4 accepts one connection, inheriting non-blocking and
// close-on-exec per spec.md §6.
func Accept4(listenFD int) (connFD int, peer *net.TCPAddr, err error) {
	nfd, sa, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, err
	}
	return nfd, sockaddrToTCPAddr(sa), nil
}

// LocalAddr reports the local address bound to fd, used by TcpServer's
// newConnection per spec.md §4.7 ("retrieves the local address via
// getsockname").
func LocalAddr(fd int) (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, fmt.Errorf("sockopt: getsockname: %w", err)
	}
	return sockaddrToTCPAddr(sa), nil
}

// ShutdownWrite half-closes the write side of fd (spec.md §4.6's
// ::shutdown(fd, SHUT_WR)).
func ShutdownWrite(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_WR)
}

func sockaddr(domain int, addr *net.TCPAddr) (unix.Sockaddr, error) {
	if domain == unix.AF_INET {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], addr.IP.To4())
		return sa, nil
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	return sa, nil
}

func sockaddrToTCPAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte(nil), v.Addr[:]...), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append([]byte(nil), v.Addr[:]...), Port: v.Port}
	default:
		return &net.TCPAddr{}
	}
}

// AddrPort renders an address the way spec.md §4.7's connection-naming
// scheme wants it ("server-name + ip:port + monotonic counter").
func AddrPort(addr *net.TCPAddr) string {
	if addr == nil {
		return ""
	}
	return net.JoinHostPort(addr.IP.String(), strconv.Itoa(addr.Port))
}
