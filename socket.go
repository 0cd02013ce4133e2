package reactor

import (
	"net"

	"golang.org/x/sys/unix"
)

// InetAddr encapsulates an IPv4 address, mirroring the source's InetAddr
// (deliberately IPv4-only, per the IPv6 non-goal).
type InetAddr struct {
	sa unix.SockaddrInet4
}

// NewInetAddr builds an address listening on all interfaces.
func NewInetAddr(port uint16) InetAddr {
	return InetAddr{sa: unix.SockaddrInet4{Port: int(port)}}
}

// NewInetAddrOn builds an address bound to a specific IPv4 interface.
func NewInetAddrOn(port uint16, ip net.IP) InetAddr {
	var a InetAddr
	a.sa.Port = int(port)
	ip4 := ip.To4()
	if ip4 != nil {
		copy(a.sa.Addr[:], ip4)
	}
	return a
}

// Port returns the address's port.
func (a InetAddr) Port() uint16 { return uint16(a.sa.Port) }

// StreamListener is a thin facade over a listening TCP socket: create,
// bind, listen, accept. Mirrors SockAcceptor.
type StreamListener struct {
	handle Handle
}

// NewStreamListener creates, binds (with SO_REUSEADDR, see SPEC_FULL.md §6),
// and listens on addr with a backlog of Backlog.
func NewStreamListener(addr InetAddr) (*StreamListener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, WrapError("socket", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, WrapError("setsockopt SO_REUSEADDR", err)
	}
	if err := unix.Bind(fd, &addr.sa); err != nil {
		_ = unix.Close(fd)
		return nil, WrapError("bind", err)
	}
	if err := unix.Listen(fd, Backlog); err != nil {
		_ = unix.Close(fd)
		return nil, WrapError("listen", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, WrapError("set nonblocking", err)
	}
	return &StreamListener{handle: Handle(fd)}, nil
}

// Handle returns the listening socket's handle.
func (l *StreamListener) Handle() Handle { return l.handle }

// Accept accepts one pending connection, returning a StreamConn. On
// EAGAIN/EWOULDBLOCK it returns ErrTransientIO.
func (l *StreamListener) Accept() (*StreamConn, net.IP, error) {
	fd, sa, err := unix.Accept(int(l.handle))
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return nil, nil, ErrTransientIO
		}
		return nil, nil, WrapError("accept", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, nil, WrapError("set nonblocking", err)
	}
	var ip net.IP
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		ip = net.IP(append([]byte(nil), sa4.Addr[:]...))
	}
	return &StreamConn{handle: Handle(fd)}, ip, nil
}

// Close closes the listening socket.
func (l *StreamListener) Close() error {
	return unix.Close(int(l.handle))
}

// StreamConn encapsulates a connected TCP descriptor, mirroring SockStream.
type StreamConn struct {
	handle Handle
}

// Handle returns the connection's handle.
func (c *StreamConn) Handle() Handle { return c.handle }

// Recv reads into buf, returning (0, ErrTransientIO) on EAGAIN/EINTR and
// (0, ErrPeerClosed) on EOF/ECONNRESET.
func (c *StreamConn) Recv(buf []byte) (int, error) {
	n, err := unix.Read(int(c.handle), buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, ErrTransientIO
		}
		if err == unix.ECONNRESET {
			return 0, ErrPeerClosed
		}
		return 0, WrapError("read", err)
	}
	if n == 0 {
		return 0, ErrPeerClosed
	}
	return n, nil
}

// Send writes buf, returning the number of bytes written.
func (c *StreamConn) Send(buf []byte) (int, error) {
	n, err := unix.Write(int(c.handle), buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, ErrTransientIO
		}
		return 0, WrapError("write", err)
	}
	return n, nil
}

// Close closes the connection.
func (c *StreamConn) Close() error {
	return unix.Close(int(c.handle))
}

// DatagramSocket encapsulates a UDP socket, mirroring SockDatagram. A
// server needs only one for all clients on a given address.
type DatagramSocket struct {
	handle Handle
}

// NewDatagramSocket creates and binds a UDP socket on addr.
func NewDatagramSocket(addr InetAddr) (*DatagramSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, WrapError("socket", err)
	}
	if err := unix.Bind(fd, &addr.sa); err != nil {
		_ = unix.Close(fd)
		return nil, WrapError("bind", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, WrapError("set nonblocking", err)
	}
	return &DatagramSocket{handle: Handle(fd)}, nil
}

// Handle returns the socket's handle.
func (d *DatagramSocket) Handle() Handle { return d.handle }

// RecvFrom reads one datagram into buf, returning the sender's address and
// port.
func (d *DatagramSocket) RecvFrom(buf []byte) (int, net.IP, uint16, error) {
	n, sa, err := unix.Recvfrom(int(d.handle), buf, 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, nil, 0, ErrTransientIO
		}
		return 0, nil, 0, WrapError("recvfrom", err)
	}
	var ip net.IP
	var port uint16
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		ip = net.IP(append([]byte(nil), sa4.Addr[:]...))
		port = uint16(sa4.Port)
	}
	return n, ip, port, nil
}

// SendTo writes one datagram to the given address.
func (d *DatagramSocket) SendTo(buf []byte, ip net.IP, port uint16) error {
	var sa unix.SockaddrInet4
	sa.Port = int(port)
	ip4 := ip.To4()
	if ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	return unix.Sendto(int(d.handle), buf, 0, &sa)
}

// Close closes the socket.
func (d *DatagramSocket) Close() error {
	return unix.Close(int(d.handle))
}
