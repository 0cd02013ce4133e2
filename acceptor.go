package reactor

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// StreamAcceptor is the connection factory for TCP: it registers itself for
// EventRead on the listening socket and, on each readiness notification,
// accepts one pending connection and constructs a StreamConnection for it.
// Mirrors ConnectionAcceptor in the source.
type StreamAcceptor struct {
	listener *StreamListener
	d        *Dispatcher
	limiter  *catrate.Limiter
}

// NewStreamAcceptor binds and listens on addr, then registers with d.
func NewStreamAcceptor(addr InetAddr, d *Dispatcher) (*StreamAcceptor, error) {
	listener, err := NewStreamListener(addr)
	if err != nil {
		return nil, err
	}
	a := &StreamAcceptor{
		listener: listener,
		d:        d,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
		}),
	}
	if err := d.RegisterHandler(a, EventRead); err != nil {
		_ = listener.Close()
		return nil, err
	}
	return a, nil
}

// Handle implements EventHandler.
func (a *StreamAcceptor) Handle() Handle { return a.listener.Handle() }

// OnEvent implements EventHandler. A connection request looks like
// readiness-for-read on a listening socket, exactly as the source treats
// it.
func (a *StreamAcceptor) OnEvent(h Handle, mask EventMask) {
	if mask != EventRead {
		return
	}
	conn, peer, err := a.listener.Accept()
	if err != nil {
		if _, allowed := a.limiter.Allow("accept-error"); allowed {
			a.d.logger.Warning().Err(err).Log("accept failed")
		}
		return
	}
	if _, err := NewStreamConnection(conn, a.d); err != nil {
		a.d.logger.Err().Err(err).Log("failed to register accepted connection")
		_ = conn.Close()
		return
	}
	a.d.logger.Info().Str("peer", peer.String()).Log("accepted connection")
}

// Close deregisters and closes the listening socket.
func (a *StreamAcceptor) Close() error {
	a.d.DeregisterHandler(a, EventRead)
	return a.listener.Close()
}
