package reactor

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// DatagramHandler is the UDP receiver: one instance per server listens for
// all clients on a bound address, mirroring UdpHandler in the source. Each
// readiness notification yields exactly one recvfrom() call.
type DatagramHandler struct {
	sock    *DatagramSocket
	d       *Dispatcher
	limiter *catrate.Limiter
}

// NewDatagramHandler binds addr and registers with d for EventRead.
func NewDatagramHandler(addr InetAddr, d *Dispatcher) (*DatagramHandler, error) {
	sock, err := NewDatagramSocket(addr)
	if err != nil {
		return nil, err
	}
	h := &DatagramHandler{
		sock: sock,
		d:    d,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
		}),
	}
	if err := d.RegisterHandler(h, EventRead); err != nil {
		_ = sock.Close()
		return nil, err
	}
	return h, nil
}

// Handle implements EventHandler.
func (h *DatagramHandler) Handle() Handle { return h.sock.Handle() }

// OnEvent implements EventHandler.
func (h *DatagramHandler) OnEvent(handle Handle, mask EventMask) {
	if mask != EventRead {
		return
	}
	buf := make([]byte, SIPUDPMsgMax)
	n, peer, peerPort, err := h.sock.RecvFrom(buf)
	if err != nil {
		return
	}
	if n >= SIPUDPMsgMax {
		// End of datagram may not have been reached -- the message might
		// exceed SIPUDPMsgMax. The v2 error-response TODO is out of scope
		// (see SPEC_FULL.md §5.5); we only log, rate-limited.
		if _, allowed := h.limiter.Allow("udp-oversize"); allowed {
			h.d.logger.Warning().Int("bytes", n).Log("udp datagram at or over SIPUDPMsgMax, possibly truncated")
		}
	}
	var peerAddr [4]byte
	if ip4 := peer.To4(); ip4 != nil {
		copy(peerAddr[:], ip4)
	}
	if h.d.onDatagramRead != nil {
		h.d.onDatagramRead(peerPort, peerAddr, buf[:n])
	}
}

// Close deregisters and closes the socket.
func (h *DatagramHandler) Close() error {
	h.d.DeregisterHandler(h, EventRead)
	return h.sock.Close()
}
