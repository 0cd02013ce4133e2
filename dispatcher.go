package reactor

import (
	"context"
	"time"
)

// TCPState mirrors the source's TcpState enum, reported to StreamEventFunc.
type TCPState int

const (
	TCPStateInit TCPState = iota
	TCPStateConnected
	TCPStateListen
	TCPStateClose
	TCPStateAbort
	TCPStateCancel
	TCPStateOverflow
	TCPStateFDMax
	TCPStateReserved
	TCPStateBadData
)

// UDPState mirrors the source's UdpState enum.
type UDPState int

const (
	UDPStateInit UDPState = iota
	UDPStateListen
)

// StreamReadFunc receives one fully-framed SIP message (header block plus
// body) from a connection.
type StreamReadFunc func(conn *StreamConn, msg []byte)

// StreamEventFunc receives stream lifecycle/error notifications.
type StreamEventFunc func(conn *StreamConn, state TCPState)

// DatagramReadFunc receives one UDP datagram payload.
type DatagramReadFunc func(peerPort uint16, peerIPv4 [4]byte, msg []byte)

// DatagramEventFunc receives datagram socket lifecycle notifications.
type DatagramEventFunc func(state UDPState)

// Dispatcher is the single-threaded event loop core: it owns a Backend and
// the registry backing it, and drives readiness notifications to
// registered EventHandler instances in dispatchOrder.
type Dispatcher struct {
	backend Backend
	reg     *registry
	logger  *Logger

	readChunkSize int

	onStreamRead    StreamReadFunc
	onStreamEvent   StreamEventFunc
	onDatagramRead  DatagramReadFunc
	onDatagramEvent DatagramEventFunc

	fatalPropagation bool
	state            fastState
}

// NewDispatcher constructs a Dispatcher and its backend eagerly: no lazy
// first-access initialization (see SPEC_FULL.md §4 on the re-architected
// singleton lifecycle).
func NewDispatcher(opts ...DispatcherOption) (*Dispatcher, error) {
	cfg, err := resolveDispatcherOptions(opts)
	if err != nil {
		return nil, err
	}
	reg := newRegistry(cfg.maxHandles)
	backend, err := newBackend(cfg.backend, reg, cfg.maxHandles)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		backend:          backend,
		reg:              reg,
		logger:           cfg.logger,
		readChunkSize:    cfg.readChunkSize,
		fatalPropagation: cfg.fatalPropagation,
	}, nil
}

// Logger returns the dispatcher's configured logger, for handlers
// constructed against this dispatcher to log through.
func (d *Dispatcher) Logger() *Logger { return d.logger }

// ReadChunkSize returns the configured per-read() buffer size.
func (d *Dispatcher) ReadChunkSize() int { return d.readChunkSize }

// RegisterTCPCallbacks sets the callbacks invoked by every StreamConnection
// handler registered against this dispatcher. A second call replaces the
// prior callbacks.
func (d *Dispatcher) RegisterTCPCallbacks(onRead StreamReadFunc, onEvent StreamEventFunc) {
	d.onStreamRead = onRead
	d.onStreamEvent = onEvent
}

// RegisterUDPCallbacks sets the callbacks invoked by the DatagramHandler
// registered against this dispatcher.
func (d *Dispatcher) RegisterUDPCallbacks(onRead DatagramReadFunc, onEvent DatagramEventFunc) {
	d.onDatagramRead = onRead
	d.onDatagramEvent = onEvent
}

// RegisterHandler registers h for interest, delegating to the backend.
func (d *Dispatcher) RegisterHandler(h EventHandler, interest EventMask) error {
	return d.backend.Register(h, interest)
}

// DeregisterHandler removes h's registration, delegating to the backend.
func (d *Dispatcher) DeregisterHandler(h EventHandler, interest EventMask) {
	d.backend.Deregister(h, interest)
}

// RunOnce waits for one batch of readiness notifications (or the timeout)
// and dispatches them. A nil timeout blocks indefinitely.
func (d *Dispatcher) RunOnce(timeout *time.Duration) error {
	events, err := d.backend.Wait(timeout)
	if err != nil {
		d.logger.Err().Err(err).Log("backend wait failed")
		if d.fatalPropagation {
			return err
		}
		return nil
	}
	for _, ev := range events {
		d.dispatch(ev)
	}
	return nil
}

// dispatch delivers ev's readiness kinds to the registered handler in
// WRITE, READ, EXCEPT order, re-checking registration between each kind so
// a handler that destroys itself (deregisters) partway through never
// receives a stale callback for a kind it no longer owns in this wakeup.
// This is the mechanism referenced in SPEC_FULL.md §5.1 and spec.md's
// invariant about at-most-one-destructive-callback-per-wakeup.
func (d *Dispatcher) dispatch(ev ReadyEvent) {
	for _, kind := range dispatchOrder {
		if ev.Mask&kind == 0 {
			continue
		}
		entry, ok := d.reg.lookup(ev.Handle)
		if !ok {
			return
		}
		entry.handler.OnEvent(ev.Handle, kind)
	}
}

// Run loops RunOnce until ctx is cancelled. Backend-fatal errors are logged
// and swallowed unless WithFatalPropagation(true) was set, in which case Run
// returns the error immediately.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.state.tryTransition(StateNew, StateRunning) {
		return ErrClosed
	}
	timeout := 100 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			d.state.store(StateClosed)
			return ctx.Err()
		default:
		}
		if d.state.load() == StateClosed {
			return nil
		}
		if err := d.RunOnce(&timeout); err != nil {
			d.state.store(StateClosed)
			return err
		}
	}
}

// Close stops a running Run loop (it will return on its next iteration) and
// releases the backend's kernel resources. Safe to call from a different
// goroutine than the one in Run.
func (d *Dispatcher) Close() error {
	d.state.store(StateClosed)
	return d.backend.Close()
}
