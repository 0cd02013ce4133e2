package reactor

import "time"

// Handle identifies a registered file descriptor. Non-negative handles are
// valid; InvalidHandle marks the absence of one.
type Handle int32

// InvalidHandle is returned by constructors that failed to obtain a socket,
// and is never a valid registration key.
const InvalidHandle Handle = -1

// Configuration constants, bit-exact with the values the demultiplexer
// backends and framing state machine were designed around.
const (
	// MaxFDs bounds the addressable handle range: it is the capacity of the
	// handle-indexed registry every backend shares, and the size of poll's
	// slot table.
	MaxFDs = 10000

	// Backlog is the listen() backlog passed to the stream acceptor's
	// socket.
	Backlog = 1000

	// SIPMsgMax bounds a single framed stream message (headers + body).
	SIPMsgMax = 65536

	// SIPUDPMsgMax bounds a single datagram read.
	SIPUDPMsgMax = 3072

	// ReadChunk is the default number of bytes requested per read() call.
	ReadChunk = 1024

	// MinExpireMS is the minimum duration TimerWheel.Add accepts.
	MinExpireMS = 500 * time.Millisecond

	// StepMS is the default timer wheel tick interval.
	StepMS = 250 * time.Millisecond
)

// EventMask is a bitset of readiness/lifecycle conditions delivered to an
// EventHandler. Only Read, Write, and Except are produced by the I/O side of
// the reactor; Accept, Close, Timeout, and Signal are reserved for forward
// compatibility with handler-level semantics layered on top (e.g. the stream
// acceptor treats Read as "connection pending" and reports it to callers as
// an accept, without a distinct wire-level event kind).
type EventMask uint8

const (
	EventRead EventMask = 1 << iota
	EventWrite
	EventExcept
	EventAccept
	EventClose
	EventTimeout
	EventSignal
)

// dispatchOrder is the within-wakeup delivery order: write before read
// before except, so a handler that destroys itself on a write-complete
// notification cannot still receive a stale read or except callback for
// the same wakeup (see Dispatcher.dispatch).
var dispatchOrder = [...]EventMask{EventWrite, EventRead, EventExcept}

func (m EventMask) String() string {
	var s []byte
	add := func(bit EventMask, c byte) {
		if m&bit != 0 {
			s = append(s, c)
		}
	}
	add(EventRead, 'R')
	add(EventWrite, 'W')
	add(EventExcept, 'E')
	add(EventAccept, 'A')
	add(EventClose, 'C')
	add(EventTimeout, 'T')
	add(EventSignal, 'S')
	if len(s) == 0 {
		return "-"
	}
	return string(s)
}

// EventHandler is implemented by anything registrable with a Backend: the
// stream acceptor, a stream connection, or the datagram handler.
type EventHandler interface {
	// OnEvent is called once per readiness kind, per wakeup, in
	// dispatchOrder, for as long as the handler remains registered.
	OnEvent(h Handle, mask EventMask)
	// Handle returns the file descriptor this handler owns.
	Handle() Handle
}
