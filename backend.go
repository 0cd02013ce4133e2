package reactor

import "time"

// BackendKind selects a demultiplexer implementation.
type BackendKind int

const (
	// BackendAuto picks epoll on Linux, kqueue on the BSDs/Darwin, devpoll
	// on Solaris, and poll on other non-Windows platforms. Windows has no
	// backend.
	BackendAuto BackendKind = iota
	BackendSelect
	BackendPoll
	BackendEpoll
	BackendDevPoll
	BackendKqueue
)

func (k BackendKind) String() string {
	switch k {
	case BackendAuto:
		return "auto"
	case BackendSelect:
		return "select"
	case BackendPoll:
		return "poll"
	case BackendEpoll:
		return "epoll"
	case BackendDevPoll:
		return "devpoll"
	case BackendKqueue:
		return "kqueue"
	default:
		return "unknown"
	}
}

// ReadyEvent aggregates every readiness kind a Backend observed for Handle
// in a single Wait call into one mask; Dispatcher splits it into the
// ordered per-kind callbacks.
type ReadyEvent struct {
	Handle Handle
	Mask   EventMask
}

// Backend is the pluggable readiness-demultiplexer contract. Every method
// except Wait is expected to be cheap and is called from the single
// dispatch goroutine; Wait is the one call expected to block.
type Backend interface {
	// Register adds h's handler under interest, keyed by h.Handle().
	Register(h EventHandler, interest EventMask) error
	// RegisterByHandle is not supported by any backend in this port (every
	// original backend keyed registration off a just-constructed handler
	// object, never a bare Handle); it always returns an error wrapping
	// ErrBadHandle.
	RegisterByHandle(handle Handle, handler EventHandler, interest EventMask) error
	// Deregister clears interest from h's registration, found by handler
	// identity regardless of which handle it was registered under. The
	// registration is removed once no interest bits remain.
	Deregister(h EventHandler, interest EventMask)
	// DeregisterByHandle clears interest from a registration looked up by
	// handle alone, removing it once no interest bits remain.
	DeregisterByHandle(handle Handle, interest EventMask)
	// Wait blocks until at least one registered handle is ready, the
	// timeout elapses (nil means block indefinitely), or an error occurs.
	// A nil slice with a nil error is a valid "woke up, nothing ready"
	// result (e.g. EINTR).
	Wait(timeout *time.Duration) ([]ReadyEvent, error)
	// Close releases the backend's kernel resources. Registered handlers
	// are not notified.
	Close() error
}

// errRegisterByHandleUnsupported is returned verbatim by every backend's
// RegisterByHandle, matching the source: registration always happens from
// within a handler's own constructor, keyed by the handler, never as a bare
// handle hand-off.
var errRegisterByHandleUnsupported = &HandleError{
	Handle:  InvalidHandle,
	Cause:   ErrBadHandle,
	Message: "RegisterByHandle is not supported; register via Register(handler, interest)",
}
