package reactor

// registryEntry couples a registered handler with the interest mask it was
// registered under, so a deregister-by-handle doesn't need the handler to
// be callable (its socket might already be gone).
type registryEntry struct {
	handler  EventHandler
	interest EventMask
	active   bool
}

// registry is the single source of truth mapping Handle to (handler,
// interest). Backends consult it only to serve the next kernel call; they
// never hold their own copy of a handler reference. Direct array indexing,
// following the teacher's FastPoller.fds convention, bounded by capacity
// (MaxFDs by default, overridable via WithMaxHandles).
//
// The reactor's concurrency model is strictly single-threaded: Register,
// Deregister, and dispatch all run on the same goroutine that calls
// Dispatcher.Run, so unlike the teacher's FastPoller this type carries no
// mutex.
type registry struct {
	entries  []registryEntry
	capacity int
}

func newRegistry(capacity int) *registry {
	if capacity <= 0 {
		capacity = MaxFDs
	}
	return &registry{entries: make([]registryEntry, capacity), capacity: capacity}
}

func (r *registry) inRange(h Handle) bool {
	return h >= 0 && int(h) < r.capacity
}

// register adds h with the given handler and interest. It is an error to
// register a handle already active unless the owning handler is identical
// (allowing a handler to re-register to widen its interest mask).
func (r *registry) register(h Handle, handler EventHandler, interest EventMask) error {
	if !r.inRange(h) {
		return &HandleError{Handle: h, Cause: ErrCapacityExceeded, Message: "handle exceeds registry capacity"}
	}
	e := &r.entries[h]
	if e.active && e.handler != handler {
		return &HandleError{Handle: h, Cause: ErrBadHandle, Message: "handle already registered to a different handler"}
	}
	e.handler = handler
	e.interest = interest
	e.active = true
	return nil
}

// deregister clears interest from h's entry, removing the entry entirely
// once no interest bits remain (matching the source's "remove interest bits;
// when no bits remain the entry is removed" semantics). It returns the
// interest mask still active for h afterward -- zero both when the entry
// never existed and when this call emptied it.
func (r *registry) deregister(h Handle, interest EventMask) EventMask {
	if !r.inRange(h) {
		return 0
	}
	e := &r.entries[h]
	if !e.active {
		return 0
	}
	e.interest &^= interest
	if e.interest == 0 {
		*e = registryEntry{}
		return 0
	}
	return e.interest
}

// removeAll unconditionally clears h's entry regardless of interest bits.
// Unlike deregister, this isn't bit-aware: it exists for rollback of a
// registration that failed at the backend/kernel level, where the entry
// never went live and partial-interest semantics don't apply.
func (r *registry) removeAll(h Handle) {
	if !r.inRange(h) {
		return
	}
	r.entries[h] = registryEntry{}
}

// lookup returns the entry for h, and whether it is currently active.
func (r *registry) lookup(h Handle) (registryEntry, bool) {
	if !r.inRange(h) {
		return registryEntry{}, false
	}
	e := r.entries[h]
	return e, e.active
}

// findByHandler returns the handle a handler is currently registered under,
// scanning linearly. Used only by Deregister(handler, ...) call sites, which
// are rare (connection/acceptor teardown) relative to the hot event-dispatch
// path.
func (r *registry) findByHandler(handler EventHandler) (Handle, bool) {
	for i := range r.entries {
		if r.entries[i].active && r.entries[i].handler == handler {
			return Handle(i), true
		}
	}
	return InvalidHandle, false
}
