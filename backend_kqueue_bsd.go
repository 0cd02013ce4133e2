//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueueBackend implements Backend atop kqueue. The source stashes the
// handler's raw pointer in kevent.udata and recovers it directly on
// dispatch; Go cannot safely carry a pointer through the kernel across GC
// moves that way, so this port recovers the handler via the registry,
// keyed by Ident (the file descriptor), exactly as the select/poll/epoll
// backends already do. This is the one structural deviation from the
// source's kqueue backend; every other backend already matches the source's
// handle-indexed recovery.
type kqueueBackend struct {
	reg      *registry
	kq       int
	eventBuf []unix.Kevent_t
}

func newKqueueBackend(reg *registry, capacity int) (*kqueueBackend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, WrapError("kqueue", ErrBackendFatal)
	}
	bufSize := 256
	if capacity < bufSize {
		bufSize = capacity
	}
	if bufSize < 1 {
		bufSize = 1
	}
	return &kqueueBackend{reg: reg, kq: kq, eventBuf: make([]unix.Kevent_t, bufSize)}, nil
}

func (b *kqueueBackend) changeFilter(h Handle, filter int16, flags uint16) error {
	ev := unix.Kevent_t{
		Ident:  uint64(h),
		Filter: filter,
		Flags:  flags,
	}
	_, err := unix.Kevent(b.kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func (b *kqueueBackend) Register(eh EventHandler, interest EventMask) error {
	h := eh.Handle()
	if err := b.reg.register(h, eh, interest); err != nil {
		return err
	}
	if interest&EventRead != 0 {
		if err := b.changeFilter(h, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE); err != nil {
			b.reg.removeAll(h)
			return WrapError("kevent EVFILT_READ", ErrBackendFatal)
		}
	}
	if interest&EventWrite != 0 {
		if err := b.changeFilter(h, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE); err != nil {
			b.reg.removeAll(h)
			return WrapError("kevent EVFILT_WRITE", ErrBackendFatal)
		}
	}
	return nil
}

func (b *kqueueBackend) RegisterByHandle(Handle, EventHandler, EventMask) error {
	return errRegisterByHandleUnsupported
}

func (b *kqueueBackend) Deregister(eh EventHandler, interest EventMask) {
	h, ok := b.reg.findByHandler(eh)
	if !ok {
		return
	}
	b.DeregisterByHandle(h, interest)
}

// DeregisterByHandle only deletes the kqueue filters for bits that are both
// currently registered and being removed, and only clears the registry entry
// once no interest bits remain -- a handle still registered for EventRead
// after an EventWrite-only deregister keeps its READ filter armed.
func (b *kqueueBackend) DeregisterByHandle(h Handle, interest EventMask) {
	entry, ok := b.reg.lookup(h)
	if !ok {
		return
	}
	b.reg.deregister(h, interest)
	removed := entry.interest & interest
	if removed&EventRead != 0 {
		_ = b.changeFilter(h, unix.EVFILT_READ, unix.EV_DELETE)
	}
	if removed&EventWrite != 0 {
		_ = b.changeFilter(h, unix.EVFILT_WRITE, unix.EV_DELETE)
	}
}

func (b *kqueueBackend) Wait(timeout *time.Duration) ([]ReadyEvent, error) {
	var ts *unix.Timespec
	if timeout != nil {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	n, err := unix.Kevent(b.kq, nil, b.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, WrapError("kevent wait", ErrBackendFatal)
	}
	if n == 0 {
		return nil, nil
	}
	byHandle := map[Handle]EventMask{}
	for i := 0; i < n; i++ {
		raw := b.eventBuf[i]
		h := Handle(raw.Ident)
		switch raw.Filter {
		case unix.EVFILT_READ:
			byHandle[h] |= EventRead
		case unix.EVFILT_WRITE:
			byHandle[h] |= EventWrite
		}
		if raw.Flags&unix.EV_EOF != 0 || raw.Flags&unix.EV_ERROR != 0 {
			byHandle[h] |= EventExcept
		}
	}
	events := make([]ReadyEvent, 0, len(byHandle))
	for h, mask := range byHandle {
		events = append(events, ReadyEvent{Handle: h, Mask: mask})
	}
	return events, nil
}

func (b *kqueueBackend) Close() error {
	return unix.Close(b.kq)
}
