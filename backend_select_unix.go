//go:build !windows

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// fdSetSize is the number of handles addressable by a single unix.FdSet,
// i.e. FD_SETSIZE (1024: 16 int64 words of 64 bits each). select(2) itself
// imposes this ceiling regardless of MaxFDs; registering a handle >=
// fdSetSize fails with ErrBadHandle (the handle is outside this backend's
// addressable range), matching real select() behavior rather than the
// source's MAXFD constant (which assumed a non-standard, recompiled
// FD_SETSIZE).
const fdSetSize = 1024

// selectBackend implements Backend atop select(2). maxHandle is the
// highest handle ever registered; per the source (and spec.md's documented
// open question), it is never lowered on deregister, so select scans a few
// dead slots after a busy connection closes. This is a deliberate,
// documented carry-over, not an oversight.
type selectBackend struct {
	reg       *registry
	readSet   unix.FdSet
	writeSet  unix.FdSet
	exceptSet unix.FdSet
	maxHandle Handle
}

func newSelectBackend(reg *registry) *selectBackend {
	return &selectBackend{reg: reg, maxHandle: InvalidHandle}
}

func fdSetBit(set *unix.FdSet, h Handle) {
	set.Bits[h/64] |= 1 << (uint(h) % 64)
}

func fdClrBit(set *unix.FdSet, h Handle) {
	set.Bits[h/64] &^= 1 << (uint(h) % 64)
}

func fdIsSetBit(set *unix.FdSet, h Handle) bool {
	return set.Bits[h/64]&(1<<(uint(h)%64)) != 0
}

func (b *selectBackend) applyInterest(h Handle, interest EventMask) {
	if interest&EventRead != 0 {
		fdSetBit(&b.readSet, h)
	} else {
		fdClrBit(&b.readSet, h)
	}
	if interest&EventWrite != 0 {
		fdSetBit(&b.writeSet, h)
	} else {
		fdClrBit(&b.writeSet, h)
	}
	if interest&EventExcept != 0 {
		fdSetBit(&b.exceptSet, h)
	} else {
		fdClrBit(&b.exceptSet, h)
	}
}

func (b *selectBackend) Register(eh EventHandler, interest EventMask) error {
	h := eh.Handle()
	if h < 0 || int(h) >= fdSetSize {
		return &HandleError{Handle: h, Cause: ErrBadHandle, Message: "handle exceeds select() FD_SETSIZE"}
	}
	if err := b.reg.register(h, eh, interest); err != nil {
		return err
	}
	b.applyInterest(h, interest)
	if h > b.maxHandle {
		b.maxHandle = h
	}
	return nil
}

func (b *selectBackend) RegisterByHandle(Handle, EventHandler, EventMask) error {
	return errRegisterByHandleUnsupported
}

func (b *selectBackend) Deregister(eh EventHandler, interest EventMask) {
	h, ok := b.reg.findByHandler(eh)
	if !ok {
		return
	}
	b.deregisterHandle(h, interest)
}

func (b *selectBackend) DeregisterByHandle(h Handle, interest EventMask) {
	if h < 0 || int(h) >= fdSetSize {
		return
	}
	b.deregisterHandle(h, interest)
}

// deregisterHandle clears the requested interest bits from the registry and
// re-syncs the FD sets to whatever remains -- zero bits remaining clears all
// three, matching a full removal. maxHandle is intentionally left as-is
// either way; see the type doc comment.
func (b *selectBackend) deregisterHandle(h Handle, interest EventMask) {
	remaining := b.reg.deregister(h, interest)
	b.applyInterest(h, remaining)
}

func (b *selectBackend) Wait(timeout *time.Duration) ([]ReadyEvent, error) {
	rd, wr, ex := b.readSet, b.writeSet, b.exceptSet

	var tv *unix.Timeval
	if timeout != nil {
		t := unix.NsecToTimeval(timeout.Nanoseconds())
		tv = &t
	}

	n, err := unix.Select(int(b.maxHandle)+1, &rd, &wr, &ex, tv)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, WrapError("select", ErrBackendFatal)
	}
	if n == 0 {
		return nil, nil
	}

	events := make([]ReadyEvent, 0, n)
	for h := Handle(0); h <= b.maxHandle; h++ {
		var mask EventMask
		if fdIsSetBit(&rd, h) {
			mask |= EventRead
		}
		if fdIsSetBit(&wr, h) {
			mask |= EventWrite
		}
		if fdIsSetBit(&ex, h) {
			mask |= EventExcept
		}
		if mask != 0 {
			events = append(events, ReadyEvent{Handle: h, Mask: mask})
		}
	}
	return events, nil
}

func (b *selectBackend) Close() error {
	return nil
}
