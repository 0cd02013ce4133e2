//go:build !windows

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollBackend implements Backend atop poll(2), mirroring the source's
// client_[MAXFD] array with an fd=-1 sentinel for free slots and a maxi
// high-water index.
type pollBackend struct {
	reg   *registry
	slots []unix.PollFd // len == capacity; Fd == -1 marks a free slot
	maxi  int           // high-water index; Deregister lowers it when it frees the top slot; -1 if none
}

func newPollBackend(reg *registry, capacity int) *pollBackend {
	slots := make([]unix.PollFd, capacity)
	for i := range slots {
		slots[i].Fd = -1
	}
	return &pollBackend{reg: reg, slots: slots, maxi: -1}
}

func pollEventsOf(interest EventMask) int16 {
	var e int16
	if interest&EventRead != 0 {
		e |= unix.POLLIN
	}
	if interest&EventWrite != 0 {
		e |= unix.POLLOUT
	}
	if interest&EventExcept != 0 {
		e |= unix.POLLPRI
	}
	return e
}

func (b *pollBackend) Register(eh EventHandler, interest EventMask) error {
	h := eh.Handle()
	if err := b.reg.register(h, eh, interest); err != nil {
		return err
	}
	for i := range b.slots {
		if b.slots[i].Fd == -1 {
			b.slots[i] = unix.PollFd{Fd: int32(h), Events: pollEventsOf(interest)}
			if i > b.maxi {
				b.maxi = i
			}
			return nil
		}
	}
	b.reg.removeAll(h)
	return &HandleError{Handle: h, Cause: ErrCapacityExceeded, Message: "poll slot table full"}
}

func (b *pollBackend) RegisterByHandle(Handle, EventHandler, EventMask) error {
	return errRegisterByHandleUnsupported
}

// Deregister removes by handler identity; unlike DeregisterByHandle, this
// correctly scans the full live range (i <= maxi).
func (b *pollBackend) Deregister(eh EventHandler, interest EventMask) {
	h, ok := b.reg.findByHandler(eh)
	if !ok {
		return
	}
	b.removeSlot(h, interest, true)
}

// DeregisterByHandle intentionally reproduces the source's off-by-one: it
// scans i < maxi, one short of the live range, so a handle registered in
// the very last live slot is never found and removed here. See
// DESIGN.md/SPEC_FULL.md §8 item 4 — this asymmetry with Deregister is a
// documented, preserved defect, not an oversight.
func (b *pollBackend) DeregisterByHandle(h Handle, interest EventMask) {
	remaining := b.reg.deregister(h, interest)
	for i := 0; i < b.maxi; i++ {
		if b.slots[i].Fd == int32(h) {
			if remaining == 0 {
				b.slots[i] = unix.PollFd{Fd: -1}
			} else {
				b.slots[i].Events = pollEventsOf(remaining)
			}
			return
		}
	}
}

// removeSlot clears interest from h's registration and, if any bits remain,
// rewrites the slot's Events rather than freeing it; only an emptied
// registration frees the slot (and, if it was the high-water slot, shrinks
// maxi).
func (b *pollBackend) removeSlot(h Handle, interest EventMask, shrinkHighWater bool) {
	remaining := b.reg.deregister(h, interest)
	for i := 0; i <= b.maxi; i++ {
		if b.slots[i].Fd == int32(h) {
			if remaining != 0 {
				b.slots[i].Events = pollEventsOf(remaining)
				return
			}
			b.slots[i] = unix.PollFd{Fd: -1}
			if shrinkHighWater && i == b.maxi {
				for b.maxi >= 0 && b.slots[b.maxi].Fd == -1 {
					b.maxi--
				}
			}
			return
		}
	}
}

func (b *pollBackend) Wait(timeout *time.Duration) ([]ReadyEvent, error) {
	if b.maxi < 0 {
		if timeout == nil {
			return nil, WrapError("poll: no handles registered, would block forever", ErrBackendFatal)
		}
		time.Sleep(*timeout)
		return nil, nil
	}

	ms := -1
	if timeout != nil {
		ms = int(timeout.Milliseconds())
	}

	live := b.slots[:b.maxi+1]
	n, err := unix.Poll(live, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, WrapError("poll", ErrBackendFatal)
	}
	if n == 0 {
		return nil, nil
	}

	events := make([]ReadyEvent, 0, n)
	for i := range live {
		if live[i].Fd == -1 || live[i].Revents == 0 {
			continue
		}
		var mask EventMask
		if live[i].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			mask |= EventRead
		}
		if live[i].Revents&unix.POLLOUT != 0 {
			mask |= EventWrite
		}
		if live[i].Revents&(unix.POLLERR|unix.POLLNVAL|unix.POLLPRI) != 0 {
			mask |= EventExcept
		}
		if mask != 0 {
			events = append(events, ReadyEvent{Handle: Handle(live[i].Fd), Mask: mask})
		}
	}
	return events, nil
}

func (b *pollBackend) Close() error {
	return nil
}
