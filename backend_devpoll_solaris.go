//go:build solaris

package reactor

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// /dev/poll's ioctl interface isn't exposed by golang.org/x/sys/unix, so the
// handful of constants and the dvpoll/pollfd wire layout are reproduced here
// directly from <sys/devpoll.h>, matching devpoll_reactor_impl.cpp exactly.
const (
	dpIOC   = 0xD0 << 8
	dpPOLL  = dpIOC | 1
	dpISPOL = dpIOC | 2
)

type dvpoll struct {
	dpFds     *unix.PollFd
	dpNfds    int32
	_         [4]byte // alignment padding, matches struct dvpoll on amd64
	dpTimeout int32
}

// devpollBackend implements Backend atop /dev/poll, matching the source's
// rewrite-the-whole-set contract: every Register/Deregister closes and
// reopens the device, then writes the full live pollfd array to it, rather
// than performing incremental updates (the source's buf_[MAXFD] + write()
// pattern). This trades register/deregister cost for a simpler wait path,
// exactly as the source does.
type devpollBackend struct {
	reg   *registry
	fd    int
	slots []unix.PollFd // live registrations, dense (no -1 sentinels)
}

func newDevpollBackend(reg *registry) (*devpollBackend, error) {
	fd, err := unix.Open("/dev/poll", unix.O_RDWR, 0)
	if err != nil {
		return nil, WrapError("open /dev/poll", ErrBackendFatal)
	}
	return &devpollBackend{reg: reg, fd: fd}, nil
}

func devpollEventsOf(interest EventMask) int16 {
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

// sync rewrites the device's registration set from b.slots, per the
// source's approach: close, reopen, write() the whole array.
func (b *devpollBackend) sync() error {
	_ = unix.Close(b.fd)
	fd, err := unix.Open("/dev/poll", unix.O_RDWR, 0)
	if err != nil {
		return err
	}
	b.fd = fd
	if len(b.slots) == 0 {
		return nil
	}
	_, err = unix.Write(fd, unsafe.Slice((*byte)(unsafe.Pointer(&b.slots[0])), len(b.slots)*int(unsafe.Sizeof(unix.PollFd{}))))
	return err
}

func (b *devpollBackend) Register(eh EventHandler, interest EventMask) error {
	h := eh.Handle()
	if err := b.reg.register(h, eh, interest); err != nil {
		return err
	}
	b.slots = append(b.slots, unix.PollFd{Fd: int32(h), Events: devpollEventsOf(interest)})
	if err := b.sync(); err != nil {
		b.reg.removeAll(h)
		return WrapError("devpoll sync", ErrBackendFatal)
	}
	return nil
}

func (b *devpollBackend) RegisterByHandle(Handle, EventHandler, EventMask) error {
	return errRegisterByHandleUnsupported
}

// removeSlot drops h's slot entirely when remaining is zero; otherwise it
// rewrites the slot's Events to reflect the surviving interest bits rather
// than tearing down the whole registration.
func (b *devpollBackend) removeSlot(h Handle, remaining EventMask) {
	for i := range b.slots {
		if b.slots[i].Fd == int32(h) {
			if remaining != 0 {
				b.slots[i].Events = devpollEventsOf(remaining)
				return
			}
			b.slots = append(b.slots[:i], b.slots[i+1:]...)
			return
		}
	}
}

func (b *devpollBackend) Deregister(eh EventHandler, interest EventMask) {
	h, ok := b.reg.findByHandler(eh)
	if !ok {
		return
	}
	remaining := b.reg.deregister(h, interest)
	b.removeSlot(h, remaining)
	_ = b.sync()
}

func (b *devpollBackend) DeregisterByHandle(h Handle, interest EventMask) {
	remaining := b.reg.deregister(h, interest)
	b.removeSlot(h, remaining)
	_ = b.sync()
}

func (b *devpollBackend) Wait(timeout *time.Duration) ([]ReadyEvent, error) {
	if len(b.slots) == 0 {
		if timeout == nil {
			return nil, WrapError("devpoll: no handles registered, would block forever", ErrBackendFatal)
		}
		time.Sleep(*timeout)
		return nil, nil
	}

	ms := int32(-1)
	if timeout != nil {
		ms = int32(timeout.Milliseconds())
	}

	out := make([]unix.PollFd, len(b.slots))
	req := dvpoll{dpFds: &out[0], dpNfds: int32(len(out)), dpTimeout: ms}

	n, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(b.fd), dpPOLL, uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		if errno == unix.EINTR {
			return nil, nil
		}
		return nil, WrapError("devpoll ioctl DP_POLL", ErrBackendFatal)
	}
	if n == 0 {
		return nil, nil
	}

	events := make([]ReadyEvent, 0, n)
	for i := 0; i < int(n); i++ {
		var mask EventMask
		if out[i].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			mask |= EventRead
		}
		if out[i].Revents&unix.POLLOUT != 0 {
			mask |= EventWrite
		}
		if out[i].Revents&(unix.POLLERR|unix.POLLPRI) != 0 {
			mask |= EventExcept
		}
		if mask != 0 {
			events = append(events, ReadyEvent{Handle: Handle(out[i].Fd), Mask: mask})
		}
	}
	return events, nil
}

func (b *devpollBackend) Close() error {
	return unix.Close(b.fd)
}
