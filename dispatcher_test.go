package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend is a deterministic, in-memory Backend double: Wait
// returns one scripted batch of ReadyEvent per call. It lets the
// ordering/self-destruction invariant be tested without a real kernel
// descriptor.
type scriptedBackend struct {
	reg     *registry
	batches [][]ReadyEvent
	idx     int
	closed  bool
}

func (b *scriptedBackend) Register(h EventHandler, interest EventMask) error {
	return b.reg.register(h.Handle(), h, interest)
}
func (b *scriptedBackend) RegisterByHandle(Handle, EventHandler, EventMask) error {
	return errRegisterByHandleUnsupported
}
func (b *scriptedBackend) Deregister(h EventHandler, interest EventMask) {
	if handle, ok := b.reg.findByHandler(h); ok {
		b.reg.deregister(handle, interest)
	}
}
func (b *scriptedBackend) DeregisterByHandle(h Handle, interest EventMask) { b.reg.deregister(h, interest) }
func (b *scriptedBackend) Wait(*time.Duration) ([]ReadyEvent, error) {
	if b.idx >= len(b.batches) {
		return nil, nil
	}
	batch := b.batches[b.idx]
	b.idx++
	return batch, nil
}
func (b *scriptedBackend) Close() error { b.closed = true; return nil }

type orderHandler struct {
	handle     Handle
	calls      []EventMask
	destroyOn  EventMask
	dispatcher *Dispatcher
}

func (h *orderHandler) Handle() Handle { return h.handle }
func (h *orderHandler) OnEvent(_ Handle, mask EventMask) {
	h.calls = append(h.calls, mask)
	if mask == h.destroyOn {
		h.dispatcher.DeregisterHandler(h, EventRead|EventWrite|EventExcept)
	}
}

func newTestDispatcher(t *testing.T, batches [][]ReadyEvent) (*Dispatcher, *scriptedBackend) {
	t.Helper()
	reg := newRegistry(16)
	backend := &scriptedBackend{reg: reg, batches: batches}
	d := &Dispatcher{backend: backend, reg: reg, logger: defaultLogger()}
	return d, backend
}

func TestDispatcher_OrderIsWriteReadExcept(t *testing.T) {
	h := &orderHandler{handle: 1}
	d, _ := newTestDispatcher(t, [][]ReadyEvent{
		{{Handle: 1, Mask: EventRead | EventWrite | EventExcept}},
	})
	h.dispatcher = d
	require.NoError(t, d.RegisterHandler(h, EventRead|EventWrite|EventExcept))

	require.NoError(t, d.RunOnce(nil))
	assert.Equal(t, []EventMask{EventWrite, EventRead, EventExcept}, h.calls)
}

func TestDispatcher_NoCallbackAfterSelfDestructSameWakeup(t *testing.T) {
	h := &orderHandler{handle: 1, destroyOn: EventWrite}
	d, _ := newTestDispatcher(t, [][]ReadyEvent{
		{{Handle: 1, Mask: EventRead | EventWrite | EventExcept}},
	})
	h.dispatcher = d
	require.NoError(t, d.RegisterHandler(h, EventRead|EventWrite|EventExcept))

	require.NoError(t, d.RunOnce(nil))
	// Only WRITE should have been delivered: the handler deregistered
	// itself on WRITE, so READ and EXCEPT must not follow in this wakeup.
	assert.Equal(t, []EventMask{EventWrite}, h.calls)

	_, ok := d.reg.lookup(1)
	assert.False(t, ok)
}
