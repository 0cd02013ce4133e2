package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	handle Handle
}

func (f *fakeHandler) Handle() Handle                { return f.handle }
func (f *fakeHandler) OnEvent(Handle, EventMask) {}

func TestRegistry_RegisterLookupDeregister(t *testing.T) {
	r := newRegistry(16)
	h := &fakeHandler{handle: 3}

	require.NoError(t, r.register(h.handle, h, EventRead))

	entry, ok := r.lookup(3)
	require.True(t, ok)
	assert.Equal(t, EventRead, entry.interest)
	assert.Same(t, h, entry.handler)

	found, ok := r.findByHandler(h)
	require.True(t, ok)
	assert.Equal(t, Handle(3), found)

	remaining := r.deregister(3, EventRead)
	assert.Equal(t, EventMask(0), remaining)
	_, ok = r.lookup(3)
	assert.False(t, ok)
}

func TestRegistry_DeregisterPartialInterestKeepsEntry(t *testing.T) {
	r := newRegistry(16)
	h := &fakeHandler{handle: 5}
	require.NoError(t, r.register(h.handle, h, EventRead|EventWrite))

	remaining := r.deregister(5, EventWrite)
	assert.Equal(t, EventRead, remaining)

	entry, ok := r.lookup(5)
	require.True(t, ok, "entry must survive while interest bits remain")
	assert.Equal(t, EventRead, entry.interest)
	assert.Same(t, h, entry.handler)

	remaining = r.deregister(5, EventRead)
	assert.Equal(t, EventMask(0), remaining)
	_, ok = r.lookup(5)
	assert.False(t, ok)
}

func TestRegistry_CapacityExceeded(t *testing.T) {
	r := newRegistry(4)
	h := &fakeHandler{handle: 10}
	err := r.register(h.handle, h, EventRead)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestRegistry_ConflictingOwner(t *testing.T) {
	r := newRegistry(4)
	a := &fakeHandler{handle: 1}
	b := &fakeHandler{handle: 1}
	require.NoError(t, r.register(1, a, EventRead))
	err := r.register(1, b, EventRead)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadHandle)
}

func TestRegistry_ReRegisterSameHandlerWidensInterest(t *testing.T) {
	r := newRegistry(4)
	a := &fakeHandler{handle: 1}
	require.NoError(t, r.register(1, a, EventRead))
	require.NoError(t, r.register(1, a, EventRead|EventWrite))
	entry, ok := r.lookup(1)
	require.True(t, ok)
	assert.Equal(t, EventRead|EventWrite, entry.interest)
}
