package reactor

import "sync/atomic"

// DispatcherState represents the lifecycle of a Dispatcher.
//
//	StateNew -> StateRunning   [Run()]
//	StateRunning -> StateClosed [Close()]
//	StateNew -> StateClosed     [Close() before Run()]
//
// Close() is the only transition expected to race with Run() (e.g. a signal
// handler calling Close() from a different goroutine than the one blocked in
// Run()); every other method assumes single-threaded use, per the
// reactor's concurrency model.
type DispatcherState uint32

const (
	StateNew DispatcherState = iota
	StateRunning
	StateClosed
)

func (s DispatcherState) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateRunning:
		return "Running"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// fastState is a small atomic state holder, used so Close() can be called
// safely from a goroutine other than the one running Dispatcher.Run.
type fastState struct {
	v atomic.Uint32
}

func (s *fastState) load() DispatcherState {
	return DispatcherState(s.v.Load())
}

func (s *fastState) store(state DispatcherState) {
	s.v.Store(uint32(state))
}

func (s *fastState) tryTransition(from, to DispatcherState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
