package reactor

import (
	"sync"
	"time"
)

// TimerKind tags one of the RFC 3261 retransmission timers a SingleTimer
// represents.
type TimerKind int

const (
	TimerT1 TimerKind = iota
	TimerT2
	TimerT4
	TimerA
	TimerB
	TimerD
	TimerE
	TimerF
	TimerG
	TimerH
	TimerI
	TimerJ
	TimerK
)

// FireFunc is invoked when a timer expires.
type FireFunc func(kind TimerKind)

// singleTimer is one entry in the wheel: remaining time and the kind to
// report on fire.
type singleTimer struct {
	remaining time.Duration
	kind      TimerKind
}

// TimerWheel is a millisecond-resolution timer list driven by a single
// periodic tick, mirroring SimpleTimer in the source. Unlike the source,
// which arms a POSIX interval timer and advances/fires entries from within
// a signal handler (a reentrancy hazard it works around by hand), this port
// advances and fires entries from an ordinary ticker goroutine under a
// mutex -- there is no signal-handler context here, so the hazard the
// source's mListener comment describes doesn't arise; see SPEC_FULL.md
// §5.6.
type TimerWheel struct {
	mu      sync.Mutex
	entries []singleTimer
	onFire  FireFunc
	logger  *Logger

	tickInterval time.Duration
	initialDelay time.Duration
	minExpire    time.Duration

	stop chan struct{}
	once sync.Once
}

// NewTimerWheel constructs a TimerWheel. onFire is invoked (from the
// wheel's internal goroutine, once Run is called) for every timer that
// expires.
func NewTimerWheel(onFire FireFunc, opts ...TimerWheelOption) (*TimerWheel, error) {
	cfg, err := resolveTimerWheelOptions(opts)
	if err != nil {
		return nil, err
	}
	return &TimerWheel{
		onFire:       onFire,
		logger:       cfg.logger,
		tickInterval: cfg.tickInterval,
		initialDelay: cfg.initialDelay,
		minExpire:    cfg.minExpire,
		stop:         make(chan struct{}),
	}, nil
}

// Add appends a new timer with the given duration and kind. Rejects
// durations below the configured minimum (MinExpireMS by default).
func (w *TimerWheel) Add(d time.Duration, kind TimerKind) error {
	if d < w.minExpire {
		return &HandleError{Handle: InvalidHandle, Cause: ErrProtocolFatal, Message: "timer duration below MinExpireMS"}
	}
	w.mu.Lock()
	w.entries = append(w.entries, singleTimer{remaining: d, kind: kind})
	w.mu.Unlock()
	return nil
}

// Len returns the number of live (unfired) timers.
func (w *TimerWheel) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// advance subtracts the wheel's step from every live entry, firing (and
// removing) those that reach zero. Building the next-generation slice
// functionally, rather than mutating the slice in place while iterating
// forward, avoids the source's documented skip-one-on-removal defect (the
// source's mListener erases mid-iteration, which can skip the entry that
// slides into the erased slot).
func (w *TimerWheel) advance() {
	w.mu.Lock()
	if len(w.entries) == 0 {
		w.mu.Unlock()
		return
	}
	next := w.entries[:0:0]
	var fired []singleTimer
	for _, e := range w.entries {
		e.remaining -= w.tickInterval
		if e.remaining <= 0 {
			fired = append(fired, e)
		} else {
			next = append(next, e)
		}
	}
	w.entries = next
	w.mu.Unlock()

	for _, e := range fired {
		if w.onFire != nil {
			w.onFire(e.kind)
		}
	}
}

// Run starts the periodic tick: an initial delay, then a recurring tick
// every tickInterval. Run itself does not block the caller -- it starts its
// own goroutine -- but that goroutine mirrors the source's "block while the
// timer list is non-empty" contract by exiting on its own the moment
// advance() empties the entry list, rather than ticking forever; Stop is
// only needed to halt it early. See DESIGN.md for why this goroutine-exits
// form, rather than a literally caller-blocking Run, is the idiomatic Go
// reading of that contract.
func (w *TimerWheel) Run() {
	go func() {
		select {
		case <-time.After(w.initialDelay):
		case <-w.stop:
			return
		}
		w.advance()
		if w.Len() == 0 {
			return
		}

		ticker := time.NewTicker(w.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.advance()
				if w.Len() == 0 {
					return
				}
			case <-w.stop:
				return
			}
		}
	}()
}

// Stop halts the wheel's goroutine. Safe to call multiple times.
func (w *TimerWheel) Stop() {
	w.once.Do(func() {
		close(w.stop)
	})
}
