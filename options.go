package reactor

import "time"

// dispatcherOptions holds configuration resolved from DispatcherOption values.
type dispatcherOptions struct {
	backend          BackendKind
	logger           *Logger
	maxHandles       int
	readChunkSize    int
	fatalPropagation bool
}

// DispatcherOption configures a Dispatcher at construction time.
type DispatcherOption interface {
	applyDispatcher(*dispatcherOptions) error
}

type dispatcherOptionFunc func(*dispatcherOptions) error

func (f dispatcherOptionFunc) applyDispatcher(o *dispatcherOptions) error { return f(o) }

// WithBackend selects the demultiplexer backend kind. Defaults to
// BackendAuto, which picks the best available backend for the runtime GOOS.
func WithBackend(kind BackendKind) DispatcherOption {
	return dispatcherOptionFunc(func(o *dispatcherOptions) error {
		o.backend = kind
		return nil
	})
}

// WithLogger sets the structured logger used by the Dispatcher and the
// handlers it constructs. Defaults to the package-level default logger.
func WithLogger(l *Logger) DispatcherOption {
	return dispatcherOptionFunc(func(o *dispatcherOptions) error {
		o.logger = l
		return nil
	})
}

// WithMaxHandles overrides MaxFDs, the capacity of the handle-indexed
// registry shared by every backend (and the size of poll's slot table).
// Defaults to MaxFDs.
func WithMaxHandles(n int) DispatcherOption {
	return dispatcherOptionFunc(func(o *dispatcherOptions) error {
		o.maxHandles = n
		return nil
	})
}

// WithReadChunkSize overrides ReadChunk, the number of bytes requested per
// read() call in the stream connection handler. Defaults to ReadChunk.
func WithReadChunkSize(n int) DispatcherOption {
	return dispatcherOptionFunc(func(o *dispatcherOptions) error {
		o.readChunkSize = n
		return nil
	})
}

// WithFatalPropagation controls whether Dispatcher.Run returns on a
// backend-fatal error (true) or logs it and keeps running (false, default).
func WithFatalPropagation(enabled bool) DispatcherOption {
	return dispatcherOptionFunc(func(o *dispatcherOptions) error {
		o.fatalPropagation = enabled
		return nil
	})
}

func resolveDispatcherOptions(opts []DispatcherOption) (*dispatcherOptions, error) {
	cfg := &dispatcherOptions{
		backend:       BackendAuto,
		logger:        defaultLogger(),
		maxHandles:    MaxFDs,
		readChunkSize: ReadChunk,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyDispatcher(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// timerWheelOptions holds configuration resolved from TimerWheelOption values.
type timerWheelOptions struct {
	tickInterval time.Duration
	initialDelay time.Duration
	minExpire    time.Duration
	logger       *Logger
}

// TimerWheelOption configures a TimerWheel at construction time.
type TimerWheelOption interface {
	applyTimerWheel(*timerWheelOptions) error
}

type timerWheelOptionFunc func(*timerWheelOptions) error

func (f timerWheelOptionFunc) applyTimerWheel(o *timerWheelOptions) error { return f(o) }

// WithTickInterval overrides the wheel's step duration. Defaults to StepMS
// (250ms). Tests override this to avoid waiting on wall-clock production
// values.
func WithTickInterval(d time.Duration) TimerWheelOption {
	return timerWheelOptionFunc(func(o *timerWheelOptions) error {
		o.tickInterval = d
		return nil
	})
}

// WithInitialDelay overrides the delay before the first tick. Defaults to
// 1000ms.
func WithInitialDelay(d time.Duration) TimerWheelOption {
	return timerWheelOptionFunc(func(o *timerWheelOptions) error {
		o.initialDelay = d
		return nil
	})
}

// WithMinExpire overrides MinExpireMS, the minimum duration Add will accept.
// Defaults to 500ms.
func WithMinExpire(d time.Duration) TimerWheelOption {
	return timerWheelOptionFunc(func(o *timerWheelOptions) error {
		o.minExpire = d
		return nil
	})
}

// WithTimerLogger sets the structured logger used by the TimerWheel.
func WithTimerLogger(l *Logger) TimerWheelOption {
	return timerWheelOptionFunc(func(o *timerWheelOptions) error {
		o.logger = l
		return nil
	})
}

func resolveTimerWheelOptions(opts []TimerWheelOption) (*timerWheelOptions, error) {
	cfg := &timerWheelOptions{
		tickInterval: StepMS,
		initialDelay: time.Second,
		minExpire:    MinExpireMS,
		logger:       defaultLogger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyTimerWheel(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
