// Package reactor is a single-threaded, readiness-driven I/O core for a SIP
// transport layer.
//
// # Architecture
//
// A Dispatcher owns a pluggable Backend (select, poll, epoll, devpoll, or
// kqueue, chosen automatically per GOOS or forced via WithBackend) and a
// registry mapping Handle to EventHandler. Three EventHandler
// implementations are provided: StreamAcceptor (accepts TCP connections),
// StreamConnection (frames SIP messages off a connected TCP socket), and
// DatagramHandler (receives UDP datagrams). A separate TimerWheel drives
// RFC 3261 retransmission timers off its own periodic tick, independent of
// the Dispatcher's wait/dispatch loop.
//
// # Platform support
//
//   - Linux: epoll (default), plus select and poll.
//   - Darwin/BSD: kqueue (default), plus select and poll.
//   - Solaris: /dev/poll (default), plus select and poll.
//   - Everything else POSIX-ish: poll.
//   - Windows: unsupported (see backend_factory_windows.go).
//
// # Concurrency
//
// Dispatcher.Run, RegisterHandler/DeregisterHandler, and every EventHandler
// callback execute on a single goroutine -- the one that calls Run (or
// repeatedly calls RunOnce). Close may be called from another goroutine to
// stop a running Dispatcher. TimerWheel runs its own goroutine, independent
// of the Dispatcher, and is safe to Add to concurrently.
//
// # Usage
//
//	d, err := reactor.NewDispatcher(reactor.WithBackend(reactor.BackendEpoll))
//	if err != nil { ... }
//	d.RegisterTCPCallbacks(onSIPMessage, onConnState)
//	acceptor, err := reactor.NewStreamAcceptor(reactor.NewInetAddr(5060), d)
//	if err != nil { ... }
//	defer acceptor.Close()
//	if err := d.Run(ctx); err != nil { ... }
package reactor
