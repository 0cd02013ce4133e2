//go:build windows

package reactor

// newBackend has no Windows implementation: every backend in this port
// (select, poll, epoll, devpoll, kqueue) is POSIX readiness-notification
// machinery, and IOCP's completion-based model doesn't fit the Backend
// contract without a substantially different dispatch loop. Windows support
// is out of scope for this reactor, matching the source (a POSIX-only
// codebase).
func newBackend(BackendKind, *registry, int) (Backend, error) {
	return nil, WrapError("reactor: no backend implementation for windows", ErrBackendFatal)
}
