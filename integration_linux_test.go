//go:build linux

package reactor

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise the real epoll backend against loopback sockets, as
// promised in SPEC_FULL.md §7. They avoid fixed ports (binding to :0 isn't
// available through InetAddr, so pickPort lets the OS choose a free port via
// a throwaway listener, closes it, and reuses that port number; there is no
// retry on EADDRINUSE) and poll with a short RunOnce timeout rather than
// sleeping blindly.

func pickPort(t *testing.T) uint16 {
	t.Helper()
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(l.Addr().(*net.TCPAddr).Port)
	require.NoError(t, l.Close())
	return port
}

func pumpUntil(t *testing.T, d *Dispatcher, cond func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	step := 10 * time.Millisecond
	for time.Now().Before(deadline) {
		require.NoError(t, d.RunOnce(&step))
		if cond() {
			return
		}
	}
	t.Fatal("condition not met before timeout")
}

func TestIntegration_TCPAcceptFrameAndDeliver(t *testing.T) {
	d, err := NewDispatcher(WithBackend(BackendEpoll))
	require.NoError(t, err)
	defer d.Close()

	var mu sync.Mutex
	var received [][]byte
	d.RegisterTCPCallbacks(func(conn *StreamConn, msg []byte) {
		mu.Lock()
		received = append(received, append([]byte(nil), msg...))
		mu.Unlock()
	}, nil)

	port := pickPort(t)
	acceptor, err := NewStreamAcceptor(NewInetAddr(port), d)
	require.NoError(t, err)
	defer acceptor.Close()

	cliConn, err := net.Dial("tcp4", "127.0.0.1:"+strconv.Itoa(int(port)))
	require.NoError(t, err)
	defer cliConn.Close()

	msg := "INVITE sip:bob@example.com SIP/2.0\r\nContent-Length: 5\r\n\r\nhello"
	_, err = cliConn.Write([]byte(msg))
	require.NoError(t, err)

	pumpUntil(t, d, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 5*time.Second)

	mu.Lock()
	assert.Equal(t, msg, string(received[0]))
	mu.Unlock()
}

func TestIntegration_TCPPeerCloseReportsState(t *testing.T) {
	d, err := NewDispatcher(WithBackend(BackendEpoll))
	require.NoError(t, err)
	defer d.Close()

	var mu sync.Mutex
	var states []TCPState
	d.RegisterTCPCallbacks(nil, func(conn *StreamConn, state TCPState) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	})

	port := pickPort(t)
	acceptor, err := NewStreamAcceptor(NewInetAddr(port), d)
	require.NoError(t, err)
	defer acceptor.Close()

	cliConn, err := net.Dial("tcp4", "127.0.0.1:"+strconv.Itoa(int(port)))
	require.NoError(t, err)
	require.NoError(t, cliConn.Close())

	pumpUntil(t, d, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 1
	}, 5*time.Second)

	mu.Lock()
	assert.Equal(t, TCPStateClose, states[0])
	mu.Unlock()
}

func TestIntegration_UDPDatagramDelivery(t *testing.T) {
	d, err := NewDispatcher(WithBackend(BackendEpoll))
	require.NoError(t, err)
	defer d.Close()

	var mu sync.Mutex
	var gotPort uint16
	var gotMsg []byte
	d.RegisterUDPCallbacks(func(peerPort uint16, peerIPv4 [4]byte, msg []byte) {
		mu.Lock()
		gotPort = peerPort
		gotMsg = append([]byte(nil), msg...)
		mu.Unlock()
	}, nil)

	port := pickPort(t)
	handler, err := NewDatagramHandler(NewInetAddr(port), d)
	require.NoError(t, err)
	defer handler.Close()

	cliConn, err := net.Dial("udp4", "127.0.0.1:"+strconv.Itoa(int(port)))
	require.NoError(t, err)
	defer cliConn.Close()

	payload := "OPTIONS sip:carol@chicago.com SIP/2.0\r\nContent-Length: 0\r\n\r\n"
	_, err = cliConn.Write([]byte(payload))
	require.NoError(t, err)

	pumpUntil(t, d, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotMsg != nil
	}, 5*time.Second)

	mu.Lock()
	assert.Equal(t, payload, string(gotMsg))
	assert.NotZero(t, gotPort)
	mu.Unlock()
}

func TestIntegration_TimerWheelIndependentOfDispatcher(t *testing.T) {
	d, err := NewDispatcher(WithBackend(BackendEpoll))
	require.NoError(t, err)
	defer d.Close()

	fired := make(chan TimerKind, 1)
	w, err := NewTimerWheel(func(kind TimerKind) {
		fired <- kind
	}, WithInitialDelay(5*time.Millisecond), WithTickInterval(5*time.Millisecond), WithMinExpire(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Add(5*time.Millisecond, TimerF))
	w.Run()
	defer w.Stop()

	select {
	case kind := <-fired:
		assert.Equal(t, TimerF, kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire independently of dispatcher loop")
	}
}
