package reactor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerWheel_RejectsBelowMinExpire(t *testing.T) {
	w, err := NewTimerWheel(nil, WithMinExpire(500*time.Millisecond))
	require.NoError(t, err)
	err = w.Add(100*time.Millisecond, TimerT1)
	require.Error(t, err)
}

func TestTimerWheel_AdvanceFiresAndRemovesAllExpired(t *testing.T) {
	var mu sync.Mutex
	var fired []TimerKind

	w, err := NewTimerWheel(func(kind TimerKind) {
		mu.Lock()
		fired = append(fired, kind)
		mu.Unlock()
	}, WithTickInterval(10*time.Millisecond), WithMinExpire(time.Millisecond))
	require.NoError(t, err)

	// Three timers all due on the same tick -- this is exactly the
	// scenario the source's mid-iteration erase can skip one of; advance()
	// must fire all three, not two.
	require.NoError(t, w.Add(10*time.Millisecond, TimerA))
	require.NoError(t, w.Add(10*time.Millisecond, TimerB))
	require.NoError(t, w.Add(10*time.Millisecond, TimerD))

	w.advance()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []TimerKind{TimerA, TimerB, TimerD}, fired)
	assert.Equal(t, 0, w.Len())
}

func TestTimerWheel_NonExpiredSurvivesAdvance(t *testing.T) {
	w, err := NewTimerWheel(nil, WithTickInterval(10*time.Millisecond), WithMinExpire(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Add(100*time.Millisecond, TimerG))

	w.advance()
	assert.Equal(t, 1, w.Len())
}

func TestTimerWheel_RunFiresAfterInitialDelayAndTick(t *testing.T) {
	fired := make(chan TimerKind, 1)
	w, err := NewTimerWheel(func(kind TimerKind) {
		fired <- kind
	}, WithInitialDelay(5*time.Millisecond), WithTickInterval(5*time.Millisecond), WithMinExpire(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Add(5*time.Millisecond, TimerE))

	w.Run()
	defer w.Stop()

	select {
	case kind := <-fired:
		assert.Equal(t, TimerE, kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}
