package agents

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"berth/internal/api"
	"berth/internal/events"
)

type lifecycleRecorder struct {
	mu     sync.Mutex
	events []api.LifecycleEvent
}

func (r *lifecycleRecorder) Handle(_ context.Context, ev api.LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *lifecycleRecorder) snapshot() []api.LifecycleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]api.LifecycleEvent, len(r.events))
	copy(out, r.events)
	return out
}

func newTestDirectory(t *testing.T) (*Directory, *lifecycleRecorder) {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	rec := &lifecycleRecorder{}
	events.Subscribe(bus, events.LifecycleTopic, rec)

	dir := NewDirectory(bus)
	dir.SetNameResolver(func(sid string) string { return "name-" + sid })
	return dir, rec
}

// settle waits until the recorder holds n events and stays there briefly.
func settle(t *testing.T, rec *lifecycleRecorder, n int) []api.LifecycleEvent {
	t.Helper()
	require.Eventually(t, func() bool { return len(rec.snapshot()) >= n }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	return rec.snapshot()
}

func TestMarkOnline_EmitsOnlyOnEdge(t *testing.T) {
	dir, rec := newTestDirectory(t)

	dir.MarkOnline("s1")
	for i := 0; i < 10; i++ {
		dir.MarkOnline("s1")
	}

	got := settle(t, rec, 1)
	require.Len(t, got, 1)
	assert.Equal(t, api.LifecycleAfterStarted, got[0].Lifecycle)
	assert.Equal(t, api.StatusRunning, got[0].Status)
	assert.Equal(t, "name-s1", got[0].Name)
	assert.True(t, dir.IsOnline("s1"))
}

func TestMarkOffline_EmitsOnlyOnEdge(t *testing.T) {
	dir, rec := newTestDirectory(t)

	dir.MarkOffline("s1") // never online: no event
	dir.MarkOnline("s1")
	dir.MarkOffline("s1")
	dir.MarkOffline("s1")

	got := settle(t, rec, 2)
	require.Len(t, got, 2)
	assert.Equal(t, api.LifecycleAfterStopped, got[1].Lifecycle)
	assert.Equal(t, api.StatusStopped, got[1].Status)
	assert.False(t, dir.IsOnline("s1"))
}

func TestSessionClose_IsImplicitOffline(t *testing.T) {
	dir, rec := newTestDirectory(t)

	session := dir.Attach("s1")
	assert.True(t, dir.IsOnline("s1"))

	session.Close("read tcp: connection reset")
	session.Close("again")

	got := settle(t, rec, 2)
	require.Len(t, got, 2)
	assert.Equal(t, api.LifecycleExceptionOffline, got[1].Lifecycle)
	assert.Equal(t, "read tcp: connection reset", got[1].Cause)
	assert.False(t, dir.IsOnline("s1"))
}

func TestSessionShutdown_IsExplicitOffline(t *testing.T) {
	dir, rec := newTestDirectory(t)

	session := dir.Attach("s1")
	session.Shutdown()
	session.Close("eof after shutdown")

	got := settle(t, rec, 2)
	require.Len(t, got, 2)
	assert.Equal(t, api.LifecycleAfterStopped, got[1].Lifecycle)
	assert.Equal(t, CauseShutdown, got[1].Cause)
}

func TestStaleSessionDoesNotKnockOutReconnect(t *testing.T) {
	dir, rec := newTestDirectory(t)

	old := dir.Attach("s1")
	fresh := dir.Attach("s1")
	assert.NotEqual(t, old.ID(), fresh.ID())

	old.Close("old transport closed")
	assert.True(t, dir.IsOnline("s1"), "newer session must keep the sid online")

	fresh.Close("")
	assert.False(t, dir.IsOnline("s1"))

	got := settle(t, rec, 2)
	require.Len(t, got, 2)
	assert.Equal(t, api.LifecycleAfterStarted, got[0].Lifecycle)
	assert.Equal(t, api.LifecycleExceptionOffline, got[1].Lifecycle)
	assert.Equal(t, CauseSessionLost, got[1].Cause)
}

func TestOnlineSnapshotAndTouch(t *testing.T) {
	dir, _ := newTestDirectory(t)

	session := dir.Attach("s1")
	dir.MarkOnline("s2")

	before := dir.Online()
	require.Len(t, before, 2)

	time.Sleep(5 * time.Millisecond)
	session.Heartbeat()

	for _, info := range dir.Online() {
		if info.SID == "s1" {
			assert.Equal(t, session.ID(), info.SessionID)
			assert.True(t, info.LastSeen.After(info.Since))
		}
	}
}

func TestConcurrentMarkOnlineEmitsOnce(t *testing.T) {
	dir, rec := newTestDirectory(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dir.MarkOnline("s1")
		}()
	}
	wg.Wait()

	assert.Len(t, settle(t, rec, 1), 1)
}
