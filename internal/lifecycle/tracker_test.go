package lifecycle

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"berth/internal/api"
)

type fakeLiveness struct {
	online sync.Map
}

func (f *fakeLiveness) IsOnline(sid string) bool {
	_, ok := f.online.Load(sid)
	return ok
}

func (f *fakeLiveness) set(sid string, online bool) {
	if online {
		f.online.Store(sid, true)
	} else {
		f.online.Delete(sid)
	}
}

func TestTracker_AddStartingIsTestAndSet(t *testing.T) {
	tr := NewTracker(nil)

	assert.True(t, tr.AddStarting("s1"))
	assert.False(t, tr.AddStarting("s1"))

	tr.RemoveStarting("s1")
	tr.RemoveStarting("s1")
	assert.True(t, tr.AddStarting("s1"))
}

func TestTracker_AddStoppingIsTestAndSet(t *testing.T) {
	tr := NewTracker(nil)

	assert.True(t, tr.AddStopping("s1"))
	assert.False(t, tr.AddStopping("s1"))
	assert.True(t, tr.AddStopping("s2"))
}

func TestTracker_ConcurrentAddStartingHasOneWinner(t *testing.T) {
	tr := NewTracker(nil)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.AddStarting("s1") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestTracker_Status(t *testing.T) {
	live := &fakeLiveness{}
	tr := NewTracker(live)

	assert.Equal(t, api.StatusStopped, tr.Status("s1"))

	require.True(t, tr.AddStarting("s1"))
	assert.Equal(t, api.StatusStarting, tr.Status("s1"))

	// Online while still guarded must not read as RUNNING.
	live.set("s1", true)
	assert.Equal(t, api.StatusStarting, tr.Status("s1"))

	tr.RemoveStarting("s1")
	assert.Equal(t, api.StatusRunning, tr.Status("s1"))

	require.True(t, tr.AddStopping("s1"))
	assert.Equal(t, api.StatusStopping, tr.Status("s1"))

	live.set("s1", false)
	assert.Equal(t, api.StatusStopping, tr.Status("s1"))

	tr.RemoveStopping("s1")
	assert.Equal(t, api.StatusStopped, tr.Status("s1"))
}

func TestTracker_Pending(t *testing.T) {
	tr := NewTracker(nil)
	assert.False(t, tr.HasPending())
	assert.False(t, tr.IsStartingOrStopping("s1"))

	tr.AddStopping("s1")
	assert.True(t, tr.HasPending())
	assert.True(t, tr.IsStartingOrStopping("s1"))
	assert.True(t, tr.IsStopping("s1"))
	assert.False(t, tr.IsStarting("s1"))

	tr.RemoveStopping("s1")
	assert.False(t, tr.HasPending())
}

func TestTracker_ExpiredAndRelease(t *testing.T) {
	tr := NewTracker(nil)
	tr.AddStarting("old")
	tr.AddStopping("older")

	time.Sleep(20 * time.Millisecond)
	tr.AddStarting("fresh")

	expired := tr.Expired(10 * time.Millisecond)
	require.Len(t, expired, 2)

	bySID := map[string]Guard{}
	for _, g := range expired {
		bySID[g.SID] = g
	}
	assert.False(t, bySID["old"].Stopping)
	assert.True(t, bySID["older"].Stopping)

	for _, g := range expired {
		assert.True(t, tr.Release(g))
		assert.False(t, tr.Release(g))
	}
	assert.False(t, tr.IsStarting("old"))
	assert.False(t, tr.IsStopping("older"))
	assert.True(t, tr.IsStarting("fresh"))
}

func TestTracker_ReleaseKeepsReclaimedGuard(t *testing.T) {
	tr := NewTracker(nil)
	tr.AddStarting("s1")
	time.Sleep(5 * time.Millisecond)

	expired := tr.Expired(time.Millisecond)
	require.Len(t, expired, 1)

	tr.RemoveStarting("s1")
	require.True(t, tr.AddStarting("s1"))

	assert.False(t, tr.Release(expired[0]))
	assert.True(t, tr.IsStarting("s1"))
}
