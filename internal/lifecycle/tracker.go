package lifecycle

import (
	"sync"
	"time"

	"berth/internal/api"
)

// LivenessReader reports whether a service's agent is online.
type LivenessReader interface {
	IsOnline(sid string) bool
}

// Tracker holds the two transient guard sets, starting and stopping, and
// derives a service's status from them and agent liveness.
//
// Guards are advisory locks: AddStarting and AddStopping are atomic
// test-and-set operations, removal is idempotent, and Status never locks.
type Tracker struct {
	starting sync.Map // sid -> *claim
	stopping sync.Map // sid -> *claim
	liveness LivenessReader
}

// claim is a guard entry. Its pointer identity lets the owner release
// exactly the guard it took, even after a sweep let someone re-claim it.
type claim struct {
	since time.Time
}

// NewTracker creates a tracker reading agent liveness from liveness.
func NewTracker(liveness LivenessReader) *Tracker {
	return &Tracker{liveness: liveness}
}

// AddStarting claims the start guard for sid. It returns false if a start is
// already in progress; callers must refuse the operation, never queue it.
func (t *Tracker) AddStarting(sid string) bool {
	_, ok := t.claimStarting(sid)
	return ok
}

func (t *Tracker) claimStarting(sid string) (*claim, bool) {
	return claimIn(&t.starting, sid)
}

// RemoveStarting releases the start guard. It is idempotent.
func (t *Tracker) RemoveStarting(sid string) {
	t.starting.Delete(sid)
}

// AddStopping claims the stop guard for sid. It returns false if a stop is
// already in progress.
func (t *Tracker) AddStopping(sid string) bool {
	_, ok := t.claimStopping(sid)
	return ok
}

func (t *Tracker) claimStopping(sid string) (*claim, bool) {
	return claimIn(&t.stopping, sid)
}

func claimIn(set *sync.Map, sid string) (*claim, bool) {
	c := &claim{since: time.Now()}
	if _, loaded := set.LoadOrStore(sid, c); loaded {
		return nil, false
	}
	return c, true
}

// RemoveStopping releases the stop guard. It is idempotent.
func (t *Tracker) RemoveStopping(sid string) {
	t.stopping.Delete(sid)
}

// IsStarting reports whether sid holds the start guard.
func (t *Tracker) IsStarting(sid string) bool {
	_, ok := t.starting.Load(sid)
	return ok
}

// IsStopping reports whether sid holds the stop guard.
func (t *Tracker) IsStopping(sid string) bool {
	_, ok := t.stopping.Load(sid)
	return ok
}

// IsStartingOrStopping reports whether any operation is in flight for sid.
func (t *Tracker) IsStartingOrStopping(sid string) bool {
	return t.IsStarting(sid) || t.IsStopping(sid)
}

// HasPending reports whether any start or stop is in flight at all.
func (t *Tracker) HasPending() bool {
	pending := false
	check := func(_, _ any) bool {
		pending = true
		return false
	}
	t.starting.Range(check)
	if !pending {
		t.stopping.Range(check)
	}
	return pending
}

// Status derives the externally visible status of sid.
func (t *Tracker) Status(sid string) api.ServiceStatus {
	switch {
	case t.IsStarting(sid):
		return api.StatusStarting
	case t.IsStopping(sid):
		return api.StatusStopping
	case t.liveness != nil && t.liveness.IsOnline(sid):
		return api.StatusRunning
	default:
		return api.StatusStopped
	}
}

// Guard is a guard entry older than a sweep threshold.
type Guard struct {
	SID      string
	Stopping bool
	Since    time.Time

	claim *claim
}

// Expired returns the guard entries claimed more than ttl ago.
func (t *Tracker) Expired(ttl time.Duration) []Guard {
	cutoff := time.Now().Add(-ttl)
	var out []Guard
	collect := func(stopping bool) func(key, value any) bool {
		return func(key, value any) bool {
			c := value.(*claim)
			if c.since.Before(cutoff) {
				out = append(out, Guard{SID: key.(string), Stopping: stopping, Since: c.since, claim: c})
			}
			return true
		}
	}
	t.starting.Range(collect(false))
	t.stopping.Range(collect(true))
	return out
}

// Release drops an expired guard unless it has been released or re-claimed
// since Expired returned it.
func (t *Tracker) Release(g Guard) bool {
	if g.Stopping {
		return t.stopping.CompareAndDelete(g.SID, g.claim)
	}
	return t.starting.CompareAndDelete(g.SID, g.claim)
}

// release drops the guard c in set if it is still the current one.
func release(set *sync.Map, sid string, c *claim) {
	set.CompareAndDelete(sid, c)
}
