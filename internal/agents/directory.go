package agents

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"berth/internal/api"
	"berth/internal/events"
	"berth/pkg/logging"
)

// Offline causes attached to EXCEPTION_OFFLINE and AFTER_STOPPED events.
const (
	CauseShutdown    = "agent shutdown"
	CauseExplicit    = "explicit offline"
	CauseSessionLost = "session lost"
)

// NameResolver maps a sid to a service name for event decoration.
type NameResolver func(sid string) string

// AgentInfo is a snapshot of one online agent.
type AgentInfo struct {
	SID       string
	Name      string
	SessionID string
	Since     time.Time
	LastSeen  time.Time
}

// entry is the value stored in the online set.
type entry struct {
	since     time.Time
	lastSeen  atomic.Int64
	sessionID string
}

// Directory tracks which services have a live agent.
//
// The online set is a sync.Map keyed by sid. MarkOnline and MarkOffline are
// idempotent set/clear operations that publish a lifecycle event only on the
// edge; IsOnline never takes a lock.
type Directory struct {
	bus     *events.Bus
	online  sync.Map // sid -> *entry
	resolve NameResolver
}

// NewDirectory creates a directory publishing transitions on bus.
func NewDirectory(bus *events.Bus) *Directory {
	return &Directory{bus: bus}
}

// SetNameResolver installs a resolver used to fill event names.
func (d *Directory) SetNameResolver(resolve NameResolver) {
	d.resolve = resolve
}

// MarkOnline marks sid online. Only the offline to online edge publishes an
// AFTER_STARTED event; repeated calls act as heartbeats.
func (d *Directory) MarkOnline(sid string) {
	d.markOnline(sid, "")
}

func (d *Directory) markOnline(sid, sessionID string) bool {
	now := time.Now()
	e := &entry{since: now, sessionID: sessionID}
	e.lastSeen.Store(now.UnixNano())

	actual, loaded := d.online.LoadOrStore(sid, e)
	if loaded {
		actual.(*entry).lastSeen.Store(now.UnixNano())
		return false
	}

	logging.Info("Agents", "Agent for %s is online", sid)
	d.publish(sid, api.LifecycleAfterStarted, "")
	return true
}

// MarkOffline marks sid offline. Only the online to offline edge publishes
// an AFTER_STOPPED event.
func (d *Directory) MarkOffline(sid string) {
	if _, loaded := d.online.LoadAndDelete(sid); !loaded {
		return
	}
	logging.Info("Agents", "Agent for %s is offline", sid)
	d.publish(sid, api.LifecycleAfterStopped, CauseExplicit)
}

// IsOnline reports whether sid has a live agent.
func (d *Directory) IsOnline(sid string) bool {
	_, ok := d.online.Load(sid)
	return ok
}

// Touch refreshes the last-seen time of an online agent.
func (d *Directory) Touch(sid string) {
	if v, ok := d.online.Load(sid); ok {
		v.(*entry).lastSeen.Store(time.Now().UnixNano())
	}
}

// Online returns a snapshot of all online agents.
func (d *Directory) Online() []AgentInfo {
	var out []AgentInfo
	d.online.Range(func(key, value any) bool {
		sid := key.(string)
		e := value.(*entry)
		out = append(out, AgentInfo{
			SID:       sid,
			Name:      d.name(sid),
			SessionID: e.sessionID,
			Since:     e.since,
			LastSeen:  time.Unix(0, e.lastSeen.Load()),
		})
		return true
	})
	return out
}

// Attach binds a transport session to sid and marks it online. If another
// session was already bound, the new one takes over without a transition.
func (d *Directory) Attach(sid string) *Session {
	s := &Session{
		id:  uuid.NewString(),
		sid: sid,
		dir: d,
	}

	if !d.markOnline(sid, s.id) {
		// Rebind the existing entry to the newer session.
		for {
			v, ok := d.online.Load(sid)
			if !ok {
				if d.markOnline(sid, s.id) {
					break
				}
				continue
			}
			old := v.(*entry)
			e := &entry{since: old.since, sessionID: s.id}
			e.lastSeen.Store(time.Now().UnixNano())
			if d.online.CompareAndSwap(sid, old, e) {
				logging.Debug("Agents", "Session %s replaced %s for %s", s.id, old.sessionID, sid)
				break
			}
		}
	}
	return s
}

// detach clears sid only if it is still bound to sessionID.
func (d *Directory) detach(sid, sessionID string, lifecycle api.Lifecycle, cause string) bool {
	v, ok := d.online.Load(sid)
	if !ok {
		return false
	}
	e := v.(*entry)
	if e.sessionID != sessionID {
		return false
	}
	if !d.online.CompareAndDelete(sid, e) {
		return false
	}

	if lifecycle == api.LifecycleExceptionOffline {
		logging.Warn("Agents", "Agent for %s went offline without notice: %s", sid, cause)
	} else {
		logging.Info("Agents", "Agent for %s is offline (%s)", sid, cause)
	}
	d.publish(sid, lifecycle, cause)
	return true
}

func (d *Directory) publish(sid string, lifecycle api.Lifecycle, cause string) {
	if d.bus == nil {
		return
	}
	events.Publish(d.bus, events.LifecycleTopic, api.NewLifecycleEvent(sid, d.name(sid), lifecycle, cause))
}

func (d *Directory) name(sid string) string {
	if d.resolve == nil {
		return ""
	}
	return d.resolve(sid)
}

// Session is one agent transport session bound to a sid.
type Session struct {
	id     string
	sid    string
	dir    *Directory
	closed atomic.Bool
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// SID returns the service id the session is bound to.
func (s *Session) SID() string {
	return s.sid
}

// Heartbeat refreshes the agent's last-seen time.
func (s *Session) Heartbeat() {
	if !s.closed.Load() {
		s.dir.Touch(s.sid)
	}
}

// Shutdown handles an explicit offline message from the agent.
func (s *Session) Shutdown() {
	if s.closed.CompareAndSwap(false, true) {
		s.dir.detach(s.sid, s.id, api.LifecycleAfterStopped, CauseShutdown)
	}
}

// Close handles the end of the transport. Without a prior Shutdown this is
// an implicit offline, published as EXCEPTION_OFFLINE tagged with cause.
func (s *Session) Close(cause string) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if cause == "" {
		cause = CauseSessionLost
	}
	s.dir.detach(s.sid, s.id, api.LifecycleExceptionOffline, cause)
}
