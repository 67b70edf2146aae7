package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"berth/internal/api"
	"berth/internal/events"
	"berth/internal/metrics"
	"berth/pkg/logging"
	pkgstrings "berth/pkg/strings"
)

// Options configures a Gateway.
type Options struct {
	// MaxTextLength bounds notice and progress text. Zero means unlimited.
	MaxTextLength int
}

// Gateway fans bus events out to connected client sessions.
//
// Progress is current-value state: the gateway keeps the latest text per
// operation and replays it to sessions that connect later. An empty text
// clears the slot and is still forwarded.
type Gateway struct {
	bus     *events.Bus
	opts    Options
	metrics *metrics.Recorder

	mu       sync.RWMutex
	sessions map[string]Session

	// progressMu serializes progress updates with session replay so a
	// joining session never sees a snapshot older than a live update.
	progressMu sync.Mutex
	progress   map[string]string

	subsMu sync.Mutex
	subs   []*events.Subscription
}

// NewGateway creates a gateway over bus. recorder may be nil.
func NewGateway(bus *events.Bus, opts Options, recorder *metrics.Recorder) *Gateway {
	return &Gateway{
		bus:      bus,
		opts:     opts,
		metrics:  recorder,
		sessions: make(map[string]Session),
		progress: make(map[string]string),
	}
}

// Start subscribes to the lifecycle, notice, progress and catalog topics.
func (g *Gateway) Start() {
	g.subsMu.Lock()
	defer g.subsMu.Unlock()
	if len(g.subs) > 0 {
		return
	}

	g.subs = []*events.Subscription{
		events.Subscribe(g.bus, events.LifecycleTopic, events.SubscriberFunc[api.LifecycleEvent](g.onLifecycle)),
		events.Subscribe(g.bus, events.NoticeTopic, events.SubscriberFunc[api.Notice](g.onNotice)),
		events.Subscribe(g.bus, events.ProgressTopic, events.SubscriberFunc[api.Progress](g.onProgress)),
		events.Subscribe(g.bus, events.CatalogTopic, events.SubscriberFunc[api.CatalogChanged](g.onCatalog)),
	}
	logging.Debug("Notify", "Gateway subscribed to %d topics", len(g.subs))
}

// Stop releases the subscriptions and closes every session.
func (g *Gateway) Stop() {
	g.subsMu.Lock()
	subs := g.subs
	g.subs = nil
	g.subsMu.Unlock()

	for _, s := range subs {
		s.Release()
	}

	g.mu.Lock()
	sessions := g.sessions
	g.sessions = make(map[string]Session)
	g.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
	g.metrics.SetClientSessions(0)
}

// Connect adds s to the fan-out and replays the current progress slots.
func (g *Gateway) Connect(s Session) {
	g.progressMu.Lock()
	defer g.progressMu.Unlock()

	g.mu.Lock()
	g.sessions[s.ID()] = s
	n := len(g.sessions)
	g.mu.Unlock()

	g.metrics.SetClientSessions(n)
	logging.Debug("Notify", "Session %s connected (%d total)", s.ID(), n)

	ops := make([]string, 0, len(g.progress))
	for op := range g.progress {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	now := time.Now()
	for _, op := range ops {
		msg := progressMessage(api.Progress{OperationID: op, Text: g.progress[op]}, now)
		if err := s.Send(msg); err != nil {
			logging.Warn("Notify", "Progress replay to session %s failed: %v", s.ID(), err)
			g.drop(s, err)
			return
		}
	}
}

// Disconnect removes the session with the given id from the fan-out.
func (g *Gateway) Disconnect(id string) {
	g.mu.Lock()
	_, ok := g.sessions[id]
	delete(g.sessions, id)
	n := len(g.sessions)
	g.mu.Unlock()

	if ok {
		g.metrics.SetClientSessions(n)
		logging.Debug("Notify", "Session %s disconnected (%d left)", id, n)
	}
}

// SessionCount returns the number of connected sessions.
func (g *Gateway) SessionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

// Progress returns a copy of the current progress slots.
func (g *Gateway) Progress() map[string]string {
	g.progressMu.Lock()
	defer g.progressMu.Unlock()
	out := make(map[string]string, len(g.progress))
	for k, v := range g.progress {
		out[k] = v
	}
	return out
}

func (g *Gateway) onLifecycle(_ context.Context, ev api.LifecycleEvent) {
	g.broadcast(lifecycleMessage(ev))
}

func (g *Gateway) onNotice(_ context.Context, n api.Notice) {
	g.broadcast(noticeMessage(n, pkgstrings.TruncateText(n.Text, g.opts.MaxTextLength)))
}

func (g *Gateway) onProgress(_ context.Context, p api.Progress) {
	p.Text = pkgstrings.TruncateText(p.Text, g.opts.MaxTextLength)

	g.progressMu.Lock()
	defer g.progressMu.Unlock()

	if p.Done() {
		delete(g.progress, p.OperationID)
	} else {
		g.progress[p.OperationID] = p.Text
	}
	g.broadcast(progressMessage(p, time.Now()))
}

func (g *Gateway) onCatalog(_ context.Context, c api.CatalogChanged) {
	g.broadcast(catalogMessage(c))
}

func (g *Gateway) broadcast(msg Message) {
	g.mu.RLock()
	if len(g.sessions) == 0 {
		g.mu.RUnlock()
		return
	}
	targets := make([]Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		targets = append(targets, s)
	}
	g.mu.RUnlock()

	for _, s := range targets {
		if err := s.Send(msg); err != nil {
			g.drop(s, err)
		}
	}
}

func (g *Gateway) drop(s Session, err error) {
	logging.Warn("Notify", "Dropping session %s: %v", s.ID(), err)
	g.Disconnect(s.ID())
	if cerr := s.Close(); cerr != nil {
		logging.Debug("Notify", "Closing session %s: %v", s.ID(), cerr)
	}
}
