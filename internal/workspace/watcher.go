package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"berth/internal/api"
	"berth/internal/events"
	"berth/pkg/logging"
)

// DefaultDebounce is how long the watcher waits for further changes before
// publishing a catalog change.
const DefaultDebounce = 500 * time.Millisecond

// IgnoreWindow is how long Ignore suppresses changes to a name.
const IgnoreWindow = 2 * time.Second

// Watcher publishes a CatalogChanged event when service directories appear
// in or disappear from the workspace root.
//
// It watches the root only: settings edits inside a service directory are
// picked up on the next scan and are not announced.
type Watcher struct {
	mu sync.Mutex

	registry *Registry
	bus      *events.Bus
	debounce time.Duration

	watcher *fsnotify.Watcher
	pending map[string]fsnotify.Op
	ignored map[string]time.Time // name -> end of suppression
	timer   *time.Timer
	stopCh  chan struct{}
	done    chan struct{}
	running bool
}

// NewWatcher creates a watcher for registry's root.
func NewWatcher(registry *Registry, bus *events.Bus, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		registry: registry,
		bus:      bus,
		debounce: debounce,
		pending:  make(map[string]fsnotify.Op),
		ignored:  make(map[string]time.Time),
	}
}

// Ignore suppresses changes to the service directory name for
// IgnoreWindow. Components that announce the services they install call it
// before touching the workspace.
func (w *Watcher) Ignore(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ignored[name] = time.Now().Add(IgnoreWindow)
	delete(w.pending, name)
}

// Start begins watching. It is a no-op if already running.
func (w *Watcher) Start(ctx context.Context) error {
	root, err := w.registry.Root()
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create workspace watcher: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", root, err)
	}

	w.watcher = watcher
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true

	go w.processEvents(ctx, root, watcher, w.stopCh, w.done)

	logging.Info("Workspace", "Watching %s for service changes", root)
	return nil
}

// Stop ends watching and drops pending changes.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	watcher, done := w.watcher, w.done
	w.watcher = nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = make(map[string]fsnotify.Op)
	w.mu.Unlock()

	err := watcher.Close()
	<-done
	logging.Debug("Workspace", "Stopped workspace watcher")
	return err
}

func (w *Watcher) processEvents(ctx context.Context, root string, watcher *fsnotify.Watcher, stopCh, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handle(root, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Workspace", err, "Workspace watcher error")
		}
	}
}

func (w *Watcher) handle(root string, event fsnotify.Event) {
	if filepath.Dir(event.Name) != root {
		return
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}
	name := filepath.Base(event.Name)
	if !w.registry.Accepts(name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if until, ok := w.ignored[name]; ok {
		if time.Now().Before(until) {
			return
		}
		delete(w.ignored, name)
	}

	w.pending[name] |= event.Op
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if !w.running || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	changed := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.timer = nil
	w.mu.Unlock()

	names := make([]string, 0, len(changed))
	for name := range changed {
		names = append(names, name)
	}
	sort.Strings(names)

	reason := "workspace changed: " + strings.Join(names, ", ")
	logging.Debug("Workspace", "%s", reason)
	events.Publish(w.bus, events.CatalogTopic, api.CatalogChanged{Reason: reason, At: time.Now()})
}
