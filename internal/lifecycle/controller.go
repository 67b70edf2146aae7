package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"berth/internal/api"
	"berth/internal/events"
	"berth/internal/metrics"
	"berth/internal/workers"
	"berth/pkg/logging"
)

// Causes attached to failure events.
const (
	CauseStartTimeout = "agent did not come online in time"
	CauseStopTimeout  = "agent did not go offline in time"
	CauseGuardExpired = "operation guard expired"
	CauseCancelled    = "operation cancelled"
)

// Launcher spawns and stops service processes.
type Launcher interface {
	Start(ctx context.Context, desc api.ServiceDescriptor) (int, error)
	Stop(ctx context.Context, sid string) error
	// Exited returns a channel that receives the exit error of the process
	// last launched for sid once it terminates, or nil if there is none.
	Exited(sid string) <-chan error
}

// Submitter runs work off the caller's goroutine.
type Submitter interface {
	Submit(name string, fn workers.TaskFunc) error
}

// Notifier publishes operator notices.
type Notifier interface {
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Options tunes the controller.
type Options struct {
	StartTimeout time.Duration
	StopTimeout  time.Duration
	// StuckThreshold is the number of consecutive failed stops after which
	// a service is flagged as stuck. Zero disables the flag.
	StuckThreshold int
	// GuardTTL is the age after which Sweep drops a guard.
	GuardTTL time.Duration
}

// DefaultOptions returns the controller defaults.
func DefaultOptions() Options {
	return Options{
		StartTimeout:   60 * time.Second,
		StopTimeout:    30 * time.Second,
		StuckThreshold: 3,
		GuardTTL:       5 * time.Minute,
	}
}

// Controller executes operator start and stop commands. It takes the
// matching guard, hands the work to the pool and reports the outcome on the
// bus; status itself is always read from the Tracker.
type Controller struct {
	tracker  *Tracker
	launcher Launcher
	bus      *events.Bus
	pool     Submitter
	notifier Notifier
	metrics  *metrics.Recorder
	opts     Options
	resolve  func(sid string) string

	mu       sync.Mutex
	failures map[string]int
	stuck    map[string]bool

	sub *events.Subscription

	// done is closed by Close and ends pending agent waits.
	done      chan struct{}
	closeOnce sync.Once
	waiters   sync.WaitGroup
}

// NewController wires a controller. recorder may be nil.
func NewController(tracker *Tracker, launcher Launcher, bus *events.Bus, pool Submitter, notifier Notifier, recorder *metrics.Recorder, opts Options) *Controller {
	c := &Controller{
		tracker:  tracker,
		launcher: launcher,
		bus:      bus,
		pool:     pool,
		notifier: notifier,
		metrics:  recorder,
		opts:     opts,
		failures: make(map[string]int),
		stuck:    make(map[string]bool),
		done:     make(chan struct{}),
	}
	c.sub = events.Subscribe(bus, events.LifecycleTopic, events.SubscriberFunc[api.LifecycleEvent](c.onLifecycle))
	return c
}

// SetNameResolver installs a resolver used to name services known only by
// sid, such as swept guards.
func (c *Controller) SetNameResolver(resolve func(sid string) string) {
	c.resolve = resolve
}

// Close ends pending agent waits, reporting them as cancelled, and releases
// the controller's bus subscription.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closeOnce.Do(func() { close(c.done) })
	c.mu.Unlock()
	c.waiters.Wait()
	c.sub.Release()
}

// Start begins starting desc. It returns a ConflictError without any state
// change if the service is running, stopping, or already starting.
func (c *Controller) Start(ctx context.Context, desc api.ServiceDescriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sid := desc.SID

	switch {
	case c.tracker.IsStopping(sid):
		return c.reject("start", desc, "service %s is stopping", desc.Name)
	case c.online(sid):
		return c.reject("start", desc, "service %s is already running", desc.Name)
	}

	cl, ok := c.tracker.claimStarting(sid)
	if !ok {
		return c.reject("start", desc, "start of %s already in progress", desc.Name)
	}
	if c.tracker.IsStopping(sid) {
		release(&c.tracker.starting, sid, cl)
		return c.reject("start", desc, "service %s is stopping", desc.Name)
	}

	logging.Info("Lifecycle", "Starting %s", desc.Name)
	c.publish(desc.SID, desc.Name, api.LifecyclePreStart, "")

	err := c.pool.Submit("start "+desc.Name, func(ctx context.Context) {
		c.runStart(ctx, desc, cl)
	})
	if err != nil {
		release(&c.tracker.starting, sid, cl)
		c.publish(desc.SID, desc.Name, api.LifecycleStartFailed, err.Error())
		return fmt.Errorf("start %s: %w", desc.Name, err)
	}
	c.metrics.RecordLifecycle("start", metrics.ResultAccepted)
	return nil
}

// Stop begins stopping desc. It returns a ConflictError without any state
// change if the service is stopped, starting, or already stopping.
func (c *Controller) Stop(ctx context.Context, desc api.ServiceDescriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sid := desc.SID

	switch {
	case c.tracker.IsStarting(sid):
		return c.reject("stop", desc, "service %s is starting", desc.Name)
	case !c.tracker.IsStopping(sid) && !c.online(sid):
		return c.reject("stop", desc, "service %s is not running", desc.Name)
	}

	cl, ok := c.tracker.claimStopping(sid)
	if !ok {
		return c.reject("stop", desc, "stop of %s already in progress", desc.Name)
	}
	if c.tracker.IsStarting(sid) {
		release(&c.tracker.stopping, sid, cl)
		return c.reject("stop", desc, "service %s is starting", desc.Name)
	}

	logging.Info("Lifecycle", "Stopping %s", desc.Name)
	c.publish(desc.SID, desc.Name, api.LifecyclePreStop, "")

	err := c.pool.Submit("stop "+desc.Name, func(ctx context.Context) {
		c.runStop(ctx, desc, cl)
	})
	if err != nil {
		release(&c.tracker.stopping, sid, cl)
		c.publish(desc.SID, desc.Name, api.LifecycleStopFailed, err.Error())
		return fmt.Errorf("stop %s: %w", desc.Name, err)
	}
	c.metrics.RecordLifecycle("stop", metrics.ResultAccepted)
	return nil
}

// StartAuto starts every service whose settings request it and returns the
// number of starts accepted.
func (c *Controller) StartAuto(ctx context.Context, descs []api.ServiceDescriptor) int {
	started := 0
	for _, desc := range descs {
		if !desc.Settings.AutoStart {
			continue
		}
		if err := c.Start(ctx, desc); err != nil {
			if api.IsConflict(err) {
				logging.Debug("Lifecycle", "Skipping autostart of %s: %v", desc.Name, err)
			} else {
				logging.Warn("Lifecycle", "Autostart of %s failed: %v", desc.Name, err)
			}
			continue
		}
		started++
	}
	if started > 0 {
		logging.Info("Lifecycle", "Autostarted %d services", started)
	}
	return started
}

// Sweep drops guards older than the configured TTL and reports each as a
// failed operation. It returns the number of guards dropped.
func (c *Controller) Sweep() int {
	if c.opts.GuardTTL <= 0 {
		return 0
	}

	dropped := 0
	for _, g := range c.tracker.Expired(c.opts.GuardTTL) {
		if !c.tracker.Release(g) {
			continue
		}
		dropped++
		name := c.name(g.SID)
		age := time.Since(g.Since).Round(time.Second)

		if g.Stopping {
			logging.Warn("Lifecycle", "Stop guard of %s expired after %s", name, age)
			c.publish(g.SID, name, api.LifecycleStopFailed, CauseGuardExpired)
			c.notifier.Warn("Stop of %s did not finish within %s", name, age)
			c.metrics.RecordLifecycle("stop", metrics.ResultExpired)
		} else {
			logging.Warn("Lifecycle", "Start guard of %s expired after %s", name, age)
			c.publish(g.SID, name, api.LifecycleStartFailed, CauseGuardExpired)
			c.notifier.Warn("Start of %s did not finish within %s", name, age)
			c.metrics.RecordLifecycle("start", metrics.ResultExpired)
		}
	}
	return dropped
}

// Stuck reports whether sid is flagged after repeated stop failures.
func (c *Controller) Stuck(sid string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stuck[sid]
}

// StopFailures returns the number of consecutive failed stops of sid.
func (c *Controller) StopFailures(sid string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures[sid]
}

// runStart launches desc on a pool worker. The wait for the agent runs on
// its own goroutine so a slow agent never holds a worker.
func (c *Controller) runStart(ctx context.Context, desc api.ServiceDescriptor, cl *claim) {
	finish := releaser(&c.tracker.starting, desc.SID, cl)

	online, sub := c.await(desc.SID, api.LifecycleAfterStarted)

	pid, err := c.launcher.Start(ctx, desc)
	if err != nil {
		sub.Release()
		finish()
		c.startFailed(desc, fmt.Sprintf("launch failed: %v", err), metrics.ResultFailure)
		return
	}
	logging.Debug("Lifecycle", "Launched %s with pid %d", desc.Name, pid)

	if c.online(desc.SID) {
		sub.Release()
		finish()
		c.started(desc)
		return
	}

	exited := c.launcher.Exited(desc.SID)
	c.spawn(func() {
		defer sub.Release()
		defer finish()
		c.awaitStarted(ctx, desc, finish, online, exited)
	})
}

func (c *Controller) awaitStarted(ctx context.Context, desc api.ServiceDescriptor, finish func(), online <-chan api.LifecycleEvent, exited <-chan error) {
	timer := time.NewTimer(c.opts.StartTimeout)
	defer timer.Stop()

	for {
		select {
		case <-online:
			finish()
			c.started(desc)
			return
		case err := <-exited:
			if err == nil {
				// A clean exit may be a command handing off to a daemon;
				// its agent can still come online.
				logging.Debug("Lifecycle", "Launch command of %s exited cleanly, waiting for its agent", desc.Name)
				exited = nil
				continue
			}
			finish()
			c.startFailed(desc, fmt.Sprintf("process exited: %v", err), metrics.ResultFailure)
			return
		case <-timer.C:
			finish()
			c.startFailed(desc, CauseStartTimeout, metrics.ResultTimeout)
			return
		case <-ctx.Done():
			finish()
			c.startFailed(desc, CauseCancelled, metrics.ResultFailure)
			return
		case <-c.done:
			finish()
			c.startFailed(desc, CauseCancelled, metrics.ResultFailure)
			return
		}
	}
}

func (c *Controller) started(desc api.ServiceDescriptor) {
	logging.Info("Lifecycle", "Started %s", desc.Name)
	c.metrics.RecordLifecycle("start", metrics.ResultSuccess)
}

func (c *Controller) startFailed(desc api.ServiceDescriptor, cause, result string) {
	logging.Warn("Lifecycle", "Start of %s failed: %s", desc.Name, cause)
	c.publish(desc.SID, desc.Name, api.LifecycleStartFailed, cause)
	c.notifier.Error("Start %s failed: %s", desc.Name, cause)
	c.metrics.RecordLifecycle("start", result)
}

// runStop signals the process on a pool worker and waits for the agent to
// go offline on its own goroutine.
func (c *Controller) runStop(ctx context.Context, desc api.ServiceDescriptor, cl *claim) {
	finish := releaser(&c.tracker.stopping, desc.SID, cl)

	offline, sub := c.await(desc.SID, api.LifecycleAfterStopped, api.LifecycleExceptionOffline)

	if err := c.launcher.Stop(ctx, desc.SID); err != nil && c.online(desc.SID) {
		sub.Release()
		finish()
		c.stopFailed(desc, fmt.Sprintf("stop failed: %v", err), metrics.ResultFailure)
		return
	}

	if !c.online(desc.SID) {
		sub.Release()
		finish()
		c.stopped(desc)
		return
	}

	c.spawn(func() {
		defer sub.Release()
		defer finish()
		c.awaitStopped(ctx, desc, finish, offline)
	})
}

func (c *Controller) awaitStopped(ctx context.Context, desc api.ServiceDescriptor, finish func(), offline <-chan api.LifecycleEvent) {
	timer := time.NewTimer(c.opts.StopTimeout)
	defer timer.Stop()

	select {
	case <-offline:
		finish()
		c.stopped(desc)
	case <-timer.C:
		finish()
		c.stopFailed(desc, CauseStopTimeout, metrics.ResultTimeout)
	case <-ctx.Done():
		finish()
		c.stopFailed(desc, CauseCancelled, metrics.ResultFailure)
	case <-c.done:
		finish()
		c.stopFailed(desc, CauseCancelled, metrics.ResultFailure)
	}
}

func (c *Controller) stopped(desc api.ServiceDescriptor) {
	c.clearFailures(desc.SID)
	logging.Info("Lifecycle", "Stopped %s", desc.Name)
	c.metrics.RecordLifecycle("stop", metrics.ResultSuccess)
}

func (c *Controller) stopFailed(desc api.ServiceDescriptor, cause, result string) {
	logging.Warn("Lifecycle", "Stop of %s failed: %s", desc.Name, cause)
	c.publish(desc.SID, desc.Name, api.LifecycleStopFailed, cause)
	c.notifier.Error("Stop %s failed: %s", desc.Name, cause)
	c.metrics.RecordLifecycle("stop", result)

	c.mu.Lock()
	c.failures[desc.SID]++
	n := c.failures[desc.SID]
	flagged := c.opts.StuckThreshold > 0 && n >= c.opts.StuckThreshold && !c.stuck[desc.SID]
	if flagged {
		c.stuck[desc.SID] = true
	}
	c.mu.Unlock()

	if flagged {
		logging.Warn("Lifecycle", "%s flagged as stuck after %d failed stops", desc.Name, n)
		c.notifier.Warn("Service %s appears stuck: %d consecutive stop attempts failed", desc.Name, n)
		c.metrics.AddStuck(1)
	}
}

func (c *Controller) clearFailures(sid string) {
	c.mu.Lock()
	wasStuck := c.stuck[sid]
	delete(c.stuck, sid)
	delete(c.failures, sid)
	c.mu.Unlock()

	if wasStuck {
		c.metrics.AddStuck(-1)
	}
}

// onLifecycle resets the stuck policy once a service goes offline by any
// route.
func (c *Controller) onLifecycle(_ context.Context, ev api.LifecycleEvent) {
	switch ev.Lifecycle {
	case api.LifecycleAfterStopped, api.LifecycleExceptionOffline:
		c.clearFailures(ev.SID)
	}
}

// await returns a channel receiving the first lifecycle event for sid
// matching one of want. The subscription must be released by the caller.
func (c *Controller) await(sid string, want ...api.Lifecycle) (<-chan api.LifecycleEvent, *events.Subscription) {
	ch := make(chan api.LifecycleEvent, 1)
	sub := events.Subscribe(c.bus, events.LifecycleTopic, events.SubscriberFunc[api.LifecycleEvent](
		func(_ context.Context, ev api.LifecycleEvent) {
			if ev.SID != sid || !slices.Contains(want, ev.Lifecycle) {
				return
			}
			select {
			case ch <- ev:
			default:
			}
		}))
	return ch, sub
}

func (c *Controller) reject(operation string, desc api.ServiceDescriptor, format string, args ...any) error {
	c.metrics.RecordLifecycle(operation, metrics.ResultRejected)
	return api.NewConflictError("service", desc.Name, fmt.Sprintf(format, args...))
}

func (c *Controller) online(sid string) bool {
	return c.tracker.liveness != nil && c.tracker.liveness.IsOnline(sid)
}

func (c *Controller) publish(sid, name string, l api.Lifecycle, cause string) {
	events.Publish(c.bus, events.LifecycleTopic, api.NewLifecycleEvent(sid, name, l, cause))
}

func (c *Controller) name(sid string) string {
	if c.resolve != nil {
		if n := c.resolve(sid); n != "" {
			return n
		}
	}
	return sid
}

// spawn runs fn on a tracked goroutine. After Close, fn runs inline and
// sees done already closed.
func (c *Controller) spawn(fn func()) {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		fn()
		return
	default:
	}
	c.waiters.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.waiters.Done()
		fn()
	}()
}

// releaser returns an idempotent release of the guard c in set.
func releaser(set *sync.Map, sid string, c *claim) func() {
	var once sync.Once
	return func() { once.Do(func() { release(set, sid, c) }) }
}
