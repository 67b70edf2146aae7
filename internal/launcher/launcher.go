package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"berth/internal/api"
	"berth/pkg/logging"
)

// Environment variables passed to every launched service.
const (
	EnvSID      = "BERTH_SID"
	EnvService  = "BERTH_SERVICE"
	EnvAgentURL = "BERTH_AGENT_URL"
)

// ErrNotManaged is returned by Stop for a service this launcher did not start.
var ErrNotManaged = errors.New("service process not managed by this launcher")

// Options configures a CommandLauncher.
type Options struct {
	// StopTimeout is how long Stop waits after SIGTERM before killing.
	StopTimeout time.Duration
	// LogDir receives one <service>.log per service. Empty discards output.
	LogDir string
	// AgentURL is the agent endpoint services should connect to.
	AgentURL string
}

// CommandLauncher runs the command declared in a service's settings file.
type CommandLauncher struct {
	opts Options

	mu    sync.Mutex
	procs map[string]*process
}

// process is the last launch of a sid. It stays in procs after exiting so
// Exited can still report its outcome.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// New creates a launcher.
func New(opts Options) *CommandLauncher {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 30 * time.Second
	}
	return &CommandLauncher{opts: opts, procs: make(map[string]*process)}
}

// Start spawns the service process in its own process group and returns
// its pid. The process outlives ctx.
func (l *CommandLauncher) Start(ctx context.Context, desc api.ServiceDescriptor) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	command := desc.Settings.Command
	if command == "" {
		return 0, fmt.Errorf("no command configured for %s", desc.Name)
	}
	if !filepath.IsAbs(command) && strings.ContainsRune(command, os.PathSeparator) {
		command = filepath.Join(desc.Path, command)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.procs[desc.SID]; ok && !p.exited() {
		return 0, fmt.Errorf("%s is already running with pid %d", desc.Name, p.cmd.Process.Pid)
	}

	cmd := exec.Command(command, desc.Settings.Args...)
	cmd.Dir = desc.Path
	cmd.Env = l.environment(desc)
	configureProcAttr(cmd)

	out, err := l.output(desc.Name)
	if err != nil {
		return 0, err
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		closeOutput(out)
		return 0, fmt.Errorf("start %s: %w", desc.Name, err)
	}

	p := &process{cmd: cmd, done: make(chan struct{})}
	l.procs[desc.SID] = p
	go l.wait(desc, p, out)

	logging.Info("Launcher", "Started %s (pid %d)", desc.Name, cmd.Process.Pid)
	return cmd.Process.Pid, nil
}

// Stop sends SIGTERM to the service's process group and kills it if it has
// not exited within the stop timeout.
func (l *CommandLauncher) Stop(ctx context.Context, sid string) error {
	l.mu.Lock()
	p, ok := l.procs[sid]
	l.mu.Unlock()
	if !ok || p.exited() {
		return fmt.Errorf("stop %s: %w", sid, ErrNotManaged)
	}

	pid := p.cmd.Process.Pid
	if err := signalGroup(p.cmd, syscall.SIGTERM); err != nil {
		logging.Warn("Launcher", "SIGTERM to pid %d failed: %v", pid, err)
	}

	timer := time.NewTimer(l.opts.StopTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
		logging.Warn("Launcher", "pid %d did not exit within %s, killing", pid, l.opts.StopTimeout)
	case <-ctx.Done():
		logging.Warn("Launcher", "Stop of pid %d cancelled, killing", pid)
	}

	if err := signalGroup(p.cmd, syscall.SIGKILL); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("pid %d survived SIGKILL", pid)
	}
}

// Running reports whether the launcher has a live process for sid.
func (l *CommandLauncher) Running(sid string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.procs[sid]
	return ok && !p.exited()
}

// Exited returns a channel receiving the exit error of the process last
// launched for sid, nil for a clean exit. A process that has already
// exited is reported immediately. It returns nil if sid was never launched.
func (l *CommandLauncher) Exited(sid string) <-chan error {
	l.mu.Lock()
	p, ok := l.procs[sid]
	l.mu.Unlock()
	if !ok {
		return nil
	}

	ch := make(chan error, 1)
	go func() {
		<-p.done
		ch <- p.err
	}()
	return ch
}

func (l *CommandLauncher) wait(desc api.ServiceDescriptor, p *process, out io.Writer) {
	p.err = p.cmd.Wait()
	closeOutput(out)
	close(p.done)

	if p.err != nil {
		logging.Info("Launcher", "%s exited: %v", desc.Name, p.err)
	} else {
		logging.Info("Launcher", "%s exited", desc.Name)
	}
}

func (l *CommandLauncher) environment(desc api.ServiceDescriptor) []string {
	env := os.Environ()
	for k, v := range desc.Settings.Env {
		env = append(env, k+"="+v)
	}
	env = append(env, EnvSID+"="+desc.SID, EnvService+"="+desc.Name)
	if l.opts.AgentURL != "" {
		env = append(env, EnvAgentURL+"="+agentURL(l.opts.AgentURL, desc.SID))
	}
	return env
}

func (l *CommandLauncher) output(name string) (io.Writer, error) {
	if l.opts.LogDir == "" {
		return io.Discard, nil
	}
	if err := os.MkdirAll(l.opts.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(l.opts.LogDir, name+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log of %s: %w", name, err)
	}
	return f, nil
}

func closeOutput(out io.Writer) {
	if c, ok := out.(io.Closer); ok {
		_ = c.Close()
	}
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func agentURL(base, sid string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("sid", sid)
	u.RawQuery = q.Encode()
	return u.String()
}
