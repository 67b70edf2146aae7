//go:build !windows

package launcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"berth/internal/api"
)

func shellService(t *testing.T, script string) api.ServiceDescriptor {
	t.Helper()
	dir := t.TempDir()
	return api.ServiceDescriptor{
		Name: "svc",
		SID:  "sid-" + filepath.Base(dir),
		Path: dir,
		Settings: api.ServiceSettings{
			Command: "/bin/sh",
			Args:    []string{"-c", script},
			Env:     map[string]string{"GREETING": "hello"},
		},
	}
}

func TestStartStop(t *testing.T) {
	l := New(Options{StopTimeout: 2 * time.Second})
	desc := shellService(t, "sleep 30")

	pid, err := l.Start(context.Background(), desc)
	require.NoError(t, err)
	assert.Positive(t, pid)
	assert.True(t, l.Running(desc.SID))

	_, err = l.Start(context.Background(), desc)
	assert.Error(t, err, "second start of a live process must fail")

	require.NoError(t, l.Stop(context.Background(), desc.SID))
	require.Eventually(t, func() bool { return !l.Running(desc.SID) }, time.Second, 10*time.Millisecond)
}

func TestStop_KillsAfterTimeout(t *testing.T) {
	l := New(Options{StopTimeout: 100 * time.Millisecond})
	desc := shellService(t, "trap '' TERM; while true; do sleep 1; done")

	_, err := l.Start(context.Background(), desc)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	require.NoError(t, l.Stop(context.Background(), desc.SID))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, l.Running(desc.SID))
}

func TestStop_NotManaged(t *testing.T) {
	l := New(Options{})
	err := l.Stop(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNotManaged)
}

func TestStart_NoCommand(t *testing.T) {
	l := New(Options{})
	_, err := l.Start(context.Background(), api.ServiceDescriptor{Name: "bare", SID: "s", Path: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no command configured")
}

func TestStart_EnvironmentAndLogs(t *testing.T) {
	logDir := t.TempDir()
	l := New(Options{LogDir: logDir, AgentURL: "ws://127.0.0.1:9899/ws/agent"})
	desc := shellService(t, `echo "$GREETING $BERTH_SERVICE $BERTH_SID"; echo "$BERTH_AGENT_URL"`)

	_, err := l.Start(context.Background(), desc)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !l.Running(desc.SID) }, 2*time.Second, 10*time.Millisecond)

	out, err := os.ReadFile(filepath.Join(logDir, "svc.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "hello svc "+desc.SID, lines[0])
	assert.Equal(t, "ws://127.0.0.1:9899/ws/agent?sid="+desc.SID, lines[1])
}

func TestStart_RelativeCommand(t *testing.T) {
	desc := shellService(t, "")
	script := filepath.Join(desc.Path, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\npwd > where\n"), 0755))
	desc.Settings.Command = "./run.sh"
	desc.Settings.Args = nil

	l := New(Options{})
	_, err := l.Start(context.Background(), desc)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !l.Running(desc.SID) }, 2*time.Second, 10*time.Millisecond)

	where, err := os.ReadFile(filepath.Join(desc.Path, "where"))
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(string(where)))
}

func TestExited_ReportsExitStatus(t *testing.T) {
	l := New(Options{})

	crash := shellService(t, "exit 3")
	_, err := l.Start(context.Background(), crash)
	require.NoError(t, err)

	select {
	case err := <-l.Exited(crash.SID):
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exit status 3")
	case <-time.After(5 * time.Second):
		t.Fatal("exit not reported")
	}

	// Asking again after the process is gone still reports its outcome.
	select {
	case err := <-l.Exited(crash.SID):
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("exit of a finished process not reported")
	}

	clean := shellService(t, "true")
	_, err = l.Start(context.Background(), clean)
	require.NoError(t, err)
	select {
	case err := <-l.Exited(clean.SID):
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("clean exit not reported")
	}
}

func TestExited_UnknownSID(t *testing.T) {
	l := New(Options{})
	assert.Nil(t, l.Exited("unknown"))
}
