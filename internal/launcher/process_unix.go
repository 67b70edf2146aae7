//go:build !windows

package launcher

import (
	"os/exec"
	"syscall"
)

// configureProcAttr puts the service in its own process group so that
// stopping it also stops its children.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup signals the process group of cmd, falling back to the
// process itself.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, sig); err != nil {
		return syscall.Kill(pid, sig)
	}
	return nil
}
