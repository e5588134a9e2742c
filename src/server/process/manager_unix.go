//go:build !windows
// +build !windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// configureCommand puts the server in its own process group so a kill also
// reaches children such as the server started behind an ssh tunnel.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func isExpectedKillError(err error) bool {
	if errors.Is(err, os.ErrProcessDone) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESRCH || errno == syscall.ECHILD
	}
	return false
}
