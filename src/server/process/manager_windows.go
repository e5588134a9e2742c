//go:build windows
// +build windows

package process

import (
	"errors"
	"os"
	"os/exec"
)

func configureCommand(cmd *exec.Cmd) {}

func killProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func isExpectedKillError(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}
