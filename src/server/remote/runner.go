package remote

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// CommandRunner executes argv and reports its output and exit status. A
// non-zero exit is reported through exitCode with a nil error; err is for
// failures to run at all.
type CommandRunner interface {
	Run(ctx context.Context, argv []string) (stdout, stderr []byte, exitCode int, err error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	// WaitDelay bounds how long Run waits for output pipes after the
	// process is killed.
	WaitDelay time.Duration
}

func (r ExecRunner) Run(ctx context.Context, argv []string) ([]byte, []byte, int, error) {
	if len(argv) == 0 {
		return nil, nil, -1, errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = time.Second
	}

	err := cmd.Run()
	if ctx.Err() != nil {
		return stdout.Bytes(), stderr.Bytes(), -1, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return stdout.Bytes(), stderr.Bytes(), -1, err
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}
