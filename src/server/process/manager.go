package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/constants"
	"lsp-indexer/src/internal/errors"
)

// ProcessInfo holds information about a running LSP server process
type ProcessInfo struct {
	Cmd    *exec.Cmd
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser
	Label  string

	intentionalStop atomic.Bool
	done            chan struct{}
	exitErr         error
	cleanupOnce     sync.Once
}

// Done is closed once the process has exited, whatever the cause
func (info *ProcessInfo) Done() <-chan struct{} {
	return info.done
}

// ExitErr returns the Wait error. Valid after Done is closed.
func (info *ProcessInfo) ExitErr() error {
	<-info.done
	return info.exitErr
}

// Exited reports whether the process has already exited
func (info *ProcessInfo) Exited() bool {
	select {
	case <-info.done:
		return true
	default:
		return false
	}
}

// ShutdownSender sends the LSP shutdown sequence before the process is reaped
type ShutdownSender interface {
	SendShutdownRequest(ctx context.Context) error
	SendExitNotification(ctx context.Context) error
}

// ProcessManager interface for LSP server process lifecycle management
type ProcessManager interface {
	StartProcess(argv []string, dir, label string) (*ProcessInfo, error)
	StopProcess(info *ProcessInfo, sender ShutdownSender) error
}

// LSPProcessManager implements ProcessManager for LSP server processes
type LSPProcessManager struct {
	logger      *common.SafeLogger
	exitTimeout time.Duration
}

// NewLSPProcessManager creates a new LSP process manager
func NewLSPProcessManager(logger *common.SafeLogger) *LSPProcessManager {
	if logger == nil {
		logger = common.LSPLogger
	}
	return &LSPProcessManager{logger: logger, exitTimeout: constants.ProcessExitTimeout}
}

// StartProcess spawns argv with pipes attached. dir may be empty. The
// process is reaped by a single monitor goroutine that closes Done.
func (pm *LSPProcessManager) StartProcess(argv []string, dir, label string) (*ProcessInfo, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.NewValidationError("command", "server command is empty")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	configureCommand(cmd)

	info := &ProcessInfo{
		Cmd:   cmd,
		Label: label,
		done:  make(chan struct{}),
	}

	var err error
	info.Stdin, err = cmd.StdinPipe()
	if err != nil {
		return nil, errors.NewProcessError(label, "start", fmt.Errorf("failed to create stdin pipe: %w", err))
	}

	// Plain OS pipes rather than StdoutPipe: Wait must not close the read
	// ends while the transport is still draining them.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		info.Stdin.Close()
		return nil, errors.NewProcessError(label, "start", fmt.Errorf("failed to create stdout pipe: %w", err))
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		info.Stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, errors.NewProcessError(label, "start", fmt.Errorf("failed to create stderr pipe: %w", err))
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	info.Stdout = stdoutR
	info.Stderr = stderrR

	startErr := cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if startErr != nil {
		pm.CleanupProcess(info)
		return nil, errors.NewProcessError(strings.Join(argv, " "), "start", startErr)
	}

	pm.logger.Info("Started LSP server process %s: PID %d", label, cmd.Process.Pid)
	go pm.monitorProcess(info)
	return info, nil
}

func (pm *LSPProcessManager) monitorProcess(info *ProcessInfo) {
	err := info.Cmd.Wait()
	info.exitErr = err

	switch {
	case info.intentionalStop.Load():
		pm.logger.Debug("LSP server %s stopped", info.Label)
	case err != nil:
		pm.logger.Error("LSP server %s exited unexpectedly: %v", info.Label, err)
	default:
		pm.logger.Info("LSP server %s exited", info.Label)
	}

	close(info.done)
}

// StopProcess sends the shutdown sequence through sender when one is given,
// waits briefly for the exit, then kills. A nil sender kills right away.
func (pm *LSPProcessManager) StopProcess(info *ProcessInfo, sender ShutdownSender) error {
	if info == nil {
		return nil
	}
	info.intentionalStop.Store(true)

	if sender != nil && !info.Exited() {
		pm.sendShutdown(sender)
		select {
		case <-info.done:
		case <-time.After(pm.exitTimeout):
			pm.logger.Debug("LSP server %s did not exit within %v, force killing", info.Label, pm.exitTimeout)
		}
	}

	if !info.Exited() {
		if err := killProcess(info.Cmd); err != nil && !isExpectedKillError(err) {
			pm.logger.Debug("Failed to kill LSP server %s: %v", info.Label, err)
		}
		select {
		case <-info.done:
		case <-time.After(constants.ProcessShutdownTimeout):
			pm.CleanupProcess(info)
			return errors.NewProcessError(info.Label, "stop", fmt.Errorf("process did not terminate after kill"))
		}
	}

	pm.CleanupProcess(info)
	return nil
}

// CleanupProcess closes all pipes. Safe to call more than once.
func (pm *LSPProcessManager) CleanupProcess(info *ProcessInfo) {
	if info == nil {
		return
	}
	info.cleanupOnce.Do(func() {
		if info.Stdin != nil {
			info.Stdin.Close()
		}
		if info.Stdout != nil {
			info.Stdout.Close()
		}
		if info.Stderr != nil {
			info.Stderr.Close()
		}
	})
}

func (pm *LSPProcessManager) sendShutdown(sender ShutdownSender) {
	SendShutdownSequence(sender, pm.logger)
}

// SendShutdownSequence sends shutdown then exit, each under its own timeout.
// Failures are logged and do not stop the sequence.
func SendShutdownSequence(sender ShutdownSender, logger *common.SafeLogger) {
	shutdownCtx, shutdownCancel := common.CreateContext(constants.ShutdownRequestTimeout)
	defer shutdownCancel()

	if err := sender.SendShutdownRequest(shutdownCtx); err != nil {
		logger.Debug("shutdown request failed: %v", err)
	}

	exitCtx, exitCancel := common.CreateContext(constants.ProcessExitTimeout)
	defer exitCancel()

	if err := sender.SendExitNotification(exitCtx); err != nil {
		logger.Debug("exit notification failed: %v", err)
	}
}
