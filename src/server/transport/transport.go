// Package transport owns the language server's standard streams: it writes
// framed messages and turns the inbound byte stream into message bodies.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"lsp-indexer/src/internal/common"
	lsperrors "lsp-indexer/src/internal/errors"
	"lsp-indexer/src/internal/types"
	"lsp-indexer/src/server/process"
	"lsp-indexer/src/server/protocol"
	"lsp-indexer/src/server/remote"
)

const (
	readChunkSize  = 32 * 1024
	chunkQueueSize = 256
)

// ErrNotStarted is returned by Send before Start or Attach
var ErrNotStarted = errors.New("transport not started")

// ErrClosed is returned by Send after Stop
var ErrClosed = errors.New("transport closed")

// Transport is a duplex framed channel over a child process's stdio, or
// over any stream pair handed to Attach.
type Transport struct {
	pm     *process.LSPProcessManager
	logger *common.SafeLogger

	writeMu sync.Mutex
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	proc    *process.ProcessInfo

	chunks   chan []byte
	frames   *protocol.FrameBuffer
	group    *errgroup.Group
	eof      chan struct{}
	closed   chan struct{}
	stopOnce sync.Once
	started  bool
}

// New returns an idle transport
func New(logger *common.SafeLogger) *Transport {
	if logger == nil {
		logger = common.LSPLogger
	}
	return &Transport{
		pm:     process.NewLSPProcessManager(logger),
		logger: logger,
		frames: protocol.NewFrameBuffer(logger),
		chunks: make(chan []byte, chunkQueueSize),
		eof:    make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// CommandLine returns the argv and working directory used to launch a
// server. Local servers run in root directly; remote servers run behind the
// tunnel prefix with a cd into root.
func CommandLine(cfg types.ClientConfig, root string) ([]string, string, error) {
	if cfg.Command == "" {
		return nil, "", fmt.Errorf("server command is empty")
	}
	if !cfg.Target.IsRemote() {
		return append([]string{cfg.Command}, cfg.Args...), root, nil
	}
	if !cfg.Target.Remote.Valid() {
		return nil, "", remote.ErrInvalidTarget
	}
	return remote.BuildServerArgv(*cfg.Target.Remote, root, cfg.Command, cfg.Args), "", nil
}

// Start spawns the server described by cfg for the workspace root. A spawn
// failure is returned and not retried.
func (t *Transport) Start(cfg types.ClientConfig, root string) error {
	if t.started {
		return fmt.Errorf("transport already started")
	}
	argv, dir, err := CommandLine(cfg, root)
	if err != nil {
		return err
	}
	if cfg.Target.IsRemote() {
		t.logger.Info("Starting %s on %s", cfg.Command, cfg.Target)
		t.logger.Debug("tunnel: %s", remote.TunnelPrefixString(*cfg.Target.Remote))
	}

	info, err := t.pm.StartProcess(argv, dir, cfg.Command)
	if err != nil {
		return err
	}
	t.proc = info
	t.attach(info.Stdin, info.Stdout, info.Stderr)
	return nil
}

// Attach runs the transport over existing streams, e.g. an in-process
// server. Done closes when stdout reaches EOF.
func (t *Transport) Attach(stdin io.WriteCloser, stdout io.ReadCloser, stderr io.ReadCloser) {
	t.attach(stdin, stdout, stderr)
}

func (t *Transport) attach(stdin io.WriteCloser, stdout io.ReadCloser, stderr io.ReadCloser) {
	t.stdin = stdin
	t.stdout = stdout
	t.stderr = stderr
	t.started = true

	t.group = &errgroup.Group{}
	t.group.Go(func() error {
		defer close(t.eof)
		return t.readLoop(stdout)
	})
	if stderr != nil {
		t.group.Go(func() error {
			return t.drainStderr(stderr)
		})
	}
}

func (t *Transport) readLoop(r io.Reader) error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case t.chunks <- chunk:
			case <-t.closed:
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("read server output: %w", err)
		}
	}
}

func (t *Transport) drainStderr(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		t.logger.Debug("[server stderr] %s", scanner.Text())
	}
	return nil
}

// Send frames body and writes it in one call
func (t *Transport) Send(body []byte) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	if !t.started {
		return ErrNotStarted
	}

	frame := protocol.EncodeFrame(body)
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.stdin.Write(frame); err != nil {
		return lsperrors.NewProcessError("language server", "communication", fmt.Errorf("write to server: %w", err))
	}
	return nil
}

// Poll drains the bytes read so far without blocking and returns every
// complete message body. Call from a single goroutine.
func (t *Transport) Poll() [][]byte {
	for {
		select {
		case chunk := <-t.chunks:
			t.frames.Write(chunk)
		default:
			return t.frames.Drain()
		}
	}
}

// Buffered returns the number of bytes held in an incomplete frame
func (t *Transport) Buffered() int {
	return t.frames.Len()
}

// Done is closed when the server side goes away: process exit for spawned
// servers, stdout EOF for attached streams.
func (t *Transport) Done() <-chan struct{} {
	if t.proc != nil {
		return t.proc.Done()
	}
	return t.eof
}

// Stop ends the connection. With a sender the LSP shutdown sequence is sent
// first; the process is killed if it does not exit. Safe to call more than
// once.
func (t *Transport) Stop(sender process.ShutdownSender) error {
	var stopErr error
	t.stopOnce.Do(func() {
		if !t.started {
			close(t.closed)
			return
		}

		if t.proc != nil {
			stopErr = t.pm.StopProcess(t.proc, sender)
		} else {
			if sender != nil {
				process.SendShutdownSequence(sender, t.logger)
			}
			t.closeStreams()
		}

		close(t.closed)
		if err := t.group.Wait(); err != nil {
			t.logger.Debug("transport reader ended with: %v", err)
		}
	})
	return stopErr
}

func (t *Transport) closeStreams() {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.stdin != nil {
		t.stdin.Close()
	}
	if t.stdout != nil {
		t.stdout.Close()
	}
	if t.stderr != nil {
		t.stderr.Close()
	}
}
