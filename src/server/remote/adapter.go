package remote

import (
	"context"
	stderrors "errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/constants"
	"lsp-indexer/src/internal/errors"
	"lsp-indexer/src/internal/types"
)

// ErrInvalidTarget is returned by every Adapter operation when the target
// is not an enabled remote with a host.
var ErrInvalidTarget = errors.NewStateError(errors.RemoteInvalidTarget, "remote target is not enabled or has no host")

// ssh exits with 255 when the tunnel itself fails
const sshFailureExitCode = 255

// Entry is one child of a remote directory
type Entry struct {
	Name  string
	IsDir bool
}

// fileExtensions are names treated as files without a test -d round trip
var fileExtensions = map[string]bool{
	".txt": true, ".md": true, ".json": true, ".yaml": true, ".yml": true,
	".toml": true, ".xml": true, ".cmake": true, ".mk": true, ".sh": true,
	".o": true, ".a": true, ".so": true, ".log": true, ".lock": true,
}

func init() {
	for _, ext := range constants.GetAllSupportedExtensions() {
		fileExtensions[ext] = true
	}
}

// Adapter executes file-system primitives on a remote host
type Adapter struct {
	target         types.RemoteTarget
	valid          bool
	runner         CommandRunner
	commandTimeout time.Duration
	logger         *common.SafeLogger
}

// Option configures an Adapter
type Option func(*Adapter)

// WithRunner replaces the exec-backed runner
func WithRunner(r CommandRunner) Option {
	return func(a *Adapter) { a.runner = r }
}

// WithCommandTimeout sets the per-command budget added to the connect timeout
func WithCommandTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.commandTimeout = d
		}
	}
}

// WithLogger sets the adapter logger
func WithLogger(l *common.SafeLogger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter returns an adapter for target. A local or invalid target yields
// an adapter whose operations all fail with ErrInvalidTarget.
func NewAdapter(target types.ExecutionTarget, opts ...Option) *Adapter {
	a := &Adapter{
		runner:         ExecRunner{},
		commandTimeout: constants.DefaultRemoteCommandTimeout,
		logger:         common.IndexLogger,
	}
	if target.Remote != nil {
		a.target = *target.Remote
		a.valid = target.Remote.Valid()
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Valid reports whether the adapter can run commands
func (a *Adapter) Valid() bool {
	return a.valid
}

// Timeout is the bound applied to each remote call
func (a *Adapter) Timeout() time.Duration {
	return a.target.ConnectTimeout() + a.commandTimeout
}

func (a *Adapter) run(ctx context.Context, command string) ([]byte, error) {
	if !a.valid {
		return nil, ErrInvalidTarget
	}

	ctx, cancel := context.WithTimeout(ctx, a.Timeout())
	defer cancel()

	argv := append(BuildTunnelPrefix(a.target), command)
	a.logger.Debug("remote: %s", command)

	stdout, stderr, code, err := a.runner.Run(ctx, argv)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, errors.NewTimeoutError("remote "+firstWord(command), a.Timeout(), err)
		}
		return nil, errors.NewRemoteError(a.target.Host, command, -1, string(stderr), err)
	}
	if code != 0 {
		return stdout, errors.NewRemoteError(a.target.Host, command, code, string(undoPTYTranslation(stderr)), nil)
	}
	return undoPTYTranslation(stdout), nil
}

// ListDirectory returns the non-hidden children of dir in name order
func (a *Adapter) ListDirectory(ctx context.Context, dir string) ([]Entry, error) {
	out, err := a.run(ctx, "find "+QuotePath(dir)+` -mindepth 1 -maxdepth 1 -printf '%f\t%y\n'`)
	typed := true
	if err != nil {
		var re *errors.RemoteError
		if !stderrors.As(err, &re) || re.ExitCode == sshFailureExitCode {
			return nil, err
		}
		// find without -printf (busybox, BSD): names only.
		out, err = a.run(ctx, "find "+QuotePath(dir)+" -mindepth 1 -maxdepth 1")
		if err != nil {
			return nil, err
		}
		typed = false
	}

	var entries []Entry
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		name, kind := line, ""
		if typed {
			if n, k, ok := strings.Cut(line, "\t"); ok {
				name, kind = n, k
			}
		} else {
			name = path.Base(line)
		}
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}

		var isDir bool
		switch kind {
		case "d":
			isDir = true
		case "f":
			isDir = false
		default:
			isDir = a.classify(ctx, dir, name)
		}
		entries = append(entries, Entry{Name: name, IsDir: isDir})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// classify decides file vs directory for an entry without a type column.
// Known file extensions short-circuit; anything else asks the host.
func (a *Adapter) classify(ctx context.Context, dir, name string) bool {
	if ext := strings.ToLower(path.Ext(name)); ext != "" && fileExtensions[ext] {
		return false
	}
	isDir, err := a.IsDirectory(ctx, path.Join(dir, name))
	if err != nil {
		a.logger.Debug("remote: could not classify %s: %v", name, err)
		return false
	}
	return isDir
}

// IsDirectory runs test -d on the host
func (a *Adapter) IsDirectory(ctx context.Context, p string) (bool, error) {
	_, err := a.run(ctx, "test -d "+QuotePath(p))
	if err == nil {
		return true, nil
	}
	var re *errors.RemoteError
	if stderrors.As(err, &re) && re.ExitCode == 1 {
		return false, nil
	}
	return false, err
}

// ReadFile returns the file content; a non-zero exit is an error
func (a *Adapter) ReadFile(ctx context.Context, p string) ([]byte, error) {
	out, err := a.run(ctx, "cat "+QuotePath(p))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpandTilde resolves a ~-prefixed path on the host. Any failure or empty
// output returns p unchanged.
func (a *Adapter) ExpandTilde(ctx context.Context, p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	out, err := a.run(ctx, "eval echo "+ShellQuote(p))
	if err != nil {
		a.logger.Debug("remote: could not expand %s: %v", p, err)
		return p
	}
	expanded := strings.TrimSpace(string(out))
	if expanded == "" {
		return p
	}
	return expanded
}

// undoPTYTranslation reverses the NL -> CR NL mapping of a forced remote pty
func undoPTYTranslation(b []byte) []byte {
	return []byte(strings.ReplaceAll(string(b), "\r\n", "\n"))
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}

func (e Entry) String() string {
	if e.IsDir {
		return fmt.Sprintf("%s/", e.Name)
	}
	return e.Name
}
