// Package indexer builds a flat workspace symbol index by walking a root
// and asking the language server for each file's document symbols, one file
// at a time.
package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/constants"
	"lsp-indexer/src/internal/models/lsp"
	"lsp-indexer/src/internal/types"
	"lsp-indexer/src/server/remote"
)

// SymbolSource is the slice of a Session the pipeline drives
type SymbolSource interface {
	DidOpen(uri, languageID, content string) error
	DidClose(uri string) error
	DocumentSymbolsAsync(uri string, cb func([]lsp.DocumentSymbol)) error
}

// RemoteFS lists and reads files on a remote target
type RemoteFS interface {
	ListDirectory(ctx context.Context, dir string) ([]remote.Entry, error)
	ReadFile(ctx context.Context, p string) ([]byte, error)
	ExpandTilde(ctx context.Context, p string) string
}

// State is the pipeline position
type State int

const (
	StateIdle State = iota
	StateScanning
	StateIndexing
	StateComplete
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateScanning:
		return "Scanning"
	case StateIndexing:
		return "Indexing"
	case StateComplete:
		return "Complete"
	case StateStopped:
		return "Stopped"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IndexEntry is one symbol of the flat index. Symbol.Children is always nil;
// Container names the enclosing symbol, if any.
type IndexEntry struct {
	FilePath  string
	Symbol    lsp.DocumentSymbol
	Container string
}

// Options configures an Indexer. Zero values select the defaults.
type Options struct {
	Root             string
	Target           types.ExecutionTarget
	Source           SymbolSource
	Remote           RemoteFS
	Logger           *common.SafeLogger
	LogSink          common.LogSink
	StepTimeout      time.Duration
	Extensions       []string
	SkipDirs         []string
	MaxRemoteDepth   int
	RespectGitignore bool
	OnStatus         func(status string)
}

// run is one Reindex pass
type run struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (r *run) halt() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *run) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// Indexer owns the aggregate index for one workspace root
type Indexer struct {
	opts       Options
	logger     *common.SafeLogger
	extensions map[string]bool
	skipDirs   map[string]bool

	beginMu sync.Mutex

	mu       sync.RWMutex
	scanRoot string
	state    State
	status   string
	files    []string
	entries  []IndexEntry
	indexed  int
	current  int
	step     *atomic.Bool
	cur      *run
}

// New returns an idle indexer
func New(opts Options) *Indexer {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = constants.DefaultStepTimeout
	}
	if opts.MaxRemoteDepth <= 0 {
		opts.MaxRemoteDepth = constants.DefaultMaxRemoteDepth
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = constants.GetAllSupportedExtensions()
	}
	if opts.SkipDirs == nil {
		opts.SkipDirs = constants.GetSkipDirectories()
	}

	logger := opts.Logger
	if logger == nil {
		logger = common.IndexLogger
	}
	if opts.LogSink != nil {
		logger = logger.WithSink(opts.LogSink)
	}

	ix := &Indexer{
		opts:       opts,
		logger:     logger,
		extensions: make(map[string]bool, len(opts.Extensions)),
		skipDirs:   make(map[string]bool, len(opts.SkipDirs)),
	}
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		ix.extensions[strings.ToLower(ext)] = true
	}
	for _, d := range opts.SkipDirs {
		ix.skipDirs[d] = true
	}
	return ix
}

// Reindex discards the current index and rebuilds it. It returns once the
// pipeline is Complete, Stopped or Failed. A run already in progress is
// stopped first.
func (ix *Indexer) Reindex(ctx context.Context) error {
	return ix.execute(ctx, ix.begin())
}

// Start runs Reindex in the background. Wait blocks until it ends.
func (ix *Indexer) Start(ctx context.Context) {
	r := ix.begin()
	go func() {
		if err := ix.execute(ctx, r); err != nil {
			ix.logger.Error("Indexing failed: %v", err)
		}
	}()
}

// Wait blocks until the current run, if any, ends
func (ix *Indexer) Wait() {
	ix.mu.RLock()
	r := ix.cur
	ix.mu.RUnlock()
	if r != nil {
		<-r.done
	}
}

// Stop halts the pipeline without waiting for the in-flight response. The
// outstanding step is marked resolved so a late answer is ignored. A
// completed index stays Complete.
func (ix *Indexer) Stop() {
	ix.mu.Lock()
	r := ix.cur
	if r == nil || r.stopped() {
		ix.mu.Unlock()
		return
	}
	select {
	case <-r.done:
		ix.mu.Unlock()
		return
	default:
	}
	if ix.step != nil {
		ix.step.CompareAndSwap(false, true)
	}
	r.halt()
	changed := false
	if ix.state != StateComplete && ix.state != StateFailed {
		ix.state = StateStopped
		ix.status = "Indexing stopped"
		changed = true
	}
	ix.mu.Unlock()

	if changed {
		ix.publish("Indexing stopped")
	}
}

func (ix *Indexer) begin() *run {
	ix.beginMu.Lock()
	defer ix.beginMu.Unlock()

	ix.Stop()
	ix.Wait()

	r := &run{stop: make(chan struct{}), done: make(chan struct{})}
	ix.mu.Lock()
	ix.cur = r
	ix.state = StateIdle
	ix.status = ""
	ix.files = nil
	ix.entries = nil
	ix.indexed = 0
	ix.current = 0
	ix.step = nil
	ix.mu.Unlock()
	return r
}

func (ix *Indexer) execute(ctx context.Context, r *run) error {
	defer close(r.done)

	ix.transition(r, StateScanning, "Scanning...")
	started := time.Now()
	files, err := ix.scan(ctx, r)
	if r.stopped() {
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			ix.Stop()
			return ctx.Err()
		}
		ix.transition(r, StateFailed, fmt.Sprintf("Scan failed: %v", err))
		return fmt.Errorf("scan %s: %w", ix.opts.Root, err)
	}

	ix.mu.Lock()
	ix.files = files
	ix.mu.Unlock()
	ix.logger.Info("Found %d files to index under %s", len(files), ix.opts.Root)

	if ix.opts.Source == nil && len(files) > 0 {
		ix.transition(r, StateFailed, "Indexing failed: no language server")
		return fmt.Errorf("no symbol source configured")
	}

	for i, file := range files {
		if r.stopped() {
			return nil
		}
		if ctx.Err() != nil {
			ix.Stop()
			return ctx.Err()
		}

		ix.mu.Lock()
		ix.current = i
		ix.mu.Unlock()
		ix.transition(r, StateIndexing, fmt.Sprintf("Indexing %d/%d: %s", i+1, len(files), ix.displayName(file)))
		ix.indexFile(ctx, r, file)
	}

	if r.stopped() {
		return nil
	}
	if ctx.Err() != nil {
		ix.Stop()
		return ctx.Err()
	}

	ix.mu.RLock()
	symbols, indexed := len(ix.entries), ix.indexed
	ix.mu.RUnlock()
	ix.transition(r, StateComplete, fmt.Sprintf("Indexed %d symbols in %d files", symbols, indexed))
	ix.logger.Info("Indexed %d symbols in %d files (%s)", symbols, indexed, time.Since(started).Round(time.Millisecond))
	return nil
}

// indexFile runs one pipeline step. Exactly one of the symbols callback and
// the step timer resolves it; the loser does nothing.
func (ix *Indexer) indexFile(ctx context.Context, r *run, file string) {
	content, err := ix.readFile(ctx, file)
	if err != nil {
		ix.logger.Warn("Skipping %s: %v", ix.displayName(file), common.SanitizeErrorForLogging(err))
		return
	}

	src := ix.opts.Source
	uri := ix.uriFor(file)
	if err := src.DidOpen(uri, "", string(content)); err != nil {
		ix.logger.Warn("Skipping %s: %v", ix.displayName(file), err)
		return
	}

	resolved := &atomic.Bool{}
	symbolsCh := make(chan []lsp.DocumentSymbol, 1)
	timedOut := make(chan struct{})

	ix.mu.Lock()
	ix.step = resolved
	ix.mu.Unlock()
	defer func() {
		ix.mu.Lock()
		ix.step = nil
		ix.mu.Unlock()
	}()

	err = src.DocumentSymbolsAsync(uri, func(symbols []lsp.DocumentSymbol) {
		if resolved.CompareAndSwap(false, true) {
			symbolsCh <- symbols
		}
	})
	if err != nil {
		resolved.Store(true)
		ix.logger.Warn("documentSymbol for %s failed: %v", ix.displayName(file), err)
		ix.closeDocument(uri)
		return
	}

	timer := time.AfterFunc(ix.opts.StepTimeout, func() {
		if resolved.CompareAndSwap(false, true) {
			close(timedOut)
		}
	})
	defer timer.Stop()

	select {
	case symbols := <-symbolsCh:
		if !r.stopped() {
			ix.collect(file, symbols)
		}
	case <-timedOut:
		ix.logger.Warn("Timed out after %s waiting for symbols of %s", ix.opts.StepTimeout, ix.displayName(file))
	case <-r.stop:
	case <-ctx.Done():
		resolved.Store(true)
	}
	ix.closeDocument(uri)
}

func (ix *Indexer) closeDocument(uri string) {
	if err := ix.opts.Source.DidClose(uri); err != nil {
		ix.logger.Debug("didClose %s: %v", uri, err)
	}
}

func (ix *Indexer) collect(file string, symbols []lsp.DocumentSymbol) {
	entries := flatten(file, "", symbols, nil)
	ix.mu.Lock()
	ix.entries = append(ix.entries, entries...)
	ix.indexed++
	ix.mu.Unlock()
	ix.logger.Debug("%s: %d symbols", ix.displayName(file), len(entries))
}

// flatten appends symbols in pre-order: each parent before its children,
// siblings in server order.
func flatten(file, container string, symbols []lsp.DocumentSymbol, out []IndexEntry) []IndexEntry {
	for _, sym := range symbols {
		children := sym.Children
		sym.Children = nil
		out = append(out, IndexEntry{FilePath: file, Symbol: sym, Container: container})
		out = flatten(file, sym.Name, children, out)
	}
	return out
}

// transition sets state and status unless r has been stopped
func (ix *Indexer) transition(r *run, state State, status string) {
	ix.mu.Lock()
	if r.stopped() || ix.cur != r {
		ix.mu.Unlock()
		return
	}
	ix.state = state
	ix.status = status
	ix.mu.Unlock()
	ix.publish(status)
}

func (ix *Indexer) publish(status string) {
	ix.logger.Debug("status: %s", status)
	if ix.opts.OnStatus != nil {
		ix.opts.OnStatus(status)
	}
}

func (ix *Indexer) isRemote() bool {
	return ix.opts.Target.IsRemote()
}

func (ix *Indexer) readFile(ctx context.Context, file string) ([]byte, error) {
	if ix.isRemote() {
		if ix.opts.Remote == nil {
			return nil, remote.ErrInvalidTarget
		}
		return ix.opts.Remote.ReadFile(ctx, file)
	}
	return readLocalFile(file)
}

func (ix *Indexer) uriFor(file string) string {
	if ix.isRemote() {
		return common.RemotePathToURI(file)
	}
	return common.FilePathToURI(file)
}

// displayName is the file path relative to the scanned root when possible
func (ix *Indexer) displayName(file string) string {
	ix.mu.RLock()
	root := ix.scanRoot
	ix.mu.RUnlock()
	if root == "" {
		return file
	}
	if ix.isRemote() {
		if rel := strings.TrimPrefix(file, strings.TrimSuffix(root, "/")+"/"); rel != file {
			return rel
		}
		return file
	}
	if rel, err := filepath.Rel(root, file); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return file
}

// Root returns the root of the last scan, after ~ expansion and
// absolutization
func (ix *Indexer) Root() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.scanRoot == "" {
		return ix.opts.Root
	}
	return ix.scanRoot
}
