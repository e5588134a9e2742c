// Package watcher turns file-system activity under a local workspace root
// into debounced change batches that trigger a re-index.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/constants"
)

// Operation is the kind of change seen for a path
type Operation string

const (
	OpWrite  Operation = "write"
	OpCreate Operation = "create"
	OpRemove Operation = "remove"
	OpRename Operation = "rename"
)

// ChangeEvent is the latest change recorded for one path in a batch
type ChangeEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures a FileWatcher. Zero values select the defaults.
type Options struct {
	Extensions []string
	SkipDirs   []string
	Debounce   time.Duration
	Logger     *common.SafeLogger
}

// FileWatcher watches a directory tree and reports batches of changes to
// source files once activity has been quiet for the debounce delay.
type FileWatcher struct {
	watcher    *fsnotify.Watcher
	logger     *common.SafeLogger
	extensions map[string]bool
	skipDirs   map[string]bool
	debounce   time.Duration
	onChange   func([]ChangeEvent)

	mu       sync.Mutex
	pending  map[string]ChangeEvent
	timer    *time.Timer
	roots    []string
	started  bool
	stopped  bool
	stopCh   chan struct{}
	loopDone chan struct{}
}

// New creates a watcher. onChange runs on its own goroutine for each batch.
func New(opts Options, onChange func([]ChangeEvent)) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if opts.Debounce <= 0 {
		opts.Debounce = constants.FileWatchDebounceDelay
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

	fw := &FileWatcher{
		watcher:    w,
		logger:     logger,
		extensions: make(map[string]bool, len(opts.Extensions)),
		skipDirs:   make(map[string]bool, len(opts.SkipDirs)),
		debounce:   opts.Debounce,
		onChange:   onChange,
		pending:    make(map[string]ChangeEvent),
		stopCh:     make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
	for _, ext := range opts.Extensions {
		fw.extensions[strings.ToLower(ext)] = true
	}
	for _, d := range opts.SkipDirs {
		fw.skipDirs[d] = true
	}
	return fw, nil
}

// AddRoot watches root and every non-skipped directory below it
func (fw *FileWatcher) AddRoot(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if err := fw.watcher.Add(abs); err != nil {
		return err
	}
	fw.mu.Lock()
	fw.roots = append(fw.roots, abs)
	fw.mu.Unlock()
	fw.logger.Debug("watching %s", abs)
	fw.addTree(abs)
	return nil
}

// Roots returns the watched roots
func (fw *FileWatcher) Roots() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return append([]string(nil), fw.roots...)
}

func (fw *FileWatcher) ignoredDir(name string) bool {
	return strings.HasPrefix(name, ".") || fw.skipDirs[name]
}

func (fw *FileWatcher) addTree(root string) {
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != root && fw.ignoredDir(d.Name()) {
			return filepath.SkipDir
		}
		if p != root {
			if err := fw.watcher.Add(p); err != nil {
				fw.logger.Warn("cannot watch %s: %v", p, err)
			}
		}
		return nil
	})
}

// Start begins processing events
func (fw *FileWatcher) Start() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.started || fw.stopped {
		return
	}
	fw.started = true
	go fw.loop()
}

func (fw *FileWatcher) loop() {
	defer close(fw.loopDone)
	for {
		select {
		case <-fw.stopCh:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("watcher error: %v", err)
		}
	}
}

func (fw *FileWatcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !fw.ignoredDir(filepath.Base(event.Name)) {
				fw.addTree(event.Name)
				fw.watchNew(event.Name)
			}
			return
		}
	}

	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !fw.extensions[strings.ToLower(filepath.Ext(name))] {
		return
	}

	var op Operation
	switch {
	case event.Has(fsnotify.Write):
		op = OpWrite
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Remove):
		op = OpRemove
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}
	fw.record(ChangeEvent{Path: event.Name, Operation: op, Timestamp: time.Now()})
}

func (fw *FileWatcher) watchNew(dir string) {
	if err := fw.watcher.Add(dir); err != nil {
		fw.logger.Warn("cannot watch %s: %v", dir, err)
	}
}

// record keeps the latest event per path and restarts the quiet period
func (fw *FileWatcher) record(ev ChangeEvent) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.stopped {
		return
	}
	fw.pending[ev.Path] = ev
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, fw.flush)
}

func (fw *FileWatcher) flush() {
	fw.mu.Lock()
	if len(fw.pending) == 0 || fw.stopped {
		fw.mu.Unlock()
		return
	}
	events := make([]ChangeEvent, 0, len(fw.pending))
	for _, ev := range fw.pending {
		events = append(events, ev)
	}
	fw.pending = make(map[string]ChangeEvent)
	fw.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	fw.logger.Debug("flushing %d changes", len(events))
	if fw.onChange != nil {
		go fw.onChange(events)
	}
}

// Close stops the watcher and drops pending events. Safe to call more than
// once.
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	started := fw.started
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.pending = make(map[string]ChangeEvent)
	close(fw.stopCh)
	fw.mu.Unlock()

	err := fw.watcher.Close()
	if started {
		<-fw.loopDone
	}
	return err
}
