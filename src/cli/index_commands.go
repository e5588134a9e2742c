package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	clicommon "lsp-indexer/src/cli/common"
	"lsp-indexer/src/config"
	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/server"
	"lsp-indexer/src/server/indexer"
	"lsp-indexer/src/server/watcher"
)

// IndexOptions holds the index command flags
type IndexOptions struct {
	Root  string
	JSON  bool
	Watch bool
}

// SearchOptions holds the search command flags
type SearchOptions struct {
	Root  string
	Kind  string
	Limit int
	JSON  bool
}

// connFactory overrides the spawned language server; nil in production
var connFactory func() server.Conn

func openContext(parent context.Context, cfg *config.Config, root string, timeout time.Duration) (*clicommon.CommandContext, error) {
	opts := clicommon.CommandContextOptions{Root: root, Parent: parent, Timeout: timeout}
	if connFactory != nil {
		opts.Conn = connFactory()
	}
	return clicommon.NewCommandContextWithOptions(cfg, opts)
}

func logStatus(status string) {
	common.CLILogger.Debug("%s", status)
}

// RunIndex indexes the workspace and prints a summary. With Watch it keeps
// re-indexing after source changes until interrupted.
func RunIndex(ctx context.Context, w io.Writer, cfg *config.Config, opts IndexOptions) error {
	if opts.Watch && cfg.Remote.Enabled {
		return fmt.Errorf("--watch is only supported for local roots")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx, err := openContext(ctx, cfg, opts.Root, 0)
	if err != nil {
		return err
	}
	defer cmdCtx.Cleanup()

	ix := cmdCtx.NewIndexer(logStatus)
	if err := ix.Reindex(cmdCtx.Context); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	if err := writeSummary(w, ix, opts.JSON); err != nil {
		return err
	}
	if !opts.Watch {
		return nil
	}
	return watchAndReindex(cmdCtx, w, ix, opts.JSON)
}

func writeSummary(w io.Writer, ix *indexer.Indexer, asJSON bool) error {
	summary := summarize(ix)
	if asJSON {
		return clicommon.PrintJSON(w, summary)
	}
	printSummary(w, summary)
	return nil
}

// watchAndReindex re-runs the pipeline after each debounced batch of
// changes. A batch arriving mid-run stops that run and starts over.
func watchAndReindex(cmdCtx *clicommon.CommandContext, w io.Writer, ix *indexer.Indexer, asJSON bool) error {
	var outMu sync.Mutex
	fw, err := watcher.New(watcher.Options{
		Extensions: cmdCtx.Config.Indexing.Extensions,
		SkipDirs:   cmdCtx.Config.Indexing.SkipDirs,
		Debounce:   cmdCtx.Config.Indexing.WatchDebounce,
		Logger:     common.IndexLogger,
	}, func(events []watcher.ChangeEvent) {
		common.CLILogger.Info("%d source files changed, re-indexing", len(events))
		if err := ix.Reindex(cmdCtx.Context); err != nil {
			if cmdCtx.Context.Err() == nil {
				common.CLILogger.Error("re-index failed: %v", err)
			}
			return
		}
		if ix.State() != indexer.StateComplete {
			return
		}
		outMu.Lock()
		defer outMu.Unlock()
		if err := writeSummary(w, ix, asJSON); err != nil {
			common.CLILogger.Error("write summary: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.AddRoot(ix.Root()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", ix.Root(), err)
	}
	fw.Start()
	common.CLILogger.Info("Watching %s for changes (Ctrl+C to stop)", ix.Root())

	<-cmdCtx.Context.Done()
	ix.Stop()
	ix.Wait()
	return nil
}

// RunSearch indexes the workspace and prints the symbols matching query
func RunSearch(ctx context.Context, w io.Writer, cfg *config.Config, query string, opts SearchOptions) error {
	var kindOK func(indexer.IndexEntry) bool
	if opts.Kind != "" {
		kind, err := clicommon.ParseSymbolKind(opts.Kind)
		if err != nil {
			return err
		}
		kindOK = func(e indexer.IndexEntry) bool { return e.Symbol.Kind == kind }
	}
	if opts.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	cmdCtx, err := openContext(ctx, cfg, opts.Root, 0)
	if err != nil {
		return err
	}
	defer cmdCtx.Cleanup()

	ix := cmdCtx.NewIndexer(logStatus)
	if err := ix.Reindex(cmdCtx.Context); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	var hits []indexer.IndexEntry
	for _, e := range ix.SearchSymbols(query) {
		if kindOK != nil && !kindOK(e) {
			continue
		}
		hits = append(hits, e)
		if opts.Limit > 0 && len(hits) == opts.Limit {
			break
		}
	}

	rows := toSymbolRows(hits, ix.Root())
	if opts.JSON {
		return clicommon.PrintJSON(w, rows)
	}
	printSymbolRows(w, rows)
	return nil
}
