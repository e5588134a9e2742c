package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	clicommon "lsp-indexer/src/cli/common"
	"lsp-indexer/src/config"
	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/models/lsp"
)

// QueryOptions identifies the document, and for positional queries the
// 1-based position, a query runs against
type QueryOptions struct {
	Root   string
	File   string
	Line   string
	Column string
	JSON   bool
}

func positionQuery(args []string) (*config.Config, QueryOptions, error) {
	cfg, err := loadCommandConfig()
	if err != nil {
		return nil, QueryOptions{}, err
	}
	return cfg, QueryOptions{
		Root:   rootDir,
		File:   args[0],
		Line:   args[1],
		Column: args[2],
		JSON:   formatJSON,
	}, nil
}

// withDocument starts a session, opens the file and hands its uri to fn
func withDocument(cfg *config.Config, opts QueryOptions, fn func(cmdCtx *clicommon.CommandContext, uri string) error) error {
	cmdCtx, err := openContext(context.Background(), cfg, opts.Root, 0)
	if err != nil {
		return err
	}
	defer cmdCtx.Cleanup()

	uri, err := cmdCtx.OpenDocument(opts.File)
	if err != nil {
		return err
	}
	return fn(cmdCtx, uri)
}

// RunSymbols prints the symbol outline of one file
func RunSymbols(w io.Writer, cfg *config.Config, opts QueryOptions) error {
	return withDocument(cfg, opts, func(cmdCtx *clicommon.CommandContext, uri string) error {
		symbols, err := cmdCtx.Session.DocumentSymbols(cmdCtx.Context, uri)
		if err != nil {
			return err
		}
		if opts.JSON {
			return clicommon.PrintJSON(w, symbols)
		}
		if len(symbols) == 0 {
			fmt.Fprintln(w, "No symbols found")
			return nil
		}
		printSymbolTree(w, symbols, 0)
		return nil
	})
}

// RunDefinition prints the definition locations of the symbol at a position
func RunDefinition(w io.Writer, cfg *config.Config, opts QueryOptions) error {
	pos, err := clicommon.ParsePosition(opts.Line, opts.Column)
	if err != nil {
		return err
	}
	return withDocument(cfg, opts, func(cmdCtx *clicommon.CommandContext, uri string) error {
		locations, err := cmdCtx.Session.Definition(cmdCtx.Context, uri, pos)
		if err != nil {
			return err
		}
		return writeLocations(w, locations, cmdCtx.Root, opts.JSON)
	})
}

// RunReferences prints the references to the symbol at a position, the
// declaration included
func RunReferences(w io.Writer, cfg *config.Config, opts QueryOptions) error {
	pos, err := clicommon.ParsePosition(opts.Line, opts.Column)
	if err != nil {
		return err
	}
	return withDocument(cfg, opts, func(cmdCtx *clicommon.CommandContext, uri string) error {
		locations, err := cmdCtx.Session.References(cmdCtx.Context, uri, pos)
		if err != nil {
			return err
		}
		return writeLocations(w, locations, cmdCtx.Root, opts.JSON)
	})
}

// RunCompletion prints the completion items offered at a position
func RunCompletion(w io.Writer, cfg *config.Config, opts QueryOptions) error {
	pos, err := clicommon.ParsePosition(opts.Line, opts.Column)
	if err != nil {
		return err
	}
	return withDocument(cfg, opts, func(cmdCtx *clicommon.CommandContext, uri string) error {
		items, err := cmdCtx.Session.Completions(cmdCtx.Context, uri, pos)
		if err != nil {
			return err
		}
		rows := toCompletionRows(items)
		if opts.JSON {
			return clicommon.PrintJSON(w, rows)
		}
		printCompletionRows(w, rows)
		return nil
	})
}

// RunDiagnostics opens a file and prints what the server publishes for it
// within wait
func RunDiagnostics(w io.Writer, cfg *config.Config, opts QueryOptions, wait time.Duration) error {
	return withDocument(cfg, opts, func(cmdCtx *clicommon.CommandContext, uri string) error {
		store := cmdCtx.Session.Diagnostics()
		deadline := time.NewTimer(wait)
		defer deadline.Stop()
		tick := time.NewTicker(50 * time.Millisecond)
		defer tick.Stop()

	collect:
		for {
			select {
			case <-deadline.C:
				break collect
			case <-cmdCtx.Context.Done():
				break collect
			case <-tick.C:
				if len(store.Get(uri)) > 0 {
					break collect
				}
			}
		}

		rows := toDiagnosticRows(common.URIToFilePath(uri), store.Get(uri))
		if opts.JSON {
			return clicommon.PrintJSON(w, rows)
		}
		printDiagnosticRows(w, rows)
		return nil
	})
}

func writeLocations(w io.Writer, locations []lsp.Location, root string, asJSON bool) error {
	rows := toLocationRows(locations, root)
	if asJSON {
		return clicommon.PrintJSON(w, rows)
	}
	printLocationRows(w, rows)
	return nil
}
