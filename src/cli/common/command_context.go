package common

import (
	"context"
	"fmt"
	"time"

	"lsp-indexer/src/config"
	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/server"
	"lsp-indexer/src/server/documents"
	"lsp-indexer/src/server/indexer"
)

// CommandContext encapsulates common CLI command lifecycle components
type CommandContext struct {
	Config  *config.Config
	Session *server.Session
	Root    string
	Context context.Context
	Cancel  context.CancelFunc

	opened  []string
	started bool
}

// CommandContextOptions configures CommandContext creation
type CommandContextOptions struct {
	Root    string
	Parent  context.Context
	Timeout time.Duration // zero means no deadline
	// Conn replaces the spawned language server, used by tests
	Conn server.Conn
}

// NewCommandContext resolves the root, starts the language server and waits
// for the initialize handshake.
func NewCommandContext(cfg *config.Config, root string, timeout time.Duration) (*CommandContext, error) {
	return NewCommandContextWithOptions(cfg, CommandContextOptions{Root: root, Timeout: timeout})
}

// NewCommandContextWithOptions creates a CommandContext with custom options
func NewCommandContextWithOptions(cfg *config.Config, opts CommandContextOptions) (*CommandContext, error) {
	var ctx context.Context
	var cancel context.CancelFunc
	if opts.Parent != nil {
		ctx, cancel = common.WithOptionalTimeout(opts.Parent, opts.Timeout)
	} else {
		ctx, cancel = common.CreateContext(opts.Timeout)
	}

	root, err := ResolveRoot(ctx, cfg, opts.Root)
	if err != nil {
		cancel()
		return nil, err
	}

	if opts.Conn == nil && !cfg.Remote.Enabled {
		if common.FirstExistingExecutable([]string{cfg.Server.Command}) == "" {
			cancel()
			return nil, fmt.Errorf("language server %q not found on PATH", cfg.Server.Command)
		}
	}

	session := server.NewSession(server.Options{
		Client:            cfg.ClientConfig(),
		Root:              root,
		Logger:            common.LSPLogger,
		PollInterval:      cfg.Indexing.PollInterval,
		InitializeTimeout: cfg.Timeouts.Initialize,
		RequestTimeout:    cfg.Timeouts.Request,
		Conn:              opts.Conn,
	})

	cmdCtx := &CommandContext{
		Config:  cfg,
		Session: session,
		Root:    root,
		Context: ctx,
		Cancel:  cancel,
	}

	if err := cmdCtx.start(); err != nil {
		cmdCtx.Cleanup()
		return nil, err
	}
	return cmdCtx, nil
}

func (c *CommandContext) start() error {
	if err := c.Session.Start(); err != nil {
		return fmt.Errorf("failed to start language server: %w", err)
	}
	c.started = true
	if err := c.Session.InitializeAndWait(c.Context); err != nil {
		return fmt.Errorf("failed to initialize language server: %w", err)
	}
	return nil
}

// OpenDocument resolves file, reads it and opens it in the session. The
// document uri is returned; Cleanup closes it again.
func (c *CommandContext) OpenDocument(file string) (string, error) {
	resolved, err := ResolveFile(c.Context, c.Config, c.Root, file)
	if err != nil {
		return "", err
	}
	content, err := ReadDocument(c.Context, c.Config, resolved)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", resolved, err)
	}

	uri := DocumentURI(c.Config, resolved)
	if err := c.Session.DidOpen(uri, documents.DetectLanguage(resolved), string(content)); err != nil {
		return "", err
	}
	c.opened = append(c.opened, uri)
	return uri, nil
}

// NewIndexer returns an indexer over the session configured from the
// indexing section
func (c *CommandContext) NewIndexer(onStatus func(string)) *indexer.Indexer {
	opts := indexer.Options{
		Root:             c.Root,
		Target:           c.Config.Target(),
		Source:           c.Session,
		Logger:           common.IndexLogger,
		StepTimeout:      c.Config.Indexing.StepTimeout,
		Extensions:       c.Config.Indexing.Extensions,
		SkipDirs:         c.Config.Indexing.SkipDirs,
		MaxRemoteDepth:   c.Config.Indexing.MaxRemoteDepth,
		RespectGitignore: c.Config.Indexing.RespectGitignore,
		OnStatus:         onStatus,
	}
	if c.Config.Remote.Enabled {
		opts.Remote = NewRemoteAdapter(c.Config)
	}
	return indexer.New(opts)
}

// Cleanup closes opened documents and stops the session
func (c *CommandContext) Cleanup() {
	if c.Session != nil && c.started {
		for _, uri := range c.opened {
			_ = c.Session.DidClose(uri)
		}
		c.opened = nil
		if err := c.Session.Stop(); err != nil {
			common.CLILogger.Debug("session stop: %v", err)
		}
	}
	if c.Cancel != nil {
		c.Cancel()
	}
}
