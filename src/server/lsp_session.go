package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/constants"
	"lsp-indexer/src/internal/errors"
	"lsp-indexer/src/internal/models/lsp"
	"lsp-indexer/src/internal/types"
	"lsp-indexer/src/internal/version"
	"lsp-indexer/src/server/documents"
	"lsp-indexer/src/server/process"
	"lsp-indexer/src/server/protocol"
	"lsp-indexer/src/server/transport"
)

// SessionState is the lifecycle position of a Session
type SessionState int

const (
	StateNotStarted SessionState = iota
	StateStarting
	StateAwaitingInitializeResponse
	StateReady
	StateShuttingDown
	StateStopped
)

func (s SessionState) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateStarting:
		return "Starting"
	case StateAwaitingInitializeResponse:
		return "AwaitingInitializeResponse"
	case StateReady:
		return "Ready"
	case StateShuttingDown:
		return "ShuttingDown"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

var (
	// ErrNotReady rejects document and query operations outside Ready
	ErrNotReady = errors.NewStateError(errors.SessionNotReady, "session is not ready")
	// ErrInvalidState rejects lifecycle calls made from the wrong state
	ErrInvalidState = errors.NewStateError(errors.InvalidState, "operation not valid in current state")
	// ErrSessionStopped is returned to waiters when the session stops under them
	ErrSessionStopped = errors.NewStateError(errors.SessionStopped, "session stopped")
	// ErrDocumentNotOpen rejects operations on documents that are not open
	ErrDocumentNotOpen = documents.ErrDocumentNotOpen
	// ErrAlreadyOpen rejects a second open of the same document
	ErrAlreadyOpen = documents.ErrAlreadyOpen
)

// Conn is the framed channel a Session drives
type Conn interface {
	Start(cfg types.ClientConfig, root string) error
	Send(body []byte) error
	Poll() [][]byte
	Done() <-chan struct{}
	Stop(sender process.ShutdownSender) error
}

// Options configures a Session. Zero durations select the defaults.
type Options struct {
	Client            types.ClientConfig
	Root              string
	Logger            *common.SafeLogger
	LogSink           common.LogSink
	PollInterval      time.Duration
	InitializeTimeout time.Duration
	RequestTimeout    time.Duration
	OnDiagnostics     func(uri string, diagnostics []lsp.Diagnostic)
	// Conn overrides the process-backed transport
	Conn Conn
}

// Session is one client connection to a language server
type Session struct {
	opts   Options
	logger *common.SafeLogger
	conn   Conn
	engine *protocol.Engine
	docs   *documents.Tracker
	diags  *DiagnosticStore

	mu           sync.Mutex
	state        SessionState
	initialized  bool
	capabilities json.RawMessage

	// dispatching is set while the poll goroutine runs continuations
	dispatching atomic.Bool

	stopLoop  chan struct{}
	loopDone  chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewSession wires a session without starting anything
func NewSession(opts Options) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = constants.DefaultPollInterval
	}
	if opts.InitializeTimeout <= 0 {
		opts.InitializeTimeout = constants.DefaultInitializeTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = constants.DefaultRequestTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = common.LSPLogger
	}
	if opts.LogSink != nil {
		logger = logger.WithSink(opts.LogSink)
	}

	conn := opts.Conn
	if conn == nil {
		conn = transport.New(logger)
	}

	s := &Session{
		opts:     opts,
		logger:   logger,
		conn:     conn,
		diags:    NewDiagnosticStore(),
		stopLoop: make(chan struct{}),
		loopDone: make(chan struct{}),
		closed:   make(chan struct{}),
	}
	s.engine = protocol.NewEngine(conn, logger)
	s.docs = documents.NewTracker(s.engine, logger)
	s.engine.SetDiagnosticsHandler(s.handleDiagnostics)
	return s
}

// State returns the lifecycle state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsReady reports whether the handshake completed
func (s *Session) IsReady() bool {
	return s.State() == StateReady
}

// Root returns the workspace root the session was created for
func (s *Session) Root() string {
	return s.opts.Root
}

// Diagnostics returns the per-document diagnostic store
func (s *Session) Diagnostics() *DiagnosticStore {
	return s.diags
}

// ServerCapabilities returns the raw capabilities from the initialize result
func (s *Session) ServerCapabilities() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capabilities
}

// Pending returns the number of requests awaiting a response
func (s *Session) Pending() int {
	return s.engine.Pending()
}

// Start spawns the server and begins polling its output
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateNotStarted {
		state := s.state
		s.mu.Unlock()
		return ErrInvalidState.WithOperation("start", state.String())
	}
	s.state = StateStarting
	s.mu.Unlock()

	if err := s.conn.Start(s.opts.Client, s.opts.Root); err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		s.markClosed()
		close(s.loopDone)
		s.logger.Error("Failed to start %s: %v", s.opts.Client.Command, err)
		return errors.WrapWithContext("start language server", err)
	}

	go s.pollLoop()
	return nil
}

func (s *Session) pollLoop() {
	defer close(s.loopDone)
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopLoop:
			return
		case <-ticker.C:
			s.pollOnce()
		case <-s.conn.Done():
			s.pollOnce()
			s.handleServerExit()
			return
		}
	}
}

func (s *Session) pollOnce() {
	bodies := s.conn.Poll()
	if len(bodies) == 0 {
		return
	}
	s.dispatching.Store(true)
	defer s.dispatching.Store(false)
	for _, body := range bodies {
		s.engine.OnMessage(body)
	}
}

// handleServerExit moves to Stopped when the server goes away on its own.
// An exit during Stop is left to Stop.
func (s *Session) handleServerExit() {
	s.mu.Lock()
	if s.state == StateShuttingDown || s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = StateStopped
	s.initialized = false
	s.mu.Unlock()

	s.logger.Warn("Language server exited while %s", prev)
	abandoned := s.engine.Abandon()
	s.docs.Reset()
	s.markClosed()
	if err := s.conn.Stop(nil); err != nil {
		s.logger.Debug("transport cleanup: %v", err)
	}
	if abandoned > 0 {
		s.logger.Debug("Abandoned %d pending requests", abandoned)
	}
}

func (s *Session) markClosed() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Initialize sends the initialize request. cb receives true once the server
// answered with a result and the session is Ready. A null, absent or error
// answer calls cb(false) and leaves the session in
// AwaitingInitializeResponse; there is no retry.
func (s *Session) Initialize(cb func(ok bool)) error {
	_, err := s.initialize(cb)
	return err
}

func (s *Session) initialize(cb func(ok bool)) (int64, error) {
	s.mu.Lock()
	if s.state != StateStarting {
		state := s.state
		s.mu.Unlock()
		return 0, ErrInvalidState.WithOperation("initialize", state.String())
	}
	s.state = StateAwaitingInitializeResponse
	s.mu.Unlock()

	id, err := s.engine.Request(types.MethodInitialize, s.initializeParams(), func(resp protocol.Response) {
		ok := s.completeInitialize(resp)
		if cb != nil {
			cb(ok)
		}
	})
	if err != nil {
		s.mu.Lock()
		if s.state == StateAwaitingInitializeResponse {
			s.state = StateStarting
		}
		s.mu.Unlock()
		return 0, errors.WrapWithContext("initialize", err)
	}
	return id, nil
}

func (s *Session) completeInitialize(resp protocol.Response) bool {
	if !resp.OK() || !resp.HasResult() {
		if resp.Err != nil {
			s.logger.Error("initialize failed: %s", common.SanitizeErrorForLogging(resp.Err.Message))
		} else {
			s.logger.Error("initialize returned no result")
		}
		return false
	}

	var result struct {
		Capabilities json.RawMessage `json:"capabilities"`
		ServerInfo   *struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		s.logger.Warn("initialize result not understood: %v", err)
	}

	s.mu.Lock()
	if s.state != StateAwaitingInitializeResponse {
		s.mu.Unlock()
		return false
	}
	s.state = StateReady
	s.initialized = true
	s.capabilities = result.Capabilities
	s.mu.Unlock()

	if err := s.engine.Notify(types.MethodInitialized, struct{}{}); err != nil {
		s.logger.Warn("failed to send initialized: %v", err)
	}
	if result.ServerInfo != nil {
		s.logger.Info("Connected to %s %s", result.ServerInfo.Name, result.ServerInfo.Version)
	} else {
		s.logger.Info("Connected to %s", s.opts.Client.Command)
	}
	return true
}

// InitializeAndWait runs Initialize and blocks until the answer, ctx ends,
// or the initialize timeout expires.
func (s *Session) InitializeAndWait(ctx context.Context) error {
	ctx, cancel := common.WithOptionalTimeout(ctx, s.opts.InitializeTimeout)
	defer cancel()

	result := make(chan bool, 1)
	id, err := s.initialize(func(ok bool) { result <- ok })
	if err != nil {
		return err
	}

	select {
	case ok := <-result:
		if !ok {
			return errors.NewLSPError(errors.ServerNotInitialized, "server did not return an initialize result", nil)
		}
		return nil
	case <-s.closed:
		return ErrSessionStopped.WithOperation("initialize", s.State().String())
	case <-ctx.Done():
		s.engine.Cancel(id)
		return errors.NewTimeoutError(types.MethodInitialize, s.opts.InitializeTimeout, ctx.Err())
	}
}

func (s *Session) initializeParams() lsp.InitializeParams {
	root := s.opts.Root
	rootURI := common.FilePathToURI(root)
	return lsp.InitializeParams{
		ProcessID:             os.Getpid(),
		ClientInfo:            &lsp.ClientInfo{Name: version.ClientName, Version: version.GetVersion()},
		RootPath:              root,
		RootURI:               rootURI,
		InitializationOptions: s.opts.Client.InitializationOptions,
		WorkspaceFolders:      []lsp.WorkspaceFolder{{URI: rootURI, Name: filepath.Base(root)}},
		Capabilities: lsp.ClientCapabilities{
			Workspace: lsp.WorkspaceClientCapabilities{
				WorkspaceFolders: true,
				Configuration:    true,
			},
			TextDocument: lsp.TextDocumentClientCapabilities{
				Synchronization: lsp.SynchronizationCapability{DidSave: true},
				Completion: lsp.CompletionCapability{
					CompletionItem: lsp.CompletionItemCapability{
						DocumentationFormat: []string{"markdown", "plaintext"},
						DeprecatedSupport:   true,
					},
				},
				Hover:              lsp.HoverCapability{ContentFormat: []string{"markdown", "plaintext"}},
				Definition:         lsp.LinkCapability{LinkSupport: true},
				DocumentSymbol:     lsp.DocumentSymbolCapability{HierarchicalDocumentSymbolSupport: true},
				PublishDiagnostics: lsp.PublishDiagnosticsCapability{RelatedInformation: true, VersionSupport: true},
			},
		},
	}
}

// Stop shuts the session down. From Ready the shutdown request and exit
// notification are sent first; from any other state the process is killed.
// Pending requests are abandoned and open documents forgotten. Idempotent.
//
// Stop may be called from a continuation. The shutdown response can only be
// delivered by the poll loop running that continuation, so in that case it
// is not awaited and the loop is released without being joined.
func (s *Session) Stop() error {
	fromPoll := s.dispatching.Load()

	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateShuttingDown {
		s.mu.Unlock()
		if !fromPoll {
			<-s.closed
		}
		return nil
	}
	prev := s.state
	s.state = StateShuttingDown
	s.mu.Unlock()

	var err error
	if prev != StateNotStarted {
		var sender process.ShutdownSender
		if prev == StateReady {
			sender = shutdownSender{s: s, noWait: fromPoll}
		}
		err = s.conn.Stop(sender)

		close(s.stopLoop)
		if !fromPoll {
			<-s.loopDone
		}
	}

	abandoned := s.engine.Abandon()
	s.docs.Reset()

	s.mu.Lock()
	s.state = StateStopped
	s.initialized = false
	s.mu.Unlock()
	s.markClosed()

	s.logger.Debug("Session stopped (from %s, %d pending abandoned)", prev, abandoned)
	return err
}

// shutdownSender runs the shutdown handshake through the session's engine.
// The poll loop is still running while it waits, unless noWait is set.
type shutdownSender struct {
	s      *Session
	noWait bool
}

func (ss shutdownSender) SendShutdownRequest(ctx context.Context) error {
	done := make(chan struct{})
	id, err := ss.s.engine.Request(types.MethodShutdown, nil, func(protocol.Response) { close(done) })
	if err != nil {
		return err
	}
	if ss.noWait {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ss.s.conn.Done():
		return nil
	case <-ctx.Done():
		ss.s.engine.Cancel(id)
		return errors.NewTimeoutError(types.MethodShutdown, constants.ShutdownRequestTimeout, ctx.Err())
	}
}

func (ss shutdownSender) SendExitNotification(ctx context.Context) error {
	return ss.s.engine.Notify(types.MethodExit, nil)
}

func (s *Session) requireReady(operation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return ErrNotReady.WithOperation(operation, s.state.String())
	}
	return nil
}

// DidOpen opens a document at version 1. An empty languageID is detected
// from the extension.
func (s *Session) DidOpen(uri, languageID, content string) error {
	if err := s.requireReady("didOpen"); err != nil {
		return err
	}
	return s.docs.DidOpen(uri, languageID, content)
}

// DidChange sends the full new content
func (s *Session) DidChange(uri, content string) error {
	if err := s.requireReady("didChange"); err != nil {
		return err
	}
	return s.docs.DidChange(uri, content)
}

// DidClose closes a document
func (s *Session) DidClose(uri string) error {
	if err := s.requireReady("didClose"); err != nil {
		return err
	}
	return s.docs.DidClose(uri)
}

// DidSave notifies a save
func (s *Session) DidSave(uri string) error {
	if err := s.requireReady("didSave"); err != nil {
		return err
	}
	return s.docs.DidSave(uri)
}

// DocumentVersion returns the tracked version of an open document
func (s *Session) DocumentVersion(uri string) (int32, bool) {
	return s.docs.Version(uri)
}

// OpenDocuments lists the open document uris
func (s *Session) OpenDocuments() []string {
	return s.docs.OpenDocuments()
}

func (s *Session) handleDiagnostics(p lsp.PublishDiagnosticsParams) {
	s.diags.Replace(p.URI, p.Diagnostics)
	if s.opts.OnDiagnostics != nil {
		s.opts.OnDiagnostics(p.URI, s.diags.Get(p.URI))
	}
}
