package protocol

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/models/lsp"
	"lsp-indexer/src/internal/types"
)

// Sender delivers one message body to the server. Implementations frame the
// body and write it atomically.
type Sender interface {
	Send(body []byte) error
}

// Continuation runs once when the response for its request arrives
type Continuation func(Response)

// DiagnosticsHandler receives every publishDiagnostics notification
type DiagnosticsHandler func(params lsp.PublishDiagnosticsParams)

// Engine correlates requests with responses and routes server-initiated
// traffic. Continuations run on whichever goroutine calls OnMessage, outside
// the engine lock.
type Engine struct {
	sender Sender
	logger *common.SafeLogger
	nextID atomic.Int64

	mu          sync.Mutex
	pending     map[int64]Continuation
	diagnostics DiagnosticsHandler
}

// NewEngine creates an engine writing through sender
func NewEngine(sender Sender, logger *common.SafeLogger) *Engine {
	if logger == nil {
		logger = common.LSPLogger
	}
	return &Engine{
		sender:  sender,
		logger:  logger,
		pending: make(map[int64]Continuation),
	}
}

// SetDiagnosticsHandler registers the publishDiagnostics consumer
func (e *Engine) SetDiagnosticsHandler(h DiagnosticsHandler) {
	e.mu.Lock()
	e.diagnostics = h
	e.mu.Unlock()
}

// Request assigns the next id, registers cont and sends the request. Ids
// start at 1 and are never reused. A send failure unregisters cont.
func (e *Engine) Request(method string, params interface{}, cont Continuation) (int64, error) {
	id := e.nextID.Add(1)
	body, err := EncodeRequest(id, method, params)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	e.mu.Lock()
	e.pending[id] = cont
	e.mu.Unlock()

	if err := e.sender.Send(body); err != nil {
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()
		return 0, fmt.Errorf("failed to send %s request: %w", method, err)
	}

	e.logger.Debug("-> request id=%d method=%s", id, method)
	return id, nil
}

// Notify sends a notification; nothing is registered
func (e *Engine) Notify(method string, params interface{}) error {
	body, err := EncodeNotification(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode %s notification: %w", method, err)
	}
	if err := e.sender.Send(body); err != nil {
		return fmt.Errorf("failed to send %s notification: %w", method, err)
	}
	e.logger.Debug("-> notification method=%s", method)
	return nil
}

// Cancel forgets a pending request without resolving it
func (e *Engine) Cancel(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pending[id]; !ok {
		return false
	}
	delete(e.pending, id)
	return true
}

// Abandon drops every pending continuation without invoking it
func (e *Engine) Abandon() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.pending)
	e.pending = make(map[int64]Continuation)
	return n
}

// Pending returns the number of outstanding requests
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// OnMessage handles one inbound frame body
func (e *Engine) OnMessage(body []byte) {
	msg, err := ParseMessage(body)
	if err != nil {
		e.logger.Error("%v", err)
		return
	}

	switch msg.Kind() {
	case KindResponse:
		e.handleResponse(msg)
	case KindNotification:
		e.handleNotification(msg)
	case KindServerRequest:
		e.handleServerRequest(msg)
	default:
		e.logger.Warn("Received malformed message (no ID and no method)")
	}
}

func (e *Engine) handleResponse(msg *Message) {
	id, err := msg.NumericID()
	if err != nil {
		e.logger.Warn("Dropping response: %v", err)
		return
	}

	e.mu.Lock()
	cont, ok := e.pending[id]
	delete(e.pending, id)
	e.mu.Unlock()

	if !ok {
		e.logger.Debug("Dropping response for unknown id=%d", id)
		return
	}

	if msg.Error != nil {
		if IsExpectedSuppressibleError(msg.Error) {
			e.logger.Debug("Response id=%d error: %s", id, common.SanitizeErrorForLogging(msg.Error.Message))
		} else {
			e.logger.Warn("Response id=%d error: %s", id, common.SanitizeErrorForLogging(msg.Error.Message))
		}
	}

	if cont != nil {
		cont(Response{ID: id, Result: msg.Result, Err: msg.Error})
	}
}

func (e *Engine) handleNotification(msg *Message) {
	if msg.Method != types.MethodPublishDiagnostics {
		e.logger.Debug("Ignoring notification %s", msg.Method)
		return
	}

	var params lsp.PublishDiagnosticsParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		e.logger.Warn("Malformed publishDiagnostics: %v", err)
		return
	}

	e.mu.Lock()
	h := e.diagnostics
	e.mu.Unlock()
	if h != nil {
		h(params)
	}
}

// handleServerRequest answers every server request so servers waiting on
// the client do not stall. workspace/configuration gets one empty settings
// object per item; everything else gets null.
func (e *Engine) handleServerRequest(msg *Message) {
	e.logger.Debug("Received server request: method=%s, id=%s", msg.Method, string(msg.ID))

	var result interface{}
	if msg.Method == types.MethodWorkspaceConfiguration {
		result = configurationResult(msg.Params)
	}

	body, err := EncodeResponse(msg.ID, result)
	if err != nil {
		e.logger.Error("Failed to encode reply to %s: %v", msg.Method, err)
		return
	}
	if err := e.sender.Send(body); err != nil {
		e.logger.Warn("Failed to reply to %s: %v", msg.Method, err)
	}
}

func configurationResult(params json.RawMessage) []map[string]interface{} {
	var req struct {
		Items []json.RawMessage `json:"items"`
	}
	n := 1
	if err := json.Unmarshal(params, &req); err == nil && len(req.Items) > 0 {
		n = len(req.Items)
	}
	out := make([]map[string]interface{}, n)
	for i := range out {
		out[i] = map[string]interface{}{}
	}
	return out
}
