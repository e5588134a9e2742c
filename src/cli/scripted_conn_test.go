package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"lsp-indexer/src/internal/types"
	"lsp-indexer/src/server/process"
)

// scriptedConn answers requests in memory. Responses are queued on Send and
// handed out on the next Poll, the way the real transport does.
type scriptedConn struct {
	mu    sync.Mutex
	queue [][]byte
	sent  []string

	// documentSymbol answers keyed by file base name
	symbols map[string]string
	// raw definition answer
	definition string
	// diagnostics published on didOpen, keyed by file base name
	diagnostics map[string]string

	done   chan struct{}
	closed bool
}

func newScriptedConn() *scriptedConn {
	return &scriptedConn{
		symbols:     map[string]string{},
		diagnostics: map[string]string{},
		done:        make(chan struct{}),
	}
}

// Start re-arms done so one conn can serve several sessions in sequence,
// each one behaving like a freshly spawned process.
func (c *scriptedConn) Start(types.ClientConfig, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.done = make(chan struct{})
		c.closed = false
	}
	c.queue = nil
	return nil
}

func (c *scriptedConn) Send(body []byte) error {
	var msg struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params struct {
			TextDocument struct {
				URI string `json:"uri"`
			} `json:"textDocument"`
		} `json:"params"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg.Method)

	base := filepath.Base(msg.Params.TextDocument.URI)
	if msg.ID == nil {
		if msg.Method == types.MethodTextDocumentDidOpen {
			if diags, ok := c.diagnostics[base]; ok {
				c.queue = append(c.queue, []byte(`{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{"uri":"`+
					msg.Params.TextDocument.URI+`","diagnostics":`+diags+`}}`))
			}
		}
		return nil
	}

	result := "null"
	switch msg.Method {
	case types.MethodInitialize:
		result = `{"capabilities":{"documentSymbolProvider":true},"serverInfo":{"name":"scripted","version":"1"}}`
	case types.MethodTextDocumentDocumentSymbol:
		result = "[]"
		if s, ok := c.symbols[base]; ok {
			result = s
		}
	case types.MethodTextDocumentDefinition:
		if c.definition != "" {
			result = c.definition
		}
	case types.MethodTextDocumentReferences, types.MethodTextDocumentCompletion:
		result = "[]"
	}
	c.queue = append(c.queue, []byte(`{"jsonrpc":"2.0","id":`+string(msg.ID)+`,"result":`+result+`}`))
	return nil
}

func (c *scriptedConn) Poll() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.queue
	c.queue = nil
	return out
}

func (c *scriptedConn) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *scriptedConn) Stop(sender process.ShutdownSender) error {
	if sender != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sender.SendShutdownRequest(ctx)
		_ = sender.SendExitNotification(ctx)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
	return nil
}

func (c *scriptedConn) methods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}
