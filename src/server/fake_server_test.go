package server

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/types"
	"lsp-indexer/src/server/protocol"
	"lsp-indexer/src/server/transport"
)

// handlerFunc answers one request. Returning reply=false leaves the request
// unanswered.
type handlerFunc func(params json.RawMessage) (result interface{}, reply bool)

// fakeServer is an in-process language server speaking Content-Length
// framing over a pipe pair.
type fakeServer struct {
	t *testing.T

	fromClient *io.PipeReader
	toClient   *io.PipeWriter

	writeMu  sync.Mutex
	mu       sync.Mutex
	handlers map[string]handlerFunc
	received []*protocol.Message
}

func newFakeServer(t *testing.T) *fakeServer {
	return &fakeServer{
		t: t,
		handlers: map[string]handlerFunc{
			types.MethodInitialize: func(json.RawMessage) (interface{}, bool) {
				return map[string]interface{}{
					"capabilities": map[string]interface{}{"documentSymbolProvider": true},
					"serverInfo":   map[string]interface{}{"name": "fake", "version": "1.0"},
				}, true
			},
			types.MethodShutdown: func(json.RawMessage) (interface{}, bool) { return nil, true },
		},
	}
}

func (f *fakeServer) handle(method string, h handlerFunc) {
	f.mu.Lock()
	f.handlers[method] = h
	f.mu.Unlock()
}

// respond answers method with a fixed raw JSON result
func (f *fakeServer) respond(method, rawResult string) {
	f.handle(method, func(json.RawMessage) (interface{}, bool) {
		return json.RawMessage(rawResult), true
	})
}

// fail answers method with a JSON-RPC error
func (f *fakeServer) fail(method string, code int, message string) {
	f.handle(method, func(json.RawMessage) (interface{}, bool) {
		return &protocol.RPCError{Code: code, Message: message}, true
	})
}

func (f *fakeServer) serve() {
	frames := protocol.NewFrameBuffer(common.NewSafeLogger("[fake]"))
	buf := make([]byte, 4096)
	for {
		n, err := f.fromClient.Read(buf)
		if n > 0 {
			frames.Write(buf[:n])
			for _, body := range frames.Drain() {
				f.dispatch(body)
			}
		}
		if err != nil {
			return
		}
	}
}

func (f *fakeServer) dispatch(body []byte) {
	msg, err := protocol.ParseMessage(body)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.received = append(f.received, msg)
	h := f.handlers[msg.Method]
	f.mu.Unlock()

	if msg.Method == types.MethodExit {
		f.toClient.Close()
		return
	}
	if msg.Kind() != protocol.KindServerRequest || h == nil {
		return
	}
	result, reply := h(msg.Params)
	if !reply {
		return
	}
	var out []byte
	if rpcErr, ok := result.(*protocol.RPCError); ok {
		out, err = json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": msg.ID, "error": rpcErr})
	} else {
		out, err = protocol.EncodeResponse(msg.ID, result)
	}
	if err != nil {
		return
	}
	f.write(out)
}

func (f *fakeServer) write(body []byte) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_, _ = f.toClient.Write(protocol.EncodeFrame(body))
}

// notify pushes a server notification to the client
func (f *fakeServer) notify(method string, params interface{}) {
	body, err := protocol.EncodeNotification(method, params)
	require.NoError(f.t, err)
	f.write(body)
}

// request pushes a server-initiated request to the client
func (f *fakeServer) request(id int, method string, params interface{}) {
	body, err := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": id, "method": method, "params": params})
	require.NoError(f.t, err)
	f.write(body)
}

func (f *fakeServer) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.received))
	for _, m := range f.received {
		if m.Method != "" {
			out = append(out, m.Method)
		}
	}
	return out
}

func (f *fakeServer) lastParams(method string) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.received) - 1; i >= 0; i-- {
		if f.received[i].Method == method {
			return f.received[i].Params
		}
	}
	return nil
}

func (f *fakeServer) lastID(method string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.received) - 1; i >= 0; i-- {
		if f.received[i].Method == method {
			return string(f.received[i].ID)
		}
	}
	return ""
}

// responses returns client replies to server-initiated requests
func (f *fakeServer) responses() []*protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*protocol.Message
	for _, m := range f.received {
		if m.Kind() == protocol.KindResponse {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeServer) waitFor(method string) {
	require.Eventually(f.t, func() bool {
		for _, m := range f.methods() {
			if m == method {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "server never received %s", method)
}

// pipeConn attaches a Transport to a fakeServer instead of spawning a process
type pipeConn struct {
	*transport.Transport
	server   *fakeServer
	clientIn *io.PipeWriter
	stdout   *io.PipeReader
	failWith error
}

func (c *pipeConn) Start(types.ClientConfig, string) error {
	if c.failWith != nil {
		return c.failWith
	}
	c.Attach(c.clientIn, c.stdout, nil)
	go c.server.serve()
	return nil
}

func newPipeConn(t *testing.T) (*pipeConn, *fakeServer) {
	fromClient, clientIn := io.Pipe()
	stdout, toClient := io.Pipe()

	srv := newFakeServer(t)
	srv.fromClient = fromClient
	srv.toClient = toClient

	conn := &pipeConn{
		Transport: transport.New(common.NewSafeLogger("[test]")),
		server:    srv,
		clientIn:  clientIn,
		stdout:    stdout,
	}
	t.Cleanup(func() {
		fromClient.Close()
		toClient.Close()
	})
	return conn, srv
}
