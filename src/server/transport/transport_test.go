package transport

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lsperrors "lsp-indexer/src/internal/errors"
	"lsp-indexer/src/internal/types"
	"lsp-indexer/src/server/protocol"
)

func pollUntil(t *testing.T, tr *Transport, n int) [][]byte {
	t.Helper()
	var got [][]byte
	deadline := time.Now().Add(5 * time.Second)
	for len(got) < n && time.Now().Before(deadline) {
		got = append(got, tr.Poll()...)
		time.Sleep(5 * time.Millisecond)
	}
	require.Len(t, got, n)
	return got
}

func TestCommandLineLocal(t *testing.T) {
	argv, dir, err := CommandLine(types.ClientConfig{Command: "clangd", Args: []string{"--background-index"}}, "/src")
	require.NoError(t, err)
	assert.Equal(t, []string{"clangd", "--background-index"}, argv)
	assert.Equal(t, "/src", dir)
}

func TestCommandLineRemote(t *testing.T) {
	cfg := types.ClientConfig{
		Command: "clangd",
		Args:    []string{"--background-index"},
		Target:  types.NewRemoteTarget(types.RemoteTarget{Enabled: true, Host: "box", User: "dev", Port: 22}),
	}
	argv, dir, err := CommandLine(cfg, "/srv/my proj")
	require.NoError(t, err)
	assert.Empty(t, dir)
	assert.Equal(t, "ssh", argv[0])
	assert.Equal(t, "-tt", argv[1])
	assert.Equal(t, "dev@box", argv[len(argv)-2])
	assert.True(t, strings.HasSuffix(argv[len(argv)-1], "cd '/srv/my proj' && clangd --background-index"))
}

func TestCommandLineRejectsInvalidRemote(t *testing.T) {
	cfg := types.ClientConfig{Command: "clangd", Target: types.NewRemoteTarget(types.RemoteTarget{Enabled: true})}
	_, _, err := CommandLine(cfg, "/src")
	assert.Error(t, err)

	_, _, err = CommandLine(types.ClientConfig{}, "/src")
	assert.Error(t, err)
}

func TestSendBeforeStart(t *testing.T) {
	tr := New(nil)
	assert.ErrorIs(t, tr.Send([]byte("{}")), ErrNotStarted)
}

func TestAttachedRoundTrip(t *testing.T) {
	serverIn, clientOut := io.Pipe()
	clientIn, serverOut := io.Pipe()

	tr := New(nil)
	tr.Attach(clientOut, clientIn, nil)

	// Outbound frames arrive intact on the server side.
	go func() {
		assert.NoError(t, tr.Send([]byte(`{"jsonrpc":"2.0","id":1,"method":"x"}`)))
	}()
	buf := make([]byte, 128)
	n, err := serverIn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "Content-Length: 37\r\n\r\n{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"x\"}", string(buf[:n]))

	// Inbound frames split across writes are reassembled by Poll.
	f1 := string(protocol.EncodeFrame([]byte(`{"id":1,"result":null}`)))
	f2 := string(protocol.EncodeFrame([]byte(`{"id":2,"result":[]}`)))
	go func() {
		stream := f1 + f2
		serverOut.Write([]byte(stream[:10]))
		serverOut.Write([]byte(stream[10:30]))
		serverOut.Write([]byte(stream[30:]))
	}()
	got := pollUntil(t, tr, 2)
	assert.Equal(t, `{"id":1,"result":null}`, string(got[0]))
	assert.Equal(t, `{"id":2,"result":[]}`, string(got[1]))

	// Server hang-up closes Done.
	serverOut.Close()
	select {
	case <-tr.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done not closed after EOF")
	}

	serverIn.Close()
	require.NoError(t, tr.Stop(nil))
	assert.ErrorIs(t, tr.Send([]byte("{}")), ErrClosed)
	assert.NoError(t, tr.Stop(nil))
}

func TestStartFailureIsReturned(t *testing.T) {
	tr := New(nil)
	err := tr.Start(types.ClientConfig{Command: "definitely-not-a-language-server-xyz"}, t.TempDir())
	assert.Error(t, err)
}

func TestProcessExitClosesDone(t *testing.T) {
	tr := New(nil)
	require.NoError(t, tr.Start(types.ClientConfig{Command: "sh", Args: []string{"-c", "printf 'Content-Length: 2\\r\\n\\r\\n{}'"}}, t.TempDir()))

	select {
	case <-tr.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done not closed after process exit")
	}
	got := pollUntil(t, tr, 1)
	assert.Equal(t, "{}", string(got[0]))
	require.NoError(t, tr.Stop(nil))
}

func TestSendWriteFailureIsCommunicationError(t *testing.T) {
	serverIn, clientOut := io.Pipe()
	clientIn, serverOut := io.Pipe()
	defer serverOut.Close()

	tr := New(nil)
	tr.Attach(clientOut, clientIn, nil)
	serverIn.Close()

	err := tr.Send([]byte("{}"))
	require.Error(t, err)
	assert.True(t, lsperrors.IsProcessError(err))
	assert.Equal(t, lsperrors.CommunicationError, lsperrors.ErrorCode(err))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	require.NoError(t, tr.Stop(nil))
}
