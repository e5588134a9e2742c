package protocol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

func TestEncodeFrame(t *testing.T) {
	assert.Equal(t, "Content-Length: 2\r\n\r\n{}", string(EncodeFrame([]byte("{}"))))
	// Length counts bytes, not runes.
	assert.Equal(t, "Content-Length: 3\r\n\r\né.", string(EncodeFrame([]byte("é."))))
}

func TestFrameBufferSingleFrame(t *testing.T) {
	b := NewFrameBuffer(nil)
	b.Write([]byte(frame(`{"id":1}`)))

	body, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, `{"id":1}`, string(body))
	assert.Equal(t, 0, b.Len())

	_, ok = b.Next()
	assert.False(t, ok)
}

func TestFrameBufferArbitrarySplits(t *testing.T) {
	stream := frame(`{"id":1,"result":"a"}`) + frame(`{"id":2,"result":"bb"}`) + frame(`{"method":"x"}`)
	want := []string{`{"id":1,"result":"a"}`, `{"id":2,"result":"bb"}`, `{"method":"x"}`}

	for chunk := 1; chunk <= len(stream); chunk++ {
		b := NewFrameBuffer(nil)
		var got []string
		for i := 0; i < len(stream); i += chunk {
			end := i + chunk
			if end > len(stream) {
				end = len(stream)
			}
			b.Write([]byte(stream[i:end]))
			for _, body := range b.Drain() {
				got = append(got, string(body))
			}
		}
		require.Equal(t, want, got, "chunk size %d", chunk)
		assert.Equal(t, 0, b.Len())
	}
}

func TestFrameBufferKeepsPartialBody(t *testing.T) {
	b := NewFrameBuffer(nil)
	full := frame(`{"id":1}`)
	b.Write([]byte(full[:len(full)-3]))

	_, ok := b.Next()
	assert.False(t, ok)
	assert.Equal(t, len(full)-3, b.Len())

	b.Write([]byte(full[len(full)-3:]))
	body, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, `{"id":1}`, string(body))
}

func TestFrameBufferHeaderVariants(t *testing.T) {
	b := NewFrameBuffer(nil)
	b.Write([]byte("content-length: 2\r\nContent-Type: application/vscode-jsonrpc; charset=utf-8\r\n\r\n{}"))
	body, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, "{}", string(body))
}

func TestFrameBufferDiscardsBadHeader(t *testing.T) {
	b := NewFrameBuffer(nil)
	b.Write([]byte("X-Junk: 1\r\n\r\n" + frame(`{"id":3}`)))

	body, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, `{"id":3}`, string(body))
}

func TestFrameBufferZeroLength(t *testing.T) {
	b := NewFrameBuffer(nil)
	b.Write([]byte("Content-Length: 0\r\n\r\n"))
	body, ok := b.Next()
	require.True(t, ok)
	assert.Empty(t, body)
}
