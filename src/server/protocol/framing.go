package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"lsp-indexer/src/internal/common"
)

const (
	headerTerminator    = "\r\n\r\n"
	contentLengthHeader = "content-length"
)

// EncodeFrame prefixes body with its Content-Length header
func EncodeFrame(body []byte) []byte {
	header := fmt.Sprintf("Content-Length: %d%s", len(body), headerTerminator)
	frame := make([]byte, 0, len(header)+len(body))
	frame = append(frame, header...)
	return append(frame, body...)
}

// FrameBuffer accumulates inbound bytes and splits them into message bodies.
// Partial frames stay buffered until the rest arrives. There is no upper
// bound on the buffered size. Not safe for concurrent use.
type FrameBuffer struct {
	buf    []byte
	logger *common.SafeLogger
}

// NewFrameBuffer returns an empty buffer logging malformed headers to logger
func NewFrameBuffer(logger *common.SafeLogger) *FrameBuffer {
	if logger == nil {
		logger = common.LSPLogger
	}
	return &FrameBuffer{logger: logger}
}

// Write appends raw bytes from the stream
func (b *FrameBuffer) Write(p []byte) {
	b.buf = append(b.buf, p...)
}

// Len returns the number of buffered, unconsumed bytes
func (b *FrameBuffer) Len() int {
	return len(b.buf)
}

// Next extracts one complete message body. It returns false when no complete
// frame is buffered. Header blocks without a usable Content-Length are
// dropped up to their terminator.
func (b *FrameBuffer) Next() ([]byte, bool) {
	for {
		idx := bytes.Index(b.buf, []byte(headerTerminator))
		if idx < 0 {
			return nil, false
		}

		length, err := parseContentLength(b.buf[:idx])
		bodyStart := idx + len(headerTerminator)
		if err != nil {
			b.logger.Warn("Discarding frame header: %v", err)
			b.consume(bodyStart)
			continue
		}

		bodyEnd := bodyStart + length
		if len(b.buf) < bodyEnd {
			return nil, false
		}

		body := make([]byte, length)
		copy(body, b.buf[bodyStart:bodyEnd])
		b.consume(bodyEnd)
		return body, true
	}
}

// Drain extracts every complete body currently buffered
func (b *FrameBuffer) Drain() [][]byte {
	var frames [][]byte
	for {
		body, ok := b.Next()
		if !ok {
			return frames
		}
		frames = append(frames, body)
	}
}

func (b *FrameBuffer) consume(n int) {
	remaining := copy(b.buf, b.buf[n:])
	b.buf = b.buf[:remaining]
}

func parseContentLength(header []byte) (int, error) {
	for _, line := range strings.Split(string(header), "\r\n") {
		name, value, found := strings.Cut(line, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(name), contentLengthHeader) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid Content-Length %q", strings.TrimSpace(value))
		}
		return n, nil
	}
	return 0, fmt.Errorf("missing Content-Length in header %q", string(header))
}
