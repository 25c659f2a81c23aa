package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/guseggert/nailgun/protocol"
	"nhooyr.io/websocket"
)

// wsReadLimit allows a single WebSocket message to hold the largest possible chunk.
const wsReadLimit = 1<<32 + protocol.HeaderLen

// Transport is the one connection a session owns.
// Reads and writes may happen concurrently from different goroutines, but there must be at most one reader and one writer.
type Transport struct {
	conn net.Conn

	closeOnce sync.Once
	closeErr  error
}

// NewTransport wraps an established connection.
func NewTransport(conn net.Conn) *Transport {
	return &Transport{conn: conn}
}

// IsWebSocketAddr reports whether addr is a WebSocket URL rather than a host:port pair.
func IsWebSocketAddr(addr string) bool {
	return strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://")
}

// Dial connects to addr, which is either host:port or a ws:// or wss:// URL.
func Dial(ctx context.Context, dialer *net.Dialer, addr string) (*Transport, error) {
	if IsWebSocketAddr(addr) {
		wsConn, _, err := websocket.Dial(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: dialing WebSocket %s: %w", ErrConnectFailed, addr, err)
		}
		wsConn.SetReadLimit(wsReadLimit)
		return NewTransport(websocket.NetConn(ctx, wsConn, websocket.MessageBinary)), nil
	}

	if dialer == nil {
		dialer = &net.Dialer{}
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		var sysErr *os.SyscallError
		if errors.As(err, &sysErr) && sysErr.Syscall == "socket" {
			return nil, fmt.Errorf("%w: %w", ErrSocketFailed, err)
		}
		return nil, fmt.Errorf("%w: dialing %s: %w", ErrConnectFailed, addr, err)
	}
	return NewTransport(conn), nil
}

// SendAll writes every byte of b, looping over partial writes. Any write error is fatal to the session.
func (t *Transport) SendAll(b []byte) error {
	for len(b) > 0 {
		n, err := t.conn.Write(b)
		if err != nil {
			return fmt.Errorf("%w: writing to server: %w", ErrConnectionBroken, err)
		}
		b = b[n:]
	}
	return nil
}

// RecvExact returns exactly n bytes, however the peer fragments them.
func (t *Transport) RecvExact(n uint32) ([]byte, error) {
	b, err := protocol.ReadPayload(t.conn, n)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: server closed the connection after a partial read", ErrConnectionBroken)
		}
		return nil, fmt.Errorf("%w: reading from server: %w", ErrConnectionBroken, err)
	}
	return b, nil
}

// SendChunk encodes and sends one chunk.
func (t *Transport) SendChunk(typ protocol.ChunkType, payload []byte) error {
	b, err := protocol.Encode(typ, payload)
	if err != nil {
		return err
	}
	return t.SendAll(b)
}

// RecvChunk reads one header and then its whole payload.
func (t *Transport) RecvChunk() (protocol.Chunk, error) {
	hb, err := t.RecvExact(protocol.HeaderLen)
	if err != nil {
		return protocol.Chunk{}, err
	}
	var header [protocol.HeaderLen]byte
	copy(header[:], hb)
	h := protocol.DecodeHeader(header)

	payload, err := t.RecvExact(h.Length)
	if err != nil {
		return protocol.Chunk{}, err
	}
	return protocol.Chunk{Type: h.Type, Payload: payload}, nil
}

// Close closes the connection. Only the first call has any effect; it unblocks a pending read.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
