package client

import (
	"net"
	"testing"

	"github.com/guseggert/nailgun/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecvExactToleratesShortReads(t *testing.T) {
	local, remote := net.Pipe()
	tr := NewTransport(local)
	t.Cleanup(func() { tr.Close() })

	b, err := protocol.Encode(protocol.TypeStdout, []byte("fragmented"))
	require.NoError(t, err)
	go func() {
		// one byte per write, so every read on the other side is short
		for i := range b {
			if _, err := remote.Write(b[i : i+1]); err != nil {
				return
			}
		}
	}()

	c, err := tr.RecvChunk()
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeStdout, c.Type)
	assert.Equal(t, "fragmented", string(c.Payload))
}

func TestRecvExactPeerClosed(t *testing.T) {
	local, remote := net.Pipe()
	tr := NewTransport(local)
	t.Cleanup(func() { tr.Close() })

	go func() {
		_, _ = remote.Write([]byte{1, 2})
		remote.Close()
	}()

	_, err := tr.RecvExact(4)
	assert.ErrorIs(t, err, ErrConnectionBroken)
}

func TestSendChunk(t *testing.T) {
	local, remote := net.Pipe()
	tr := NewTransport(local)
	t.Cleanup(func() { tr.Close() })

	go func() {
		_ = tr.SendChunk(protocol.TypeArgument, []byte("arg"))
	}()
	c, err := protocol.ReadChunk(remote)
	require.NoError(t, err)
	assert.Equal(t, protocol.Chunk{Type: protocol.TypeArgument, Payload: []byte("arg")}, c)
}

func TestCloseOnce(t *testing.T) {
	local, _ := net.Pipe()
	tr := NewTransport(local)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err := tr.RecvExact(1)
	assert.ErrorIs(t, err, ErrConnectionBroken)
	assert.ErrorIs(t, tr.SendAll([]byte("x")), ErrConnectionBroken)
}
