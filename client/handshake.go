package client

import (
	"fmt"

	"github.com/guseggert/nailgun/protocol"
)

// handshakeChunks returns the chunks that set up a remote invocation, ending with the single Command chunk.
func handshakeChunks(req SessionRequest) []protocol.Chunk {
	chunks := make([]protocol.Chunk, 0, len(req.Args)+len(req.Env)+5)
	for _, arg := range req.Args {
		chunks = append(chunks, protocol.Chunk{Type: protocol.TypeArgument, Payload: []byte(arg)})
	}
	chunks = append(chunks,
		protocol.Chunk{Type: protocol.TypeEnvironment, Payload: []byte(protocol.FileSeparatorEnv())},
		protocol.Chunk{Type: protocol.TypeEnvironment, Payload: []byte(protocol.PathSeparatorEnv())},
	)
	for _, env := range req.Env {
		chunks = append(chunks, protocol.Chunk{Type: protocol.TypeEnvironment, Payload: []byte(env)})
	}
	chunks = append(chunks,
		protocol.Chunk{Type: protocol.TypeDirectory, Payload: []byte(req.WD)},
		protocol.Chunk{Type: protocol.TypeCommand, Payload: []byte(req.Command)},
	)
	return chunks
}

// sendHandshake sends the whole handshake as one write. Once it returns nil the connection is streaming.
func sendHandshake(t *Transport, req SessionRequest) error {
	var b []byte
	for _, c := range handshakeChunks(req) {
		var err error
		b, err = protocol.AppendChunk(b, c.Type, c.Payload)
		if err != nil {
			return fmt.Errorf("encoding %s chunk: %w", c.Type, err)
		}
	}
	return t.SendAll(b)
}
