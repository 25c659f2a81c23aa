package server

import (
	"github.com/guseggert/nailgun/protocol"
)

// maxOutputChunk splits large process writes into several chunks.
const maxOutputChunk = 32 * 1024

// chunkWriter sends everything written to it as chunks of one type.
type chunkWriter struct {
	r   *runner
	typ protocol.ChunkType
}

func (w *chunkWriter) Write(b []byte) (int, error) {
	written := 0
	for len(b) > 0 {
		toWrite := b
		if len(toWrite) > maxOutputChunk {
			toWrite = toWrite[:maxOutputChunk]
		}
		err := w.r.writeChunk(w.typ, toWrite)
		if err != nil {
			return written, err
		}
		written += len(toWrite)
		b = b[len(toWrite):]
	}
	return written, nil
}
