package client

import (
	"fmt"
	"io"

	"github.com/guseggert/nailgun/protocol"
)

// readChunks consumes server chunks in arrival order until the exit chunk or a failure.
// It never writes to the connection.
func (s *Session) readChunks() {
	log := s.log.Named("chunk_reader")
	for {
		chunk, err := s.transport.RecvChunk()
		if err != nil {
			log.Debugf("read error: %s", err)
			s.finish(result{err: err})
			return
		}

		switch chunk.Type {
		case protocol.TypeStdout:
			s.writeOutput(s.stdout, "stdout", chunk.Payload)
		case protocol.TypeStderr:
			s.writeOutput(s.stderr, "stderr", chunk.Payload)
		case protocol.TypeExit:
			code, err := protocol.ParseExitCode(chunk.Payload)
			if err != nil {
				log.Warnf("treating exit code as 0: %s", err)
			}
			log.Debugf("got exit code %d", code)
			s.finish(result{code: code})
			return
		default:
			log.Debugf("got unexpected %s chunk", chunk.Type)
			if !chunk.Type.Valid() {
				s.finish(result{err: fmt.Errorf("%w: unknown type %s", ErrUnexpectedChunkType, chunk.Type)})
				return
			}
			s.finish(result{err: fmt.Errorf("%w: %s is not sent by servers", ErrUnexpectedChunkType, chunk.Type)})
			return
		}
	}
}

// writeOutput writes to a local descriptor. Failures are logged, since the exit chunk still has to be read.
func (s *Session) writeOutput(w io.Writer, name string, b []byte) {
	_, err := w.Write(b)
	if err != nil {
		s.log.Debugf("%s write error: %s", name, err)
	}
}
