package client

import (
	"errors"
	"io"

	"github.com/guseggert/nailgun/protocol"
)

// stdinBufSize bounds each read of local stdin, and so the size of each stdin chunk.
const stdinBufSize = 2048

// forwardStdin relays local stdin as stdin chunks and ends with exactly one EOF chunk.
// A local read error counts as EOF. It stops sending once the session has terminated.
//
// A failed send only stops forwarding. The server may already have sent the exit chunk before hanging up on
// unread stdin, so the outcome is left to readChunks, whose next read fails too if the connection is really gone.
func (s *Session) forwardStdin() {
	log := s.log.Named("stdin_forwarder")

	if s.stdin != nil {
		buf := make([]byte, stdinBufSize)
		for {
			n, err := s.stdin.Read(buf)
			if n > 0 {
				if s.terminated() {
					return
				}
				sendErr := s.transport.SendChunk(protocol.TypeStdin, buf[:n])
				if sendErr != nil {
					log.Debugf("send error, no longer forwarding stdin: %s", sendErr)
					return
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				log.Debugf("stdin read error, treating as EOF: %s", err)
				break
			}
		}
	}

	if s.terminated() {
		return
	}
	log.Debug("sending stdin EOF")
	err := s.transport.SendChunk(protocol.TypeStdinEOF, nil)
	if err != nil {
		log.Debugf("error sending stdin EOF: %s", err)
	}
}
