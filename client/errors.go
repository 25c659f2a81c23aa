package client

import (
	"errors"
)

// Reserved exit codes for failures of the client itself.
// They are distinct from each other so calling scripts can tell them apart from the remote command's own exit code.
const (
	ExitConnectFailed       = 230
	ExitSocketFailed        = 231
	ExitUnexpectedChunkType = 229
	ExitServerException     = 228
	ExitConnectionBroken    = 227
	ExitBadArguments        = 226
)

var (
	ErrConnectFailed       = errors.New("unable to connect to server")
	ErrSocketFailed        = errors.New("unable to create socket")
	ErrUnexpectedChunkType = errors.New("unexpected chunk type")
	// ErrServerException is reserved; this client never produces it.
	ErrServerException  = errors.New("server exception")
	ErrConnectionBroken = errors.New("connection broken")
	ErrBadArguments     = errors.New("bad arguments")
)

// ExitCode maps a client error to its reserved exit code.
// A nil error maps to 0 and an unrecognized error is treated as a broken connection.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrConnectFailed):
		return ExitConnectFailed
	case errors.Is(err, ErrSocketFailed):
		return ExitSocketFailed
	case errors.Is(err, ErrUnexpectedChunkType):
		return ExitUnexpectedChunkType
	case errors.Is(err, ErrServerException):
		return ExitServerException
	case errors.Is(err, ErrBadArguments):
		return ExitBadArguments
	default:
		return ExitConnectionBroken
	}
}
