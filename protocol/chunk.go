package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderLen is the size of a chunk header: 4 bytes of length and 1 byte of type.
const HeaderLen = 5

// ChunkType identifies what a chunk's payload means.
type ChunkType byte

const (
	TypeArgument    ChunkType = 'A'
	TypeEnvironment ChunkType = 'E'
	TypeDirectory   ChunkType = 'D'
	TypeCommand     ChunkType = 'C'
	TypeStdin       ChunkType = '0'
	TypeStdinEOF    ChunkType = '.'
	TypeStdout      ChunkType = '1'
	TypeStderr      ChunkType = '2'
	TypeExit        ChunkType = 'X'
)

// ErrPayloadTooLarge is returned when a payload does not fit in the 32-bit length field.
var ErrPayloadTooLarge = errors.New("protocol: payload exceeds 32-bit length field")

// growStep caps how much memory is reserved up front for a payload, so a bogus length from a peer
// that then hangs up does not allocate gigabytes.
const growStep = 64 * 1024

func (t ChunkType) String() string {
	switch t {
	case TypeArgument:
		return "ARG"
	case TypeEnvironment:
		return "ENV"
	case TypeDirectory:
		return "DIR"
	case TypeCommand:
		return "CMD"
	case TypeStdin:
		return "STDIN"
	case TypeStdinEOF:
		return "STDIN_EOF"
	case TypeStdout:
		return "STDOUT"
	case TypeStderr:
		return "STDERR"
	case TypeExit:
		return "EXIT"
	default:
		return fmt.Sprintf("UNKNOWN(%q)", byte(t))
	}
}

// Valid reports whether t is one of the known chunk types.
func (t ChunkType) Valid() bool {
	switch t {
	case TypeArgument, TypeEnvironment, TypeDirectory, TypeCommand,
		TypeStdin, TypeStdinEOF, TypeStdout, TypeStderr, TypeExit:
		return true
	}
	return false
}

// Header is a decoded chunk header.
type Header struct {
	Length uint32
	Type   ChunkType
}

// Chunk is one complete wire unit.
type Chunk struct {
	Type    ChunkType
	Payload []byte
}

// AppendChunk appends the encoded chunk to dst.
func AppendChunk(dst []byte, t ChunkType, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return dst, ErrPayloadTooLarge
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	dst = append(dst, byte(t))
	return append(dst, payload...), nil
}

// Encode returns the header followed by the payload.
func Encode(t ChunkType, payload []byte) ([]byte, error) {
	return AppendChunk(make([]byte, 0, HeaderLen+len(payload)), t, payload)
}

// DecodeHeader parses a chunk header. It never looks at the payload.
func DecodeHeader(b [HeaderLen]byte) Header {
	return Header{
		Length: binary.BigEndian.Uint32(b[0:4]),
		Type:   ChunkType(b[4]),
	}
}

// ReadPayload reads exactly n bytes from r. The buffer grows with the data actually received.
// A stream that ends early returns io.ErrUnexpectedEOF.
func ReadPayload(r io.Reader, n uint32) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	if n <= growStep {
		buf.Grow(int(n))
	} else {
		buf.Grow(growStep)
	}
	copied, err := io.CopyN(&buf, r, int64(n))
	if copied < int64(n) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadChunk reads one header and its full payload.
// It returns io.EOF if the stream ends cleanly before a header, and io.ErrUnexpectedEOF if it ends mid-chunk.
func ReadChunk(r io.Reader) (Chunk, error) {
	var hb [HeaderLen]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return Chunk{}, err
	}
	h := DecodeHeader(hb)
	payload, err := ReadPayload(r, h.Length)
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{Type: h.Type, Payload: payload}, nil
}

// WriteChunk writes the chunk with a single Write call.
func WriteChunk(w io.Writer, t ChunkType, payload []byte) error {
	b, err := Encode(t, payload)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
