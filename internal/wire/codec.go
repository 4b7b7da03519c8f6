package wire

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/dedis/protobuf"
)

// ErrFrameTooLarge guards against a malicious or corrupt peer claiming
// an absurd payload size and exhausting memory before the read fails.
var ErrFrameTooLarge = errors.New("wire: frame payload exceeds maximum size")

// MaxFrameSize bounds a single frame's method name and payload. Every
// message this protocol carries is small (curve elements, scalars, VDF
// instances); 1 MiB is generous headroom.
const MaxFrameSize = 1 << 20

// Frame is one request or response on the wire: a method path, a status
// (always StatusOK on requests), and an opaque protobuf-encoded payload.
type Frame struct {
	Method  string
	Status  Status
	Payload []byte
}

// WriteFrame serialises f as: method length (2 bytes BE) || method
// bytes || status (1 byte) || payload length (4 bytes BE) || payload.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Method) > 0xffff {
		return ErrFrameTooLarge
	}
	if len(f.Payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	header := make([]byte, 2+len(f.Method)+1+4)
	binary.BigEndian.PutUint16(header[0:2], uint16(len(f.Method)))
	copy(header[2:2+len(f.Method)], f.Method)
	header[2+len(f.Method)] = byte(f.Status)
	binary.BigEndian.PutUint32(header[3+len(f.Method):], uint32(len(f.Payload)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(f.Payload) == 0 {
		return nil
	}
	_, err := w.Write(f.Payload)
	return err
}

// ReadFrame reads and decodes one frame written by WriteFrame.
func ReadFrame(r io.Reader) (Frame, error) {
	var methodLen [2]byte
	if _, err := io.ReadFull(r, methodLen[:]); err != nil {
		return Frame{}, err
	}
	n := binary.BigEndian.Uint16(methodLen[:])
	if int(n) > MaxFrameSize {
		return Frame{}, ErrFrameTooLarge
	}
	method := make([]byte, n)
	if _, err := io.ReadFull(r, method); err != nil {
		return Frame{}, err
	}

	var statusAndLen [5]byte
	if _, err := io.ReadFull(r, statusAndLen[:]); err != nil {
		return Frame{}, err
	}
	status := Status(statusAndLen[0])
	payloadLen := binary.BigEndian.Uint32(statusAndLen[1:])
	if payloadLen > MaxFrameSize {
		return Frame{}, ErrFrameTooLarge
	}

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}

	return Frame{Method: string(method), Status: status, Payload: payload}, nil
}

// Encode protobuf-encodes a request or response message for use as a
// Frame's Payload.
func Encode(v interface{}) ([]byte, error) {
	return protobuf.Encode(v)
}

// Decode protobuf-decodes a Frame's Payload into v.
func Decode(payload []byte, v interface{}) error {
	return protobuf.Decode(payload, v)
}
