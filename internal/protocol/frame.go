package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameLen caps the accepted payload length of a single frame, guarding
// against a corrupt or malicious length header causing an unbounded
// allocation.
const MaxFrameLen = 256 << 20 // 256 MiB

// ErrShortFrame is returned by ReadFrame when the stream closes mid-frame
// (after the length header but before the full payload arrives).
var ErrShortFrame = errors.New("protocol: stream closed mid-frame")

// ErrFrameTooLarge is returned by ReadFrame when a length header exceeds
// MaxFrameLen.
var ErrFrameTooLarge = errors.New("protocol: frame length exceeds maximum")

// ReadFrame reads one length-prefixed frame: a 4-byte big-endian length
// followed by that many bytes of payload. It returns (nil, nil) on a clean
// EOF at a frame boundary, signaling the session should end. Any other
// error is a transport framing error and is fatal to the session: once the
// byte stream is out of sync, no later frame can be trusted.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading frame length: %w", err)
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MaxFrameLen {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortFrame
		}
		return nil, fmt.Errorf("reading frame body: %w", err)
	}
	return buf, nil
}

// WriteFrame writes data as one length-prefixed frame.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFrameLen {
		return ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("writing frame length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing frame body: %w", err)
	}
	if f, ok := w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
