package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("payload")))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestFrameRoundTripEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, nil))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFrameCleanEOF(t *testing.T) {
	var buf bytes.Buffer
	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadFrameShortFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello world")))

	truncated := buf.Bytes()[:6]
	_, err := ReadFrame(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestReadFrameTooLarge(t *testing.T) {
	var lenBuf [4]byte
	lenBuf[0] = 0xFF
	lenBuf[1] = 0xFF
	lenBuf[2] = 0xFF
	lenBuf[3] = 0xFF
	_, err := ReadFrame(bytes.NewReader(lenBuf[:]))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestMultipleFramesSequentially(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("first")))
	require.NoError(t, WriteFrame(&buf, []byte("second")))

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), first)

	second, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), second)

	eof, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Nil(t, eof)
}
