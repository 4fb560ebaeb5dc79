package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speaking-stone-golang/internal/data/msg"
)

func testHeader(mutate func(*msg.AudioFrameHeader)) *msg.AudioFrameHeader {
	header := &msg.AudioFrameHeader{
		Sequence:      0,
		PayloadLen:    4,
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
	if mutate != nil {
		mutate(header)
	}
	return header
}

func TestBufferAppendAndSnapshot(t *testing.T) {
	buf := NewAudioStreamBuffer()
	payload := []byte{0, 1, 2, 3}

	require.NoError(t, buf.AppendFrame(testHeader(nil), payload))

	data, header, err := buf.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, uint16(16000), header.SampleRate)
	assert.False(t, buf.IsEmpty())
	assert.Equal(t, 4, buf.ByteCount())
}

func TestBufferRejectsPayloadLengthMismatch(t *testing.T) {
	buf := NewAudioStreamBuffer()
	err := buf.AppendFrame(testHeader(nil), []byte{0, 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload length mismatch")
}

func TestBufferRejectsParameterChanges(t *testing.T) {
	payload := []byte{0, 1, 2, 3}

	tests := []struct {
		name   string
		mutate func(*msg.AudioFrameHeader)
		detail string
	}{
		{
			name:   "sample rate change",
			mutate: func(h *msg.AudioFrameHeader) { h.SampleRate = 8000 },
			detail: "sample rate changed mid-stream",
		},
		{
			name:   "channel change",
			mutate: func(h *msg.AudioFrameHeader) { h.Channels = 2 },
			detail: "channel count changed mid-stream",
		},
		{
			name:   "bit depth change",
			mutate: func(h *msg.AudioFrameHeader) { h.BitsPerSample = 8 },
			detail: "bit depth changed mid-stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewAudioStreamBuffer()
			require.NoError(t, buf.AppendFrame(testHeader(nil), payload))

			err := buf.AppendFrame(testHeader(tt.mutate), payload)
			require.Error(t, err)
			assert.Equal(t, tt.detail, err.Error())
		})
	}
}

func TestBufferSnapshotWithoutData(t *testing.T) {
	buf := NewAudioStreamBuffer()

	_, _, err := buf.Snapshot()
	require.Error(t, err)

	require.NoError(t, buf.AppendFrame(testHeader(nil), []byte{0, 1, 2, 3}))
	buf.Clear()

	_, _, err = buf.Snapshot()
	require.Error(t, err)
	assert.True(t, buf.IsEmpty())
}

func TestBufferAccumulatesAcrossFrames(t *testing.T) {
	buf := NewAudioStreamBuffer()
	require.NoError(t, buf.AppendFrame(testHeader(nil), []byte{0, 1, 2, 3}))
	require.NoError(t, buf.AppendFrame(testHeader(func(h *msg.AudioFrameHeader) { h.Sequence = 1 }), []byte{4, 5, 6, 7}))

	data, _, err := buf.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7}, data)
}
