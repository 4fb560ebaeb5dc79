package msg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioFrameHeaderRoundtrip(t *testing.T) {
	header := &AudioFrameHeader{
		Sequence:      42,
		PayloadLen:    1600,
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
		Flags:         3,
	}

	raw := header.Encode()
	require.Len(t, raw, HeaderSize)

	decoded, err := DecodeAudioFrameHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, header, decoded)
}

func TestAudioFrameHeaderRequiresMinimumBytes(t *testing.T) {
	_, err := DecodeAudioFrameHeader([]byte{0x00, 0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected")
}

func TestAudioFrameHeaderLayout(t *testing.T) {
	header := &AudioFrameHeader{
		Sequence:   0x0102,
		PayloadLen: 0x0304,
		SampleRate: 0x3e80, // 16000
	}
	raw := header.Encode()

	// Little-endian u16 fields.
	assert.Equal(t, byte(0x02), raw[0])
	assert.Equal(t, byte(0x01), raw[1])
	assert.Equal(t, byte(0x04), raw[2])
	assert.Equal(t, byte(0x03), raw[3])
	assert.Equal(t, byte(0x80), raw[4])
	assert.Equal(t, byte(0x3e), raw[5])
}

func TestPackAudioFrame(t *testing.T) {
	header := &AudioFrameHeader{
		Sequence:      7,
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
	payload := []byte{1, 2, 3, 4}

	frame, err := PackAudioFrame(header, payload)
	require.NoError(t, err)
	require.Len(t, frame, HeaderSize+len(payload))

	decoded, err := DecodeAudioFrameHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, uint16(len(payload)), decoded.PayloadLen)
	assert.Equal(t, payload, frame[HeaderSize:])
}

func TestPackAudioFrameRejectsOversizedPayload(t *testing.T) {
	header := &AudioFrameHeader{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

	frame, err := PackAudioFrame(header, make([]byte, MaxPayloadLen))
	require.NoError(t, err)
	assert.Len(t, frame, HeaderSize+MaxPayloadLen)

	frame, err = PackAudioFrame(header, make([]byte, MaxPayloadLen+1))
	require.Error(t, err)
	assert.Nil(t, frame)
	assert.Contains(t, err.Error(), "payload too large")
}

func TestControlMessageRoundtrip(t *testing.T) {
	raw, err := EncodeControlMessage(ControlEventSpeechEnd, map[string]interface{}{"reason": "drained"})
	require.NoError(t, err)

	decoded, err := DecodeControlMessage(raw)
	require.NoError(t, err)
	assert.True(t, decoded.IsControl())
	assert.Equal(t, ControlEventSpeechEnd, decoded.Event)
	assert.Equal(t, "drained", decoded.Payload["reason"])
}

func TestControlMessageNilPayload(t *testing.T) {
	raw, err := EncodeControlMessage(ControlEventAck, nil)
	require.NoError(t, err)

	decoded, err := DecodeControlMessage(raw)
	require.NoError(t, err)
	assert.NotNil(t, decoded.Payload)
	assert.Empty(t, decoded.Payload)
}

func TestControlMessageRejectsUnlabeledInput(t *testing.T) {
	decoded, err := DecodeControlMessage([]byte(`{"type":"something_else","event":"ack"}`))
	require.NoError(t, err)
	assert.False(t, decoded.IsControl())

	_, err = DecodeControlMessage([]byte("not json at all"))
	assert.Error(t, err)
}
