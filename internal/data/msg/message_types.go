package msg

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Message type labels shared with the device firmware. Values are part of
// the wire protocol and must not change.
const (
	MsgTypeAudioChunk = "MSG_TYPE_AUDIO_CHUNK"
	MsgTypeTtsChunk   = "MSG_TYPE_TTS_CHUNK"
	MsgTypeControl    = "MSG_TYPE_CONTROL"
)

// Control events exchanged over the websocket text channel.
const (
	ControlEventConnected          = "connected"
	ControlEventAck                = "ack"
	ControlEventNoop               = "noop"
	ControlEventError              = "error"
	ControlEventSpeechEnd          = "speech_end"
	ControlEventResetBuffer        = "reset_buffer"
	ControlEventTextInput          = "text_input"
	ControlEventTranscriptionReady = "transcription_ready"
)

// HeaderSize is the packed size of AudioFrameHeader: little-endian
// u16 sequence, u16 payload_len, u16 sample_rate, u8 channels,
// u8 bits_per_sample, u16 flags.
const HeaderSize = 10

// Frame header flag bits.
const (
	// FlagOpus marks the payload as Opus-encoded instead of raw PCM.
	FlagOpus uint16 = 1 << 0
)

// AudioFrameHeader is the binary header prepended to each audio frame
// sent over the websocket.
type AudioFrameHeader struct {
	Sequence      uint16
	PayloadLen    uint16
	SampleRate    uint16
	Channels      uint8
	BitsPerSample uint8
	Flags         uint16
}

// Encode returns the packed binary header.
func (h *AudioFrameHeader) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(buf[0:2], h.Sequence)
	binary.LittleEndian.PutUint16(buf[2:4], h.PayloadLen)
	binary.LittleEndian.PutUint16(buf[4:6], h.SampleRate)
	buf[6] = h.Channels
	buf[7] = h.BitsPerSample
	binary.LittleEndian.PutUint16(buf[8:10], h.Flags)
	return buf
}

// DecodeAudioFrameHeader decodes the packed binary header.
func DecodeAudioFrameHeader(data []byte) (*AudioFrameHeader, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("incomplete audio header: expected %d bytes, got %d", HeaderSize, len(data))
	}
	return &AudioFrameHeader{
		Sequence:      binary.LittleEndian.Uint16(data[0:2]),
		PayloadLen:    binary.LittleEndian.Uint16(data[2:4]),
		SampleRate:    binary.LittleEndian.Uint16(data[4:6]),
		Channels:      data[6],
		BitsPerSample: data[7],
		Flags:         binary.LittleEndian.Uint16(data[8:10]),
	}, nil
}

// MaxPayloadLen is the largest payload a frame can carry; PayloadLen is
// a u16 on the wire.
const MaxPayloadLen = 0xFFFF

// PackAudioFrame prepends the header to the payload, filling PayloadLen.
func PackAudioFrame(header *AudioFrameHeader, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("audio payload too large: %d bytes, max %d", len(payload), MaxPayloadLen)
	}
	header.PayloadLen = uint16(len(payload))
	frame := make([]byte, 0, HeaderSize+len(payload))
	frame = append(frame, header.Encode()...)
	frame = append(frame, payload...)
	return frame, nil
}

// ControlMessage is the JSON envelope on the websocket text channel.
type ControlMessage struct {
	Type    string                 `json:"type"`
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// EncodeControlMessage encodes a control message as a JSON string.
func EncodeControlMessage(event string, payload map[string]interface{}) ([]byte, error) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return json.Marshal(&ControlMessage{
		Type:    MsgTypeControl,
		Event:   event,
		Payload: payload,
	})
}

// DecodeControlMessage decodes a control message JSON string.
func DecodeControlMessage(raw []byte) (*ControlMessage, error) {
	var m ControlMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// IsControl reports whether the decoded message carries the control label.
func (m *ControlMessage) IsControl() bool {
	return m.Type == MsgTypeControl
}
