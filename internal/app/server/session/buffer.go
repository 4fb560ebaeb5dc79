package session

import (
	"fmt"
	"sync"

	. "speaking-stone-golang/internal/data/msg"
)

// AudioStreamBuffer accumulates PCM payloads for one websocket session.
// The first frame's header pins the audio parameters; any mid-stream
// change is rejected and the caller is expected to clear the buffer.
type AudioStreamBuffer struct {
	mu       sync.Mutex
	pcmBytes []byte
	header   *AudioFrameHeader
}

func NewAudioStreamBuffer() *AudioStreamBuffer {
	return &AudioStreamBuffer{}
}

// AppendFrame appends a PCM payload, ensuring audio params stay consistent.
func (b *AudioStreamBuffer) AppendFrame(header *AudioFrameHeader, payload []byte) error {
	if int(header.PayloadLen) != len(payload) {
		return fmt.Errorf("payload length mismatch")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.header == nil {
		b.header = header
	} else {
		if header.SampleRate != b.header.SampleRate {
			return fmt.Errorf("sample rate changed mid-stream")
		}
		if header.Channels != b.header.Channels {
			return fmt.Errorf("channel count changed mid-stream")
		}
		if header.BitsPerSample != b.header.BitsPerSample {
			return fmt.Errorf("bit depth changed mid-stream")
		}
	}

	b.pcmBytes = append(b.pcmBytes, payload...)
	return nil
}

// Snapshot returns the buffered PCM bytes with the pinned header metadata.
func (b *AudioStreamBuffer) Snapshot() ([]byte, *AudioFrameHeader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.header == nil {
		return nil, nil, fmt.Errorf("no audio buffered yet")
	}
	pcm := make([]byte, len(b.pcmBytes))
	copy(pcm, b.pcmBytes)
	return pcm, b.header, nil
}

// Clear resets the buffer for the next utterance.
func (b *AudioStreamBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pcmBytes = b.pcmBytes[:0]
	b.header = nil
}

func (b *AudioStreamBuffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pcmBytes) == 0
}

func (b *AudioStreamBuffer) ByteCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pcmBytes)
}
