package stream

import (
	"fmt"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"speaking-stone-golang/internal/data/audio"
	"speaking-stone-golang/internal/data/msg"
	domain_audio "speaking-stone-golang/internal/domain/audio"
	"speaking-stone-golang/internal/domain/tts/common"
	log "speaking-stone-golang/logger"
)

// Sink consumes the synthesized speech frames a device receives.
type Sink interface {
	// WriteFrame handles one downlink frame. Opus payloads are decoded
	// before landing in the sink output.
	WriteFrame(header *msg.AudioFrameHeader, payload []byte) error
	Close() error
}

// WAVSink appends received speech to a WAV file, decoding Opus frames
// when the header flags them.
type WAVSink struct {
	mu      sync.Mutex
	file    *os.File
	encoder *wav.Encoder
	codec   *domain_audio.OpusCodec
	format  audio.AudioFormat
	closed  bool
}

func NewWAVSink(path string) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &WAVSink{file: f}, nil
}

func (s *WAVSink) WriteFrame(header *msg.AudioFrameHeader, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("sink is closed")
	}

	if s.encoder == nil {
		s.format = audio.AudioFormat{
			SampleRate:    int(header.SampleRate),
			Channels:      int(header.Channels),
			BitsPerSample: int(header.BitsPerSample),
		}
		s.encoder = wav.NewEncoder(s.file, s.format.SampleRate, s.format.BitsPerSample, s.format.Channels, 1)
	}

	var samples []int16
	if header.Flags&msg.FlagOpus != 0 {
		decoded, err := s.decodeOpus(payload)
		if err != nil {
			return err
		}
		samples = decoded
	} else {
		samples = common.BytesToInt16(payload)
	}

	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = int(v)
	}
	return s.encoder.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: s.format.Channels,
			SampleRate:  s.format.SampleRate,
		},
		Data:           data,
		SourceBitDepth: s.format.BitsPerSample,
	})
}

func (s *WAVSink) decodeOpus(payload []byte) ([]int16, error) {
	if s.codec == nil {
		codec, err := domain_audio.NewOpusCodec(s.format.SampleRate, s.format.Channels)
		if err != nil {
			return nil, err
		}
		s.codec = codec
	}
	return s.codec.Decode(payload)
}

func (s *WAVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.encoder != nil {
		if err := s.encoder.Close(); err != nil {
			log.Warnf("close wav encoder failed: %v", err)
		}
	}
	return s.file.Close()
}

// DiscardSink drops frames after counting them, for loop-mode runs that
// only need the receive path exercised.
type DiscardSink struct {
	frames int
	bytes  int
	mu     sync.Mutex
}

func (s *DiscardSink) WriteFrame(header *msg.AudioFrameHeader, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.bytes += len(payload)
	return nil
}

func (s *DiscardSink) Close() error { return nil }

// Stats returns how many frames and payload bytes were discarded.
func (s *DiscardSink) Stats() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames, s.bytes
}
