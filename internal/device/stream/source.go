package stream

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"

	"speaking-stone-golang/internal/data/audio"
	"speaking-stone-golang/internal/domain/tts/common"
)

// Source supplies the PCM16 audio a device streams uplink.
type Source interface {
	// ReadAll returns the whole utterance and its format.
	ReadAll() ([]byte, audio.AudioFormat, error)
}

// WAVSource reads a PCM16 WAV file from disk.
type WAVSource struct {
	Path string
}

func NewWAVSource(path string) *WAVSource {
	return &WAVSource{Path: path}
}

func (s *WAVSource) ReadAll() ([]byte, audio.AudioFormat, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, audio.AudioFormat{}, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, audio.AudioFormat{}, fmt.Errorf("decode wav failed: %v", err)
	}
	if decoder.BitDepth != 16 {
		return nil, audio.AudioFormat{}, fmt.Errorf("unsupported bit depth: %d, expected 16", decoder.BitDepth)
	}

	format := audio.AudioFormat{
		Format:        audio.Format,
		SampleRate:    int(decoder.SampleRate),
		Channels:      int(decoder.NumChans),
		BitsPerSample: int(decoder.BitDepth),
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return common.Int16ToBytes(samples), format, nil
}

// ToneSource synthesizes a sine tone, for tests and loop-mode smoke
// runs without audio files.
type ToneSource struct {
	FrequencyHz float64
	DurationMs  int
	SampleRate  int
}

func NewToneSource(frequencyHz float64, durationMs int) *ToneSource {
	return &ToneSource{
		FrequencyHz: frequencyHz,
		DurationMs:  durationMs,
		SampleRate:  audio.SampleRate,
	}
}

func (s *ToneSource) ReadAll() ([]byte, audio.AudioFormat, error) {
	sampleRate := s.SampleRate
	if sampleRate <= 0 {
		sampleRate = audio.SampleRate
	}
	durationMs := s.DurationMs
	if durationMs <= 0 {
		durationMs = 1000
	}

	sampleCount := sampleRate * durationMs / 1000
	samples := make([]int16, sampleCount)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		samples[i] = int16(0.3 * math.MaxInt16 * math.Sin(2*math.Pi*s.FrequencyHz*t))
	}

	format := audio.AudioFormat{
		Format:        audio.Format,
		SampleRate:    sampleRate,
		Channels:      1,
		BitsPerSample: 16,
	}
	return common.Int16ToBytes(samples), format, nil
}
