package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateDurationMs(t *testing.T) {
	tests := []struct {
		name          string
		byteLen       int
		sampleRate    int
		channels      int
		bitsPerSample int
		want          float64
	}{
		{"one second mono 16k", 32000, 16000, 1, 16, 1000.0},
		{"one frame at defaults", 2560, 16000, 1, 16, 80.0},
		{"stereo halves duration", 32000, 16000, 2, 16, 500.0},
		{"zero sample rate", 32000, 0, 1, 16, 0},
		{"zero bit depth", 32000, 16000, 1, 0, 0},
		{"empty buffer", 0, 16000, 1, 16, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateDurationMs(tt.byteLen, tt.sampleRate, tt.channels, tt.bitsPerSample)
			assert.InDelta(t, tt.want, got, 0.01)
		})
	}
}

func TestBytesPerFrame(t *testing.T) {
	assert.Equal(t, 2560, BytesPerFrame(16000, 1, 16, 80))
	assert.Equal(t, 640, BytesPerFrame(16000, 1, 16, 20))
	assert.Equal(t, 1280, BytesPerFrame(16000, 2, 16, 20))
	assert.Equal(t, 960, BytesPerFrame(24000, 1, 16, 20))
}

func TestDefaultFormat(t *testing.T) {
	format := DefaultFormat()
	assert.Equal(t, Format, format.Format)
	assert.Equal(t, SampleRate, format.SampleRate)
	assert.Equal(t, Channels, format.Channels)
	assert.Equal(t, BitsPerSample, format.BitsPerSample)
	assert.Equal(t, FrameDuration, format.FrameDuration)
}
