package common

import (
	"testing"

	"github.com/gopxl/beep"
	"github.com/stretchr/testify/assert"
)

// toneStreamer emits a fixed number of samples and then drains.
type toneStreamer struct {
	remaining int
}

func (s *toneStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.remaining <= 0 {
		return 0, false
	}
	n := len(samples)
	if n > s.remaining {
		n = s.remaining
	}
	for i := 0; i < n; i++ {
		samples[i] = [2]float64{0.1, 0.1}
	}
	s.remaining -= n
	return n, true
}

func (s *toneStreamer) Err() error { return nil }

func drainSamples(s beep.Streamer) int {
	buf := make([][2]float64, 512)
	total := 0
	for {
		n, ok := s.Stream(buf)
		total += n
		if !ok {
			return total
		}
	}
}

func TestResampleToRateConvertsNativeRate(t *testing.T) {
	// One second of 24 kHz source must come out as roughly one second
	// at the requested 16 kHz.
	source := &toneStreamer{remaining: 24000}
	stream, rate := resampleToRate(source, beep.SampleRate(24000), 16000)

	assert.Equal(t, 16000, rate)
	assert.InDelta(t, 16000, drainSamples(stream), 100)
}

func TestResampleToRatePassthrough(t *testing.T) {
	source := &toneStreamer{remaining: 4800}

	// Matching rates keep the original stream.
	stream, rate := resampleToRate(source, beep.SampleRate(16000), 16000)
	assert.Equal(t, 16000, rate)
	assert.Equal(t, beep.Streamer(source), stream)

	// A zero target keeps the native rate.
	stream, rate = resampleToRate(source, beep.SampleRate(24000), 0)
	assert.Equal(t, 24000, rate)
	assert.Equal(t, beep.Streamer(source), stream)
}

func TestInt16BytesRoundtrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}
	assert.Equal(t, samples, BytesToInt16(Int16ToBytes(samples)))
}
