package webrtc_vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWebRTCVADWithConfigRejectsBadInput(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		mode       int
	}{
		{"unsupported sample rate", 44100, 2},
		{"mode too high", 16000, 4},
		{"negative mode", 16000, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vad, err := NewWebRTCVADWithConfig(tt.sampleRate, tt.mode)
			require.Error(t, err)
			assert.Nil(t, vad)
		})
	}
}

func TestNewWebRTCVADWithConfigCreatesUsableInstance(t *testing.T) {
	vad, err := NewWebRTCVADWithConfig(DefaultSampleRate, DefaultMode)
	require.NoError(t, err)
	require.True(t, vad.IsValid())
	defer vad.Close()

	// A full frame of silence never counts as speech.
	active, err := vad.IsActive(make([]int16, DefaultSampleRate/1000*FrameDuration), DefaultSampleRate)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, vad.Close())
	assert.False(t, vad.IsValid())
}
