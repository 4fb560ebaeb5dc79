package whisper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speaking-stone-golang/internal/data/audio"
)

func validFormat() audio.AudioFormat {
	return audio.AudioFormat{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

func TestTranscribeEmptyInput(t *testing.T) {
	provider, err := NewWhisperProvider(nil)
	require.NoError(t, err)

	text, err := provider.Transcribe(context.Background(), nil, validFormat())
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestTranscribeValidatesFormat(t *testing.T) {
	provider, err := NewWhisperProvider(nil)
	require.NoError(t, err)

	pcm := []byte{0, 0, 0, 0}

	tests := []struct {
		name   string
		pcm    []byte
		format audio.AudioFormat
		detail string
	}{
		{
			name:   "wrong bit depth",
			pcm:    pcm,
			format: audio.AudioFormat{SampleRate: 16000, Channels: 1, BitsPerSample: 8},
			detail: "16-bit",
		},
		{
			name:   "stereo input",
			pcm:    pcm,
			format: audio.AudioFormat{SampleRate: 16000, Channels: 2, BitsPerSample: 16},
			detail: "mono",
		},
		{
			name:   "wrong sample rate",
			pcm:    pcm,
			format: audio.AudioFormat{SampleRate: 8000, Channels: 1, BitsPerSample: 16},
			detail: "16000",
		},
		{
			name:   "odd byte count",
			pcm:    []byte{0, 0, 0},
			format: validFormat(),
			detail: "aligned",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.Transcribe(context.Background(), tt.pcm, tt.format)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.detail)
		})
	}
}

func TestTranscribePostsWavAndReturnsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/inference", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, fileHeader, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "utterance.wav", fileHeader.Filename)
		assert.Equal(t, "json", r.FormValue("response_format"))

		json.NewEncoder(w).Encode(map[string]string{"text": "  hello stone  "})
	}))
	defer server.Close()

	provider, err := NewWhisperProvider(map[string]interface{}{
		"base_url": server.URL,
	})
	require.NoError(t, err)

	// 100 ms of silence.
	pcm := make([]byte, 3200)
	text, err := provider.Transcribe(context.Background(), pcm, validFormat())
	require.NoError(t, err)
	assert.Equal(t, "hello stone", text)
}

func TestTranscribeSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model not loaded"))
	}))
	defer server.Close()

	provider, err := NewWhisperProvider(map[string]interface{}{"base_url": server.URL})
	require.NoError(t, err)

	_, err = provider.Transcribe(context.Background(), make([]byte, 320), validFormat())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
