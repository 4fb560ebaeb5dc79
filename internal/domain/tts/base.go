package tts

import (
	"context"
	"fmt"

	"speaking-stone-golang/constants"
	"speaking-stone-golang/internal/domain/tts/edge"
)

// TTSProvider synthesizes speech audio frames. Frames are raw PCM16 or
// Opus packets depending on the requested output format.
type TTSProvider interface {
	// TextToSpeech synthesizes the whole utterance and returns its frames.
	TextToSpeech(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) ([][]byte, error)
	// TextToSpeechStream synthesizes incrementally; the returned channel
	// is closed when synthesis ends.
	TextToSpeechStream(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) (chan []byte, error)
}

// GetTTSProvider creates a TTS provider by name.
func GetTTSProvider(providerName string, config map[string]interface{}) (TTSProvider, error) {
	switch providerName {
	case constants.TtsTypeEdge:
		return edge.NewEdgeTTSProvider(config), nil
	default:
		return nil, fmt.Errorf("unsupported tts provider: %s", providerName)
	}
}
