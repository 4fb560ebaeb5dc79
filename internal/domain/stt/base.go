package stt

import (
	"context"
	"fmt"

	"speaking-stone-golang/constants"
	"speaking-stone-golang/internal/data/audio"
	"speaking-stone-golang/internal/domain/stt/whisper"
)

// SttProvider transcribes buffered utterance audio.
type SttProvider interface {
	// Transcribe converts one utterance of raw PCM into text.
	// Empty input yields an empty transcript and no error.
	Transcribe(ctx context.Context, pcm []byte, format audio.AudioFormat) (string, error)
}

// NewSttProvider creates an STT instance for the configured engine type.
func NewSttProvider(sttType string, config map[string]interface{}) (SttProvider, error) {
	switch sttType {
	case constants.SttTypeWhisper:
		return whisper.NewWhisperProvider(config)
	default:
		return nil, fmt.Errorf("unsupported stt engine type: %s, only 'whisper' is supported", sttType)
	}
}
