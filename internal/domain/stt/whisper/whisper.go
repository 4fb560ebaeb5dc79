package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	go_audio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"speaking-stone-golang/internal/data/audio"
	log "speaking-stone-golang/logger"
)

// Whisper expects 16 kHz mono PCM16 input.
const whisperSampleRate = 16000

// WhisperConfig holds the connection settings for a whisper.cpp-style
// inference server.
type WhisperConfig struct {
	BaseURL  string // e.g. http://localhost:8080
	Language string // empty for auto-detect
	Timeout  int    // seconds
}

// DefaultConfig is used when no host is configured.
var DefaultConfig = WhisperConfig{
	BaseURL: "http://localhost:8080",
	Timeout: 30,
}

// WhisperProvider transcribes utterances through a whisper inference
// server over HTTP.
type WhisperProvider struct {
	config WhisperConfig
	client *http.Client
}

// NewWhisperProvider creates a provider from the config map.
func NewWhisperProvider(config map[string]interface{}) (*WhisperProvider, error) {
	cfg := DefaultConfig
	if baseURL, ok := config["base_url"].(string); ok && baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if language, ok := config["language"].(string); ok {
		cfg.Language = language
	}
	if timeout, ok := config["timeout"].(int); ok && timeout > 0 {
		cfg.Timeout = timeout
	} else if timeoutFloat, ok := config["timeout"].(float64); ok && timeoutFloat > 0 {
		cfg.Timeout = int(timeoutFloat)
	}

	return &WhisperProvider{
		config: cfg,
		client: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}, nil
}

type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Transcribe validates the PCM format, wraps it in a WAV container and
// posts it to the inference endpoint.
func (p *WhisperProvider) Transcribe(ctx context.Context, pcm []byte, format audio.AudioFormat) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}
	if err := validateFormat(pcm, format); err != nil {
		return "", err
	}

	wavData, err := pcmToWav(pcm, format)
	if err != nil {
		return "", fmt.Errorf("encode wav failed: %v", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wavData); err != nil {
		return "", err
	}
	writer.WriteField("response_format", "json")
	if p.config.Language != "" {
		writer.WriteField("language", p.config.Language)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	url := strings.TrimRight(p.config.BaseURL, "/") + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	startTs := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result inferenceResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode whisper response failed: %v", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("whisper server error: %s", result.Error)
	}

	transcript := strings.TrimSpace(result.Text)
	log.Debugf("whisper transcribe done, bytes: %d, cost: %d ms", len(pcm), time.Since(startTs).Milliseconds())
	return transcript, nil
}

// validateFormat enforces the PCM16 mono 16 kHz contract.
func validateFormat(pcm []byte, format audio.AudioFormat) error {
	if format.BitsPerSample != 16 {
		return fmt.Errorf("only 16-bit PCM supported, got %d", format.BitsPerSample)
	}
	if format.Channels != 1 {
		return fmt.Errorf("only mono audio supported, got %d channels", format.Channels)
	}
	if format.SampleRate != whisperSampleRate {
		return fmt.Errorf("whisper expects %d Hz audio, got %d", whisperSampleRate, format.SampleRate)
	}
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload size must be aligned to 16-bit samples")
	}
	return nil
}

// pcmToWav wraps raw PCM16 in a WAV container. The go-audio encoder
// needs a WriteSeeker, so a temp file carries the intermediate result.
func pcmToWav(pcm []byte, format audio.AudioFormat) ([]byte, error) {
	tmpFile, err := os.CreateTemp("", "stt-*.wav")
	if err != nil {
		return nil, err
	}
	tmpName := tmpFile.Name()
	defer os.Remove(tmpName)

	enc := wav.NewEncoder(tmpFile, format.SampleRate, format.BitsPerSample, format.Channels, 1)

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buf := &go_audio.IntBuffer{
		Data: samples,
		Format: &go_audio.Format{
			NumChannels: format.Channels,
			SampleRate:  format.SampleRate,
		},
		SourceBitDepth: format.BitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		tmpFile.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		tmpFile.Close()
		return nil, err
	}
	if err := tmpFile.Close(); err != nil {
		return nil, err
	}

	return os.ReadFile(tmpName)
}
