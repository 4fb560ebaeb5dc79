package webrtc_vad

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/hackers365/go-webrtcvad"

	"speaking-stone-golang/internal/domain/vad/inter"
)

const (
	// DefaultSampleRate is 16 kHz; WebRTC VAD supports 8000, 16000,
	// 32000 and 48000.
	DefaultSampleRate = 16000
	// DefaultMode is the detector sensitivity, 0 (least) to 3 (most
	// aggressive).
	DefaultMode = 2
	// FrameDuration in ms; WebRTC VAD accepts 10, 20 or 30 ms frames.
	FrameDuration = 20
)

// WebRTCVAD wraps a webrtcvad instance. Implements inter.VAD and the
// pooled-resource lifecycle.
type WebRTCVAD struct {
	webrtcVad      *webrtcvad.VAD
	sampleRate     int
	mode           int
	frameSize      int // samples per frame
	frameSizeBytes int
	initialized    bool
	lastUsed       time.Time
	mu             sync.RWMutex
}

// NewWebRTCVADWithConfig creates and initializes an instance.
func NewWebRTCVADWithConfig(sampleRate, mode int) (*WebRTCVAD, error) {
	if !isValidSampleRate(sampleRate) {
		return nil, fmt.Errorf("unsupported sample rate: %d, supported rates: 8000, 16000, 32000, 48000", sampleRate)
	}
	if mode < 0 || mode > 3 {
		return nil, fmt.Errorf("invalid VAD mode: %d, must be 0-3", mode)
	}

	v := &WebRTCVAD{
		sampleRate: sampleRate,
		mode:       mode,
		lastUsed:   time.Now(),
	}
	if err := v.init(); err != nil {
		return nil, err
	}
	return v, nil
}

func (w *WebRTCVAD) init() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.initialized {
		return nil
	}

	w.frameSize = w.sampleRate / 1000 * FrameDuration
	w.frameSizeBytes = w.frameSize * 2 // 16-bit PCM

	var err error
	w.webrtcVad, err = webrtcvad.New()
	if err != nil {
		return fmt.Errorf("failed to create WebRTC VAD instance: %v", err)
	}
	if w.webrtcVad == nil {
		return fmt.Errorf("failed to create WebRTC VAD instance")
	}

	err = w.webrtcVad.SetMode(w.mode)
	if err != nil {
		webrtcvad.Free(w.webrtcVad)
		return fmt.Errorf("failed to set WebRTC VAD mode: %+v", err)
	}

	w.initialized = true
	w.lastUsed = time.Now()
	return nil
}

// IsActive splits the samples into VAD frames and reports speech when at
// least half the complete frames test active. Trailing samples short of
// a full frame are ignored.
func (w *WebRTCVAD) IsActive(pcm []int16, sampleRate int) (bool, error) {
	if len(pcm) == 0 {
		return false, nil
	}
	if sampleRate == 0 {
		sampleRate = w.sampleRate
	}

	w.mu.Lock()
	w.lastUsed = time.Now()
	w.mu.Unlock()

	frameSize := sampleRate / 1000 * FrameDuration
	pcmBytes := int16ToPCMBytes(pcm)
	frameSizeBytes := frameSize * 2

	if len(pcmBytes) < frameSizeBytes {
		return false, nil
	}

	activityCount := 0
	for i := 0; i+frameSizeBytes <= len(pcmBytes); i += frameSizeBytes {
		frameData := pcmBytes[i : i+frameSizeBytes]
		isActive, err := w.webrtcVad.Process(sampleRate, frameData)
		if err != nil {
			return false, fmt.Errorf("WebRTC VAD process error: %w", err)
		}
		if isActive {
			activityCount++
		}
	}

	frameCount := len(pcmBytes) / frameSizeBytes
	return activityCount >= (frameCount+1)/2, nil
}

// Reset clears detector state.
func (w *WebRTCVAD) Reset() error {
	return nil
}

// Close releases the underlying instance.
func (w *WebRTCVAD) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.initialized && w.webrtcVad != nil {
		webrtcvad.Free(w.webrtcVad)
		w.initialized = false
	}
	return nil
}

// IsValid reports whether the instance is usable (pool validation).
func (w *WebRTCVAD) IsValid() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.initialized && w.webrtcVad != nil
}

func isValidSampleRate(sampleRate int) bool {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
		return true
	}
	return false
}

// int16ToPCMBytes packs samples as little-endian PCM16 bytes.
func int16ToPCMBytes(samples []int16) []byte {
	pcmBytes := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(pcmBytes[i*2:], uint16(sample))
	}
	return pcmBytes
}

var _ inter.VAD = (*WebRTCVAD)(nil)
