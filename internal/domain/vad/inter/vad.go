package inter

// VAD detects voice activity in PCM16 audio.
type VAD interface {
	// IsActive reports whether the given PCM16 samples contain speech.
	IsActive(pcm []int16, sampleRate int) (bool, error)
	// Reset clears detector state.
	Reset() error
	// Close releases the detector.
	Close() error
}
