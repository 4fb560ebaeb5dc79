package vad

import (
	"speaking-stone-golang/internal/domain/vad/inter"
)

// Endpointer watches a live PCM stream and reports when the speaker has
// stopped talking. It counts consecutive silent frames once speech has
// been observed at least once.
type Endpointer struct {
	detector inter.VAD

	silenceThreshold int

	sawSpeech    bool
	silentStreak int
	sampleRate   int
}

// NewEndpointer wraps a detector. silenceFrames is how many consecutive
// non-speech frames after speech count as end of utterance.
func NewEndpointer(detector inter.VAD, sampleRate, silenceFrames int) *Endpointer {
	if silenceFrames <= 0 {
		silenceFrames = 8
	}
	return &Endpointer{
		detector:         detector,
		silenceThreshold: silenceFrames,
		sampleRate:       sampleRate,
	}
}

// Feed processes one frame of PCM16 samples and reports whether the
// utterance has ended.
func (e *Endpointer) Feed(pcm []int16) (bool, error) {
	active, err := e.detector.IsActive(pcm, e.sampleRate)
	if err != nil {
		return false, err
	}

	if active {
		e.sawSpeech = true
		e.silentStreak = 0
		return false, nil
	}

	if !e.sawSpeech {
		return false, nil
	}

	e.silentStreak++
	return e.silentStreak >= e.silenceThreshold, nil
}

// Reset clears state for the next utterance.
func (e *Endpointer) Reset() error {
	e.sawSpeech = false
	e.silentStreak = 0
	return e.detector.Reset()
}
