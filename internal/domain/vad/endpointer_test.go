package vad

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedDetector replays a fixed activity sequence.
type scriptedDetector struct {
	activity []bool
	pos      int
	resets   int
	err      error
}

func (d *scriptedDetector) IsActive(pcm []int16, sampleRate int) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.pos >= len(d.activity) {
		return false, nil
	}
	active := d.activity[d.pos]
	d.pos++
	return active, nil
}

func (d *scriptedDetector) Reset() error {
	d.resets++
	return nil
}

func (d *scriptedDetector) Close() error { return nil }

func feedN(t *testing.T, e *Endpointer, n int) bool {
	t.Helper()
	frame := make([]int16, 320)
	ended := false
	for i := 0; i < n; i++ {
		var err error
		ended, err = e.Feed(frame)
		require.NoError(t, err)
	}
	return ended
}

func TestEndpointerIgnoresLeadingSilence(t *testing.T) {
	detector := &scriptedDetector{activity: make([]bool, 20)}
	e := NewEndpointer(detector, 16000, 3)

	// Silence before any speech never ends the utterance.
	assert.False(t, feedN(t, e, 20))
}

func TestEndpointerEndsAfterTrailingSilence(t *testing.T) {
	detector := &scriptedDetector{activity: []bool{true, true, false, false, false}}
	e := NewEndpointer(detector, 16000, 3)

	frame := make([]int16, 320)
	for i := 0; i < 4; i++ {
		ended, err := e.Feed(frame)
		require.NoError(t, err)
		assert.False(t, ended, "frame %d", i)
	}
	ended, err := e.Feed(frame)
	require.NoError(t, err)
	assert.True(t, ended)
}

func TestEndpointerSpeechResetsStreak(t *testing.T) {
	detector := &scriptedDetector{activity: []bool{true, false, false, true, false, false, false}}
	e := NewEndpointer(detector, 16000, 3)

	assert.False(t, feedN(t, e, 6))
	ended := feedN(t, e, 1)
	assert.True(t, ended)
}

func TestEndpointerReset(t *testing.T) {
	detector := &scriptedDetector{activity: []bool{true, false, false, false, false, false}}
	e := NewEndpointer(detector, 16000, 2)

	assert.True(t, feedN(t, e, 3))
	require.NoError(t, e.Reset())
	assert.Equal(t, 1, detector.resets)

	// After reset the detector scripts pure silence, so nothing ends.
	assert.False(t, feedN(t, e, 10))
}

func TestEndpointerPropagatesDetectorError(t *testing.T) {
	detector := &scriptedDetector{err: errors.New("detector gone")}
	e := NewEndpointer(detector, 16000, 3)

	_, err := e.Feed(make([]int16, 320))
	assert.ErrorContains(t, err, "detector gone")
}

func TestEndpointerDefaultThreshold(t *testing.T) {
	activity := []bool{true}
	for i := 0; i < 8; i++ {
		activity = append(activity, false)
	}
	detector := &scriptedDetector{activity: activity}
	e := NewEndpointer(detector, 16000, 0)

	assert.False(t, feedN(t, e, 8))
	assert.True(t, feedN(t, e, 1))
}
