package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageTimerTracksMultipleMarks(t *testing.T) {
	timer := NewStageTimer()
	time.Sleep(20 * time.Millisecond)
	timer.Mark("stt")
	time.Sleep(10 * time.Millisecond)
	timer.Mark("llm")

	metrics := timer.Metrics()
	require.Contains(t, metrics, "stt_ms")
	require.Contains(t, metrics, "llm_ms")
	require.Contains(t, metrics, "total_ms")

	assert.GreaterOrEqual(t, metrics["stt_ms"], 20.0)
	assert.GreaterOrEqual(t, metrics["llm_ms"], 10.0)

	// Total is the sum of the stages, within rounding error.
	assert.InDelta(t, metrics["stt_ms"]+metrics["llm_ms"], metrics["total_ms"], 0.05)
}

func TestStageTimerWithoutMarksReportsZero(t *testing.T) {
	timer := NewStageTimer()
	metrics := timer.Metrics()
	assert.Equal(t, 0.0, metrics["total_ms"])
	assert.Len(t, metrics, 1)
}
