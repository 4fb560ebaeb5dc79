package util

import (
	"math"
	"time"
)

// StageTimer records elapsed time for sequential pipeline stages
// (stt -> llm -> tts). Not safe for concurrent use; a session owns one
// timer per turn.
type StageTimer struct {
	last      time.Time
	durations []stageDuration
}

type stageDuration struct {
	name     string
	duration time.Duration
}

func NewStageTimer() *StageTimer {
	return &StageTimer{last: time.Now()}
}

// Mark closes the current stage under the given name and starts the next.
func (t *StageTimer) Mark(name string) {
	now := time.Now()
	t.durations = append(t.durations, stageDuration{name: name, duration: now.Sub(t.last)})
	t.last = now
}

// Metrics returns per-stage durations in milliseconds, keyed as
// "<stage>_ms", plus a "total_ms" sum. Values are rounded to 2 decimals.
func (t *StageTimer) Metrics() map[string]float64 {
	metric := make(map[string]float64, len(t.durations)+1)
	var total time.Duration
	for _, d := range t.durations {
		metric[d.name+"_ms"] = roundMs(d.duration)
		total += d.duration
	}
	metric["total_ms"] = roundMs(total)
	return metric
}

func roundMs(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)*100) / 100
}
