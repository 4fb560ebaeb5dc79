package audio

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	FrameDuration = 80
	Format        = "pcm"
)

type AudioFormat struct {
	Format        string `json:"format,omitempty"`
	SampleRate    int    `json:"sample_rate,omitempty"`
	Channels      int    `json:"channels,omitempty"`
	BitsPerSample int    `json:"bits_per_sample,omitempty"`
	FrameDuration int    `json:"frame_duration,omitempty"`
}

// DefaultFormat is the uplink format the edge expects from devices.
func DefaultFormat() AudioFormat {
	return AudioFormat{
		Format:        Format,
		SampleRate:    SampleRate,
		Channels:      Channels,
		BitsPerSample: BitsPerSample,
		FrameDuration: FrameDuration,
	}
}

// EstimateDurationMs approximates the duration in milliseconds of raw PCM
// bytes for the given format. Returns 0 for degenerate formats.
func EstimateDurationMs(byteLen int, sampleRate int, channels int, bitsPerSample int) float64 {
	bytesPerSample := channels * (bitsPerSample / 8)
	if bytesPerSample == 0 || sampleRate == 0 {
		return 0
	}
	samples := float64(byteLen) / float64(bytesPerSample)
	seconds := samples / float64(sampleRate)
	return roundTo2(seconds * 1000.0)
}

// BytesPerFrame returns the raw PCM byte count of one frame of
// frameDuration milliseconds.
func BytesPerFrame(sampleRate int, channels int, bitsPerSample int, frameDuration int) int {
	samplesPerFrame := sampleRate * frameDuration / 1000
	return samplesPerFrame * channels * (bitsPerSample / 8)
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
