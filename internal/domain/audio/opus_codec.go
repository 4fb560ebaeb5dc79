package audio

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// maxFrameSamples is the largest frame opus allows: 120 ms at 48 kHz.
const maxFrameSamples = 5760

// OpusCodec encodes and decodes standalone Opus packets for a fixed
// sample rate and channel layout. Not safe for concurrent use.
type OpusCodec struct {
	sampleRate int
	channels   int
	encoder    *opus.Encoder
	decoder    *opus.Decoder
	packetBuf  []byte
}

func NewOpusCodec(sampleRate int, channels int) (*OpusCodec, error) {
	encoder, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder failed: %v", err)
	}
	decoder, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder failed: %v", err)
	}
	return &OpusCodec{
		sampleRate: sampleRate,
		channels:   channels,
		encoder:    encoder,
		decoder:    decoder,
		packetBuf:  make([]byte, 1000),
	}, nil
}

// Encode compresses one PCM16 frame into an Opus packet. The frame must
// be a duration opus supports (2.5, 5, 10, 20, 40 or 60 ms, or an
// integer multiple up to 120 ms).
func (c *OpusCodec) Encode(pcm []int16) ([]byte, error) {
	n, err := c.encoder.Encode(pcm, c.packetBuf)
	if err != nil {
		return nil, fmt.Errorf("opus encode failed: %v", err)
	}
	out := make([]byte, n)
	copy(out, c.packetBuf[:n])
	return out, nil
}

// Decode expands one Opus packet back into PCM16 samples.
func (c *OpusCodec) Decode(packet []byte) ([]int16, error) {
	pcm := make([]int16, maxFrameSamples*c.channels)
	n, err := c.decoder.Decode(packet, pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %v", err)
	}
	return pcm[:n*c.channels], nil
}

func (c *OpusCodec) SampleRate() int { return c.sampleRate }

func (c *OpusCodec) Channels() int { return c.channels }
