package common

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"

	domain_audio "speaking-stone-golang/internal/domain/audio"
	log "speaking-stone-golang/logger"
)

// Frame output formats.
const (
	OutputFormatPcm  = "pcm"
	OutputFormatOpus = "opus"
)

// resampleQuality is the beep resampler quality (1 fastest, 64 best).
const resampleQuality = 4

// AudioDecoder turns an MP3 byte stream into fixed-duration mono audio
// frames. The decoded audio is resampled to sampleRate when the source
// rate differs, so every output frame is at the advertised rate. Output
// frames are either raw PCM16 (little-endian) or Opus packets, pushed
// one frame at a time into outputChan. The final partial frame is
// zero-padded to a full frame.
type AudioDecoder struct {
	pipeReader         io.ReadCloser
	outputChan         chan []byte
	sampleRate         int
	perFrameDurationMs int
	outputFormat       string

	codec *domain_audio.OpusCodec
	ctx   context.Context
}

// NewAudioDecoder creates a decoder; call Run to start decoding. A zero
// sampleRate keeps the source's native rate.
func NewAudioDecoder(ctx context.Context, pipeReader io.ReadCloser, outputChan chan []byte, sampleRate int, perFrameDurationMs int, outputFormat string) *AudioDecoder {
	return &AudioDecoder{
		pipeReader:         pipeReader,
		outputChan:         outputChan,
		sampleRate:         sampleRate,
		perFrameDurationMs: perFrameDurationMs,
		outputFormat:       outputFormat,
		ctx:                ctx,
	}
}

// Run decodes until the input drains or the context is cancelled.
// Closes outputChan on return.
func (d *AudioDecoder) Run(startTs int64) error {
	defer close(d.outputChan)

	decoder, format, err := mp3.Decode(d.pipeReader)
	if err != nil {
		return fmt.Errorf("create mp3 decoder failed: %v", err)
	}
	defer decoder.Close()
	log.Debugf("mp3 format: %d Hz, %d channels", format.SampleRate, format.NumChannels)

	stream, sampleRate := resampleToRate(decoder, format.SampleRate, d.sampleRate)
	if sampleRate != int(format.SampleRate) {
		log.Debugf("resampling %d Hz source to %d Hz output", format.SampleRate, sampleRate)
	}

	// Always mono output; stereo sources are averaged down.
	if d.outputFormat == OutputFormatOpus {
		codec, err := domain_audio.NewOpusCodec(sampleRate, 1)
		if err != nil {
			return err
		}
		d.codec = codec
	}

	frameSize := sampleRate * d.perFrameDurationMs / 1000
	pcmBuffer := make([]int16, frameSize)
	mp3Buffer := make([][2]float64, 1024)

	currentFramePos := 0
	var firstFrame bool
	for {
		select {
		case <-d.ctx.Done():
			log.Debugf("audio decoder context done, exit")
			return nil
		default:
			n, ok := stream.Stream(mp3Buffer)
			if !ok {
				if currentFramePos > 0 {
					paddedFrame := make([]int16, frameSize)
					copy(paddedFrame, pcmBuffer[:currentFramePos])
					if err := d.emitFrame(paddedFrame); err != nil {
						return err
					}
				}
				return nil
			}
			if n == 0 {
				continue
			}

			for i := 0; i < n; i++ {
				// Average the channels while still floating point to
				// avoid int16 overflow.
				monoSampleFloat := (mp3Buffer[i][0] + mp3Buffer[i][1]) * 0.5
				if monoSampleFloat > 1.0 {
					monoSampleFloat = 1.0
				} else if monoSampleFloat < -1.0 {
					monoSampleFloat = -1.0
				}
				pcmBuffer[currentFramePos] = int16(monoSampleFloat * 32767.0)
				currentFramePos++

				if currentFramePos == frameSize {
					select {
					case <-d.ctx.Done():
						log.Debugf("audio decoder context done, exit")
						return nil
					default:
					}
					if err := d.emitFrame(pcmBuffer); err != nil {
						log.Errorf("encode frame failed: %v", err)
						currentFramePos = 0
						continue
					}
					if !firstFrame {
						firstFrame = true
						log.Debugf("tts first frame decoded, cost: %d ms", time.Now().UnixMilli()-startTs)
					}
					currentFramePos = 0
				}
			}
		}
	}
}

// resampleToRate wraps the stream in a resampler when the native rate
// differs from the requested one and returns the effective output rate.
// A target of zero keeps the native rate.
func resampleToRate(s beep.Streamer, native beep.SampleRate, target int) (beep.Streamer, int) {
	if target <= 0 || target == int(native) {
		return s, int(native)
	}
	return beep.Resample(resampleQuality, native, beep.SampleRate(target), s), target
}

// emitFrame encodes (or copies) one full PCM frame and pushes it out.
func (d *AudioDecoder) emitFrame(pcmFrame []int16) error {
	var frameData []byte
	if d.outputFormat == OutputFormatOpus {
		encoded, err := d.codec.Encode(pcmFrame)
		if err != nil {
			return err
		}
		frameData = encoded
	} else {
		frameData = Int16ToBytes(pcmFrame)
	}
	d.outputChan <- frameData
	return nil
}

// Int16ToBytes packs samples as little-endian PCM16 bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// BytesToInt16 unpacks little-endian PCM16 bytes into samples.
func BytesToInt16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
	}
	return out
}
