package edge

import (
	"context"
	"io"
	"time"

	"github.com/difyz9/edge-tts-go/pkg/communicate"

	"speaking-stone-golang/internal/domain/tts/common"
	log "speaking-stone-golang/logger"
)

// EdgeTTSProvider synthesizes speech through the Edge TTS service.
// Config keys: voice, rate, volume, pitch, output_format, connect_timeout,
// receive_timeout.
type EdgeTTSProvider struct {
	Voice          string
	Rate           string
	Volume         string
	Pitch          string
	OutputFormat   string
	ConnectTimeout int
	ReceiveTimeout int
}

// NewEdgeTTSProvider creates an EdgeTTSProvider with defaults filled in.
func NewEdgeTTSProvider(config map[string]interface{}) *EdgeTTSProvider {
	voice, _ := config["voice"].(string)
	rate, _ := config["rate"].(string)
	volume, _ := config["volume"].(string)
	pitch, _ := config["pitch"].(string)
	outputFormat, _ := config["output_format"].(string)
	connectTimeout, _ := config["connect_timeout"].(int)
	receiveTimeout, _ := config["receive_timeout"].(int)
	if voice == "" {
		voice = "en-US-AriaNeural"
	}
	if rate == "" {
		rate = "+0%"
	}
	if volume == "" {
		volume = "+0%"
	}
	if pitch == "" {
		pitch = "+0Hz"
	}
	if outputFormat == "" {
		outputFormat = common.OutputFormatPcm
	}
	if connectTimeout == 0 {
		connectTimeout = 10
	}
	if receiveTimeout == 0 {
		receiveTimeout = 60
	}
	return &EdgeTTSProvider{
		Voice:          voice,
		Rate:           rate,
		Volume:         volume,
		Pitch:          pitch,
		OutputFormat:   outputFormat,
		ConnectTimeout: connectTimeout,
		ReceiveTimeout: receiveTimeout,
	}
}

// TextToSpeech synthesizes the whole utterance and returns its frames.
func (p *EdgeTTSProvider) TextToSpeech(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) ([][]byte, error) {
	outputChan, err := p.TextToSpeechStream(ctx, text, sampleRate, channels, frameDuration)
	if err != nil {
		return nil, err
	}
	var frames [][]byte
	for frame := range outputChan {
		frames = append(frames, frame)
	}
	return frames, nil
}

// TextToSpeechStream streams synthesis; MP3 chunks from the service are
// piped into the frame decoder as they arrive, resampled to sampleRate.
func (p *EdgeTTSProvider) TextToSpeechStream(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) (chan []byte, error) {
	startTs := time.Now().UnixMilli()
	comm, err := communicate.NewCommunicate(
		text,
		p.Voice,
		p.Rate,
		p.Volume,
		p.Pitch,
		"", // proxy
		p.ConnectTimeout,
		p.ReceiveTimeout,
	)
	if err != nil {
		log.Errorf("edge tts communicate create failed: %v", err)
		return nil, err
	}

	chunkChan, errChan := comm.Stream(ctx)
	outputChan := make(chan []byte, 100)
	pipeReader, pipeWriter := io.Pipe()

	go func() {
		defer func() {
			pipeWriter.Close()
			log.Debugf("edge tts stream finished, cost: %d ms", time.Now().UnixMilli()-startTs)
			if err := <-errChan; err != nil {
				log.Errorf("edge tts stream error: %v", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				log.Debugf("edge tts stream context done, exit")
				return
			case chunk, ok := <-chunkChan:
				if !ok {
					log.Debugf("edge tts stream channel closed, exit")
					return
				}
				if chunk.Type == "audio" {
					_, _ = pipeWriter.Write(chunk.Data)
				}
			}
		}
	}()

	go func() {
		decoder := common.NewAudioDecoder(ctx, pipeReader, outputChan, sampleRate, frameDuration, p.OutputFormat)
		if err := decoder.Run(startTs); err != nil {
			log.Errorf("edge tts mp3 decode failed: %v", err)
		}
	}()

	return outputChan, nil
}
