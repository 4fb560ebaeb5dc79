package main

import (
	"fmt"
	"os"

	"speaking-stone-golang/internal/data/audio"
	"speaking-stone-golang/internal/device/stream"
	domain_audio "speaking-stone-golang/internal/domain/audio"
	"speaking-stone-golang/internal/domain/tts/common"
)

// Round-trips a generated tone through the Opus codec and prints the
// compression ratio, to sanity check the libopus build on a new host.
func main() {
	source := stream.NewToneSource(440, 200)
	pcmBytes, format, err := source.ReadAll()
	if err != nil {
		fmt.Printf("generate tone failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("tone: %d bytes, %d Hz, %d channel(s)\n", len(pcmBytes), format.SampleRate, format.Channels)

	codec, err := domain_audio.NewOpusCodec(format.SampleRate, format.Channels)
	if err != nil {
		fmt.Printf("create codec failed: %v\n", err)
		os.Exit(1)
	}

	frameBytes := audio.BytesPerFrame(format.SampleRate, format.Channels, format.BitsPerSample, 20)
	var rawTotal, encodedTotal, decodedSamples int
	for offset := 0; offset+frameBytes <= len(pcmBytes); offset += frameBytes {
		frame := common.BytesToInt16(pcmBytes[offset : offset+frameBytes])

		packet, err := codec.Encode(frame)
		if err != nil {
			fmt.Printf("encode failed at offset %d: %v\n", offset, err)
			os.Exit(1)
		}
		decoded, err := codec.Decode(packet)
		if err != nil {
			fmt.Printf("decode failed at offset %d: %v\n", offset, err)
			os.Exit(1)
		}

		rawTotal += frameBytes
		encodedTotal += len(packet)
		decodedSamples += len(decoded)
	}

	fmt.Printf("encoded %d raw bytes into %d opus bytes (%.2f%%), decoded %d samples\n",
		rawTotal, encodedTotal, float64(encodedTotal)/float64(rawTotal)*100, decodedSamples)
}
