package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"speaking-stone-golang/internal/data/msg"
	"speaking-stone-golang/internal/device/stream"
)

// Manual smoke client: streams one utterance at a running edge and
// prints every control message that comes back. Handy for poking at an
// edge without wiring up a full device config.
func main() {
	url := flag.String("url", "ws://127.0.0.1:8989/ws/audio", "edge websocket url")
	deviceID := flag.String("device", "smoke-client", "device id header")
	token := flag.String("token", "", "bearer token, empty to skip auth")
	wavPath := flag.String("wav", "", "wav file to stream, tone when empty")
	timeout := flag.Duration("timeout", 30*time.Second, "overall run timeout")
	flag.Parse()

	var source stream.Source
	if *wavPath != "" {
		source = stream.NewWAVSource(*wavPath)
	} else {
		source = stream.NewToneSource(440, 1000)
	}

	streamer := stream.NewStreamer(
		stream.Config{URL: *url, DeviceID: *deviceID, Token: *token},
		source,
		&stream.DiscardSink{},
		stream.WithOnControl(func(control *msg.ControlMessage) {
			fmt.Printf("<- %s %v\n", control.Event, control.Payload)
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := streamer.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Printf("run failed: %v\n", err)
		os.Exit(1)
	}

	sent, received := streamer.Stats()
	fmt.Printf("done, frames sent: %d, frames received: %d\n", sent, received)
}
