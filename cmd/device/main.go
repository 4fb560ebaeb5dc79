package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"speaking-stone-golang/internal/device/netlink"
	"speaking-stone-golang/internal/device/stream"
	"speaking-stone-golang/internal/device/telemetry"
	log "speaking-stone-golang/logger"
)

func main() {
	configFile := flag.String("c", "config/device.yaml", "config file path")
	flag.Parse()

	if *configFile == "" {
		fmt.Println("config file path must not be empty")
		return
	}

	if err := Init(*configFile); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := newPublisher()

	log.Info("initializing edge link...")
	supervisor, err := newSupervisor(publisher)
	if err != nil {
		log.Fatalf("create supervisor failed: %v", err)
	}
	if err := supervisor.Start(ctx); err != nil {
		log.Fatalf("link bring-up failed: %v", err)
	}

	log.Info("starting audio streamer...")
	streamer, err := newStreamer()
	if err != nil {
		log.Fatalf("create streamer failed: %v", err)
	}
	go func() {
		if err := streamer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("streamer stopped: %v", err)
		}
		sent, received := streamer.Stats()
		log.Infof("streamer finished, frames sent: %d, frames received: %d", sent, received)
		if publisher != nil {
			publisher.PublishState("stream_finished", map[string]interface{}{
				"frames_sent":     sent,
				"frames_received": received,
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	cancel()
	supervisor.Stop()
	if publisher != nil {
		publisher.Close()
	}
}

func newSupervisor(publisher *telemetry.Publisher) (*netlink.Supervisor, error) {
	var config netlink.Config
	if err := viper.UnmarshalKey("netlink", &config); err != nil {
		return nil, err
	}

	opts := []netlink.SupervisorOption{}
	if publisher != nil {
		opts = append(opts, netlink.WithOnStateChange(func(old, next netlink.State) {
			publisher.PublishState(next.String(), map[string]interface{}{
				"previous": old.String(),
			})
		}))
	}
	return netlink.NewSupervisor(config, opts...), nil
}

func newStreamer() (*stream.Streamer, error) {
	var config stream.Config
	if err := viper.UnmarshalKey("stream", &config); err != nil {
		return nil, err
	}

	var source stream.Source
	if wavPath := viper.GetString("stream.wav_path"); wavPath != "" {
		source = stream.NewWAVSource(wavPath)
	} else {
		source = stream.NewToneSource(440, 1000)
	}

	var sink stream.Sink
	if sinkPath := viper.GetString("stream.sink_path"); sinkPath != "" {
		wavSink, err := stream.NewWAVSink(sinkPath)
		if err != nil {
			return nil, err
		}
		sink = wavSink
	} else {
		sink = &stream.DiscardSink{}
	}

	return stream.NewStreamer(config, source, sink), nil
}

func newPublisher() *telemetry.Publisher {
	if !viper.GetBool("telemetry.enable") {
		return nil
	}

	var config telemetry.Config
	if err := viper.UnmarshalKey("telemetry", &config); err != nil {
		log.Warnf("telemetry config invalid, disabled: %v", err)
		return nil
	}

	publisher := telemetry.NewPublisher(config)
	if err := publisher.Connect(); err != nil {
		log.Warnf("telemetry unavailable: %v", err)
		return nil
	}
	return publisher
}
