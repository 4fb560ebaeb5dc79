package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"speaking-stone-golang/internal/data/audio"
	"speaking-stone-golang/internal/data/msg"
	"speaking-stone-golang/internal/device/netlink"
	log "speaking-stone-golang/logger"
)

// Config drives one streaming client.
type Config struct {
	// URL is the edge audio endpoint, e.g. ws://host:port/ws/audio.
	URL      string `mapstructure:"url"`
	DeviceID string `mapstructure:"device_id"`
	// Token is sent as a bearer credential when set.
	Token string `mapstructure:"token"`

	// ChunkMs is the duration of each uplink frame.
	ChunkMs int `mapstructure:"chunk_ms"`
	// PostDelay is how long to keep listening after speech_end before
	// finishing the turn.
	PostDelay time.Duration `mapstructure:"post_delay"`

	// Loop repeats the source indefinitely at LoopInterval cadence.
	Loop         bool          `mapstructure:"loop"`
	LoopInterval time.Duration `mapstructure:"loop_interval"`

	Backoff netlink.BackoffPolicy `mapstructure:"backoff"`
}

func (c Config) withDefaults() Config {
	out := c
	if out.ChunkMs <= 0 {
		out.ChunkMs = audio.FrameDuration
	}
	if out.PostDelay <= 0 {
		out.PostDelay = 2 * time.Second
	}
	if out.LoopInterval <= 0 {
		out.LoopInterval = time.Second
	}
	return out
}

// Streamer sends source audio uplink as framed chunks and concurrently
// collects control messages and synthesized speech downlink.
type Streamer struct {
	config Config
	source Source
	sink   Sink

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu         sync.Mutex
	framesSent int
	framesRecv int

	onControl func(*msg.ControlMessage)
}

type StreamerOption func(*Streamer)

// WithOnControl registers a callback for every inbound control message.
func WithOnControl(fn func(*msg.ControlMessage)) StreamerOption {
	return func(s *Streamer) {
		s.onControl = fn
	}
}

func NewStreamer(config Config, source Source, sink Sink, opts ...StreamerOption) *Streamer {
	s := &Streamer{
		config: config.withDefaults(),
		source: source,
		sink:   sink,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run dials the edge and streams until the source is exhausted or the
// context is cancelled. In loop mode it repeats indefinitely.
func (s *Streamer) Run(ctx context.Context) error {
	if err := s.dial(ctx); err != nil {
		return err
	}
	defer s.conn.Close()
	defer s.sink.Close()

	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		s.receiveLoop(ctx)
	}()

	for {
		if err := s.streamUtterance(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-recvDone:
			return fmt.Errorf("connection closed by edge")
		case <-time.After(s.config.PostDelay):
		}

		if !s.config.Loop {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-recvDone:
			return fmt.Errorf("connection closed by edge")
		case <-time.After(s.config.LoopInterval):
		}
	}
}

// dial connects with the supervisor's backoff policy: one delayed
// attempt per failure until the budget runs out.
func (s *Streamer) dial(ctx context.Context) error {
	header := http.Header{}
	header.Set("Device-Id", s.config.DeviceID)
	if s.config.Token != "" {
		header.Set("Authorization", "Bearer "+s.config.Token)
	}

	policy := s.config.Backoff
	attempt := 0
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.config.URL, header)
		if err == nil {
			s.conn = conn
			log.Infof("connected to edge, url: %s, device: %s", s.config.URL, s.config.DeviceID)
			return nil
		}

		attempt++
		if policy.Exhausted(attempt) {
			return fmt.Errorf("dial %s failed after %d attempts: %v", s.config.URL, attempt-1, err)
		}
		delay := policy.Delay(attempt)
		log.Warnf("dial failed (%v), retrying in %s (attempt %d)", err, delay, attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// streamUtterance sends the whole source once, paced at the chunk
// interval, then signals speech_end.
func (s *Streamer) streamUtterance(ctx context.Context) error {
	pcm, format, err := s.source.ReadAll()
	if err != nil {
		return fmt.Errorf("read source failed: %v", err)
	}

	chunkSize := audio.BytesPerFrame(format.SampleRate, format.Channels, format.BitsPerSample, s.config.ChunkMs)
	if chunkSize <= 0 {
		return fmt.Errorf("degenerate audio format: %+v", format)
	}

	pace := time.NewTicker(time.Duration(s.config.ChunkMs) * time.Millisecond)
	defer pace.Stop()

	var sequence uint16
	for offset := 0; offset < len(pcm); offset += chunkSize {
		end := offset + chunkSize
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := pcm[offset:end]

		header := &msg.AudioFrameHeader{
			Sequence:      sequence,
			SampleRate:    uint16(format.SampleRate),
			Channels:      uint8(format.Channels),
			BitsPerSample: uint8(format.BitsPerSample),
		}
		frame, err := msg.PackAudioFrame(header, chunk)
		if err != nil {
			return fmt.Errorf("pack audio chunk failed: %v", err)
		}
		if err := s.writeMessage(websocket.BinaryMessage, frame); err != nil {
			return fmt.Errorf("send audio chunk failed: %v", err)
		}
		log.Debugf("sent audio chunk, sequence: %d, bytes: %d", sequence, len(chunk))
		sequence++
		s.countSent()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pace.C:
		}
	}

	data, err := msg.EncodeControlMessage(msg.ControlEventSpeechEnd, nil)
	if err != nil {
		return err
	}
	if err := s.writeMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send speech_end failed: %v", err)
	}
	log.Infof("utterance sent, frames: %d, bytes: %d", sequence, len(pcm))
	return nil
}

// receiveLoop consumes downlink frames without ever blocking the send
// path.
func (s *Streamer) receiveLoop(ctx context.Context) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warnf("receive failed: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			s.handleControl(data)
		case websocket.BinaryMessage:
			s.handleSpeech(data)
		}
	}
}

func (s *Streamer) handleControl(data []byte) {
	control, err := msg.DecodeControlMessage(data)
	if err != nil || !control.IsControl() {
		log.Warnf("unparseable control message: %s", string(data))
		return
	}

	switch control.Event {
	case msg.ControlEventConnected:
		log.Infof("edge session established, device: %s", s.config.DeviceID)
	case msg.ControlEventTranscriptionReady:
		transcript, _ := control.Payload["transcript"].(string)
		reply, _ := control.Payload["reply"].(string)
		log.Infof("transcription ready, transcript: %q, reply: %q", transcript, reply)
	case msg.ControlEventError:
		log.Warnf("edge error: %v", control.Payload)
	default:
		log.Debugf("control event: %s, payload: %v", control.Event, control.Payload)
	}

	if s.onControl != nil {
		s.onControl(control)
	}
}

func (s *Streamer) handleSpeech(data []byte) {
	header, err := msg.DecodeAudioFrameHeader(data)
	if err != nil {
		log.Warnf("invalid speech frame: %v", err)
		return
	}
	payload := data[msg.HeaderSize:]

	if err := s.sink.WriteFrame(header, payload); err != nil {
		log.Warnf("write speech frame failed: %v", err)
		return
	}
	s.countRecv()
	log.Debugf("received speech chunk, sequence: %d, bytes: %d", header.Sequence, len(payload))
}

func (s *Streamer) writeMessage(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *Streamer) countSent() {
	s.mu.Lock()
	s.framesSent++
	s.mu.Unlock()
}

func (s *Streamer) countRecv() {
	s.mu.Lock()
	s.framesRecv++
	s.mu.Unlock()
}

// Stats returns frames sent and received so far.
func (s *Streamer) Stats() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framesSent, s.framesRecv
}
