package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speaking-stone-golang/internal/data/audio"
	"speaking-stone-golang/internal/data/msg"
	"speaking-stone-golang/internal/device/netlink"
)

type recordedFrame struct {
	header  *msg.AudioFrameHeader
	payload []byte
}

// echoEdge is a minimal edge stand-in: it records uplink frames and,
// on speech_end, answers with transcription_ready plus one speech frame.
type echoEdge struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	frames   []recordedFrame
	deviceID string
	gotEnd   bool
}

func (e *echoEdge) handler(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	e.deviceID = r.Header.Get("Device-Id")
	e.mu.Unlock()

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	greeting, _ := msg.EncodeControlMessage(msg.ControlEventConnected, nil)
	conn.WriteMessage(websocket.TextMessage, greeting)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			header, err := msg.DecodeAudioFrameHeader(data)
			if err != nil {
				continue
			}
			e.mu.Lock()
			e.frames = append(e.frames, recordedFrame{header: header, payload: data[msg.HeaderSize:]})
			e.mu.Unlock()
		case websocket.TextMessage:
			control, err := msg.DecodeControlMessage(data)
			if err != nil || control.Event != msg.ControlEventSpeechEnd {
				continue
			}
			e.mu.Lock()
			e.gotEnd = true
			e.mu.Unlock()

			ready, _ := msg.EncodeControlMessage(msg.ControlEventTranscriptionReady, map[string]interface{}{
				"transcript": "hello",
				"reply":      "hi there",
			})
			conn.WriteMessage(websocket.TextMessage, ready)

			speech, _ := msg.PackAudioFrame(&msg.AudioFrameHeader{
				SampleRate:    16000,
				Channels:      1,
				BitsPerSample: 16,
			}, make([]byte, 640))
			conn.WriteMessage(websocket.BinaryMessage, speech)
		}
	}
}

func (e *echoEdge) recorded() ([]recordedFrame, string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	frames := make([]recordedFrame, len(e.frames))
	copy(frames, e.frames)
	return frames, e.deviceID, e.gotEnd
}

func TestStreamerSendsFramedUtterance(t *testing.T) {
	edge := &echoEdge{}
	server := httptest.NewServer(http.HandlerFunc(edge.handler))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/audio"

	source := NewToneSource(440, 100)
	sink := &DiscardSink{}
	streamer := NewStreamer(Config{
		URL:       url,
		DeviceID:  "stone-01",
		ChunkMs:   20,
		PostDelay: 200 * time.Millisecond,
	}, source, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, streamer.Run(ctx))

	frames, deviceID, gotEnd := edge.recorded()
	assert.Equal(t, "stone-01", deviceID)
	assert.True(t, gotEnd, "speech_end must follow the last frame")

	// 100 ms of tone in 20 ms chunks.
	require.Len(t, frames, 5)
	chunkBytes := audio.BytesPerFrame(16000, 1, 16, 20)
	for i, frame := range frames {
		assert.Equal(t, uint16(i), frame.header.Sequence)
		assert.Equal(t, uint16(16000), frame.header.SampleRate)
		assert.Equal(t, uint8(1), frame.header.Channels)
		assert.Equal(t, uint8(16), frame.header.BitsPerSample)
		assert.Equal(t, int(frame.header.PayloadLen), len(frame.payload))
		assert.Equal(t, chunkBytes, len(frame.payload))
	}

	sent, received := streamer.Stats()
	assert.Equal(t, 5, sent)
	assert.Equal(t, 1, received)

	sinkFrames, sinkBytes := sink.Stats()
	assert.Equal(t, 1, sinkFrames)
	assert.Equal(t, 640, sinkBytes)
}

func TestStreamerLoopModeRunsUntilCancelled(t *testing.T) {
	edge := &echoEdge{}
	server := httptest.NewServer(http.HandlerFunc(edge.handler))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/audio"

	streamer := NewStreamer(Config{
		URL:          url,
		DeviceID:     "stone-01",
		ChunkMs:      20,
		PostDelay:    10 * time.Millisecond,
		Loop:         true,
		LoopInterval: 10 * time.Millisecond,
	}, NewToneSource(440, 20), &DiscardSink{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- streamer.Run(ctx) }()

	// The single-chunk source must be replayed across several passes.
	require.Eventually(t, func() bool {
		sent, _ := streamer.Stats()
		return sent >= 3
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("loop mode terminated on its own: %v", err)
	default:
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("streamer did not stop after cancel")
	}
}

func TestStreamerDialRetriesAreBounded(t *testing.T) {
	streamer := NewStreamer(Config{
		URL:      "ws://127.0.0.1:1/ws/audio", // nothing listens here
		DeviceID: "stone-01",
		Backoff: netlink.BackoffPolicy{
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
			JitterFraction:  0,
			MaxAttempts:     2,
		},
	}, NewToneSource(440, 20), &DiscardSink{})

	err := streamer.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestToneSourceFormat(t *testing.T) {
	pcm, format, err := NewToneSource(440, 80).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, 16000, format.SampleRate)
	assert.Equal(t, 1, format.Channels)
	assert.Equal(t, 16, format.BitsPerSample)
	// 80 ms at 16 kHz, 2 bytes per sample.
	assert.Equal(t, 2560, len(pcm))
}

func TestWAVSinkRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	sink, err := NewWAVSink(path)
	require.NoError(t, err)

	header := &msg.AudioFrameHeader{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
	require.NoError(t, sink.WriteFrame(header, make([]byte, 640)))
	require.NoError(t, sink.WriteFrame(header, make([]byte, 640)))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, uint32(16000), decoder.SampleRate)
	assert.Equal(t, uint16(1), decoder.NumChans)
	assert.Len(t, buf.Data, 640)
}

func TestWAVSourceRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.wav")
	sink, err := NewWAVSink(path)
	require.NoError(t, err)
	header := &msg.AudioFrameHeader{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
	require.NoError(t, sink.WriteFrame(header, make([]byte, 3200)))
	require.NoError(t, sink.Close())

	pcm, format, err := NewWAVSource(path).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, 16000, format.SampleRate)
	assert.Equal(t, 1, format.Channels)
	assert.Equal(t, 3200, len(pcm))
}
