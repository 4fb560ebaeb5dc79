package session

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	types_conn "speaking-stone-golang/internal/app/server/types"
	"speaking-stone-golang/internal/data/audio"
	. "speaking-stone-golang/internal/data/msg"
	"speaking-stone-golang/internal/domain/llm"
	llm_memory "speaking-stone-golang/internal/domain/llm/memory"
	"speaking-stone-golang/internal/domain/stt"
	"speaking-stone-golang/internal/domain/tts"
	"speaking-stone-golang/internal/domain/tts/common"
	"speaking-stone-golang/internal/domain/vad"
	"speaking-stone-golang/internal/util"
	log "speaking-stone-golang/logger"
)

// Session drives one device connection through the buffered-audio,
// STT, LLM and TTS pipeline.
type Session struct {
	conn     types_conn.IConn
	deviceID string

	sttProvider stt.SttProvider
	llmProvider llm.LLMProvider
	ttsProvider tts.TTSProvider
	memory      *llm_memory.Memory
	endpointer  *vad.Endpointer

	audioBuffer  *AudioStreamBuffer
	outputFormat audio.AudioFormat
	systemPrompt string

	ttsSequence uint16

	ctx    context.Context
	cancel context.CancelFunc
}

type SessionOption func(*Session)

func WithSttProvider(provider stt.SttProvider) SessionOption {
	return func(s *Session) {
		s.sttProvider = provider
	}
}

func WithLLMProvider(provider llm.LLMProvider) SessionOption {
	return func(s *Session) {
		s.llmProvider = provider
	}
}

func WithTTSProvider(provider tts.TTSProvider) SessionOption {
	return func(s *Session) {
		s.ttsProvider = provider
	}
}

func WithMemory(memory *llm_memory.Memory) SessionOption {
	return func(s *Session) {
		s.memory = memory
	}
}

// WithEndpointer enables server-side end-of-speech detection. When the
// detector reports trailing silence the session flushes without waiting
// for an explicit speech_end event.
func WithEndpointer(endpointer *vad.Endpointer) SessionOption {
	return func(s *Session) {
		s.endpointer = endpointer
	}
}

func WithSystemPrompt(prompt string) SessionOption {
	return func(s *Session) {
		s.systemPrompt = prompt
	}
}

func WithOutputFormat(format audio.AudioFormat) SessionOption {
	return func(s *Session) {
		s.outputFormat = format
	}
}

func NewSession(pctx context.Context, conn types_conn.IConn, opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(pctx)
	s := &Session{
		conn:         conn,
		deviceID:     conn.GetDeviceID(),
		audioBuffer:  NewAudioStreamBuffer(),
		outputFormat: audio.DefaultFormat(),
		systemPrompt: llm.DefaultSystemPrompt,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.memory == nil {
		s.memory = llm_memory.NewMemory(nil)
	}
	return s
}

// Start greets the device and spawns the control and audio loops.
func (s *Session) Start() error {
	if err := s.sendControl(ControlEventConnected, map[string]interface{}{
		"device_id": s.deviceID,
	}); err != nil {
		return err
	}
	log.Infof("session started, device: %s, remote: %s", s.deviceID, s.conn.GetRemoteAddr())

	go s.controlMessageLoop()
	go s.audioMessageLoop()
	return nil
}

func (s *Session) Close() error {
	s.cancel()
	return s.conn.Close()
}

func (s *Session) DeviceID() string {
	return s.deviceID
}

func (s *Session) controlMessageLoop() {
	for {
		select {
		case <-s.ctx.Done():
			log.Infof("device %s control loop context cancel", s.deviceID)
			return
		default:
			message, err := s.conn.RecvControl(120)
			if err != nil {
				log.Errorf("recv control error: %v", err)
				s.cancel()
				return
			}
			if err := s.handleControlMessage(message); err != nil {
				log.Errorf("handle control message failed: %v", err)
				continue
			}
		}
	}
}

func (s *Session) audioMessageLoop() {
	for {
		select {
		case <-s.ctx.Done():
			log.Debugf("device %s audio loop context cancel", s.deviceID)
			return
		default:
			message, err := s.conn.RecvAudio(300)
			if err != nil {
				log.Errorf("recv audio error: %v", err)
				s.cancel()
				return
			}
			s.handleAudioFrame(message)
		}
	}
}

// handleControlMessage dispatches one text frame. Non-JSON or unlabeled
// input is echoed back as an ack rather than treated as an error.
func (s *Session) handleControlMessage(raw []byte) error {
	control, err := DecodeControlMessage(raw)
	if err != nil || !control.IsControl() {
		return s.sendControl(ControlEventAck, map[string]interface{}{"echo": string(raw)})
	}

	switch control.Event {
	case ControlEventSpeechEnd:
		log.Infof("control event, device: %s, event: speech_end", s.deviceID)
		return s.flushTranscription()
	case ControlEventResetBuffer:
		s.audioBuffer.Clear()
		log.Infof("control event, device: %s, event: reset_buffer", s.deviceID)
		return s.sendControl(ControlEventAck, map[string]interface{}{"event": ControlEventResetBuffer})
	case ControlEventTextInput:
		if err := s.processTextInput(control.Payload); err != nil {
			log.Errorf("text input failed, device: %s, err: %v", s.deviceID, err)
			return s.sendControl(ControlEventError, map[string]interface{}{
				"detail": "text_input_failed",
				"error":  err.Error(),
			})
		}
		return nil
	default:
		log.Debugf("control event, device: %s, event: %s", s.deviceID, control.Event)
		return s.sendControl(ControlEventAck, map[string]interface{}{"event": control.Event})
	}
}

func (s *Session) handleAudioFrame(data []byte) {
	header, err := DecodeAudioFrameHeader(data)
	if err != nil {
		log.Warnf("invalid audio header, device: %s, err: %v", s.deviceID, err)
		s.sendControl(ControlEventError, map[string]interface{}{
			"detail":         err.Error(),
			"received_bytes": len(data),
		})
		return
	}

	payload := data[HeaderSize:]
	if len(payload) != int(header.PayloadLen) {
		log.Warnf("payload length mismatch, device: %s, header: %d, actual: %d", s.deviceID, header.PayloadLen, len(payload))
		s.sendControl(ControlEventError, map[string]interface{}{
			"detail":             "audio payload length mismatch",
			"header_payload_len": header.PayloadLen,
			"actual_payload_len": len(payload),
		})
		return
	}

	if err := s.audioBuffer.AppendFrame(header, payload); err != nil {
		s.audioBuffer.Clear()
		log.Warnf("frame rejected, device: %s, sequence: %d, err: %v", s.deviceID, header.Sequence, err)
		s.sendControl(ControlEventError, map[string]interface{}{
			"detail":          err.Error(),
			"sequence":        header.Sequence,
			"sample_rate":     header.SampleRate,
			"channels":        header.Channels,
			"bits_per_sample": header.BitsPerSample,
		})
		return
	}
	log.Debugf("frame buffered, device: %s, sequence: %d, total bytes: %d", s.deviceID, header.Sequence, s.audioBuffer.ByteCount())

	if s.endpointer != nil && header.Flags&FlagOpus == 0 {
		ended, err := s.endpointer.Feed(common.BytesToInt16(payload))
		if err != nil {
			log.Warnf("endpoint detection failed, device: %s, err: %v", s.deviceID, err)
			return
		}
		if ended {
			log.Infof("trailing silence detected, device: %s, flushing", s.deviceID)
			s.endpointer.Reset()
			if err := s.flushTranscription(); err != nil {
				log.Errorf("auto flush failed, device: %s, err: %v", s.deviceID, err)
			}
		}
	}
}

// flushTranscription runs the full pipeline for the buffered audio and
// resets the buffer.
func (s *Session) flushTranscription() error {
	if s.audioBuffer.IsEmpty() {
		log.Infof("flush skipped, device: %s, reason: no audio", s.deviceID)
		return s.sendControl(ControlEventNoop, map[string]interface{}{"detail": "no audio buffered"})
	}

	timer := util.NewStageTimer()
	pcmBytes, header, err := s.audioBuffer.Snapshot()
	if err != nil {
		return s.sendControl(ControlEventError, map[string]interface{}{"detail": err.Error()})
	}

	durationMs := audio.EstimateDurationMs(len(pcmBytes), int(header.SampleRate), int(header.Channels), int(header.BitsPerSample))
	log.Infof("flush begin, device: %s, buffered bytes: %d, est duration ms: %.2f", s.deviceID, len(pcmBytes), durationMs)

	format := audio.AudioFormat{
		Format:        audio.Format,
		SampleRate:    int(header.SampleRate),
		Channels:      int(header.Channels),
		BitsPerSample: int(header.BitsPerSample),
	}
	transcript, err := s.sttProvider.Transcribe(s.ctx, pcmBytes, format)
	if err != nil {
		log.Errorf("flush failed, device: %s, err: %v", s.deviceID, err)
		s.audioBuffer.Clear()
		return s.sendControl(ControlEventError, map[string]interface{}{"detail": err.Error()})
	}
	timer.Mark("stt")

	reply := s.generateReply(transcript)
	timer.Mark("llm")

	ttsFrames := s.synthesize(reply)
	timer.Mark("tts")

	s.appendHistory(transcript, reply)

	timings := timer.Metrics()
	log.Infof("flush done, device: %s, timings: %v, transcript len: %d, reply len: %d", s.deviceID, timings, len(transcript), len(reply))

	if err := s.sendControl(ControlEventTranscriptionReady, map[string]interface{}{
		"header": map[string]interface{}{
			"sample_rate":     header.SampleRate,
			"channels":        header.Channels,
			"bits_per_sample": header.BitsPerSample,
			"flags":           header.Flags,
		},
		"payload_bytes": len(pcmBytes),
		"transcript":    transcript,
		"reply":         reply,
		"timings":       timings,
	}); err != nil {
		return err
	}

	s.sendTtsFrames(ttsFrames)
	s.audioBuffer.Clear()
	return nil
}

// processTextInput handles a text-only turn: skip STT, run LLM with
// optional TTS.
func (s *Session) processTextInput(payload map[string]interface{}) error {
	text, _ := payload["text"].(string)
	text = strings.TrimSpace(text)
	skipTts, _ := payload["skip_tts"].(bool)
	if text == "" {
		return s.sendControl(ControlEventError, map[string]interface{}{"detail": "empty text input"})
	}

	timer := util.NewStageTimer()
	reply := s.generateReply(text)
	timer.Mark("llm")

	var ttsFrames [][]byte
	if !skipTts {
		ttsFrames = s.synthesize(reply)
		timer.Mark("tts")
	}

	s.appendHistory(text, reply)

	timings := timer.Metrics()
	log.Infof("text input processed, device: %s, timings: %v, transcript len: %d, reply len: %d, skip tts: %v", s.deviceID, timings, len(text), len(reply), skipTts)

	if err := s.sendControl(ControlEventTranscriptionReady, map[string]interface{}{
		"header":        nil,
		"payload_bytes": 0,
		"transcript":    text,
		"reply":         reply,
		"timings":       timings,
		"tts_skipped":   skipTts,
	}); err != nil {
		return err
	}

	if !skipTts {
		s.sendTtsFrames(ttsFrames)
	}
	return nil
}

// generateReply asks the chat model for a response. Any provider failure
// degrades to the echo fallback so the device always hears something.
func (s *Session) generateReply(text string) string {
	if s.llmProvider == nil || text == "" {
		return llm.FallbackReply(text)
	}

	dialogue := []*schema.Message{schema.SystemMessage(s.systemPrompt)}
	history, err := s.memory.GetMessages(s.ctx, s.deviceID)
	if err != nil {
		log.Warnf("get chat history failed, device: %s, err: %v", s.deviceID, err)
	} else {
		dialogue = append(dialogue, history...)
	}
	dialogue = append(dialogue, schema.UserMessage(text))

	var sb strings.Builder
	for message := range s.llmProvider.ResponseWithContext(s.ctx, s.deviceID, dialogue) {
		sb.WriteString(message.Content)
	}

	reply := llm.SanitizeReply(sb.String())
	if reply == "" {
		return llm.FallbackReply(text)
	}
	return reply
}

func (s *Session) appendHistory(userText, reply string) {
	if err := s.memory.AddMessage(s.ctx, s.deviceID, schema.User, userText); err != nil {
		log.Warnf("append user history failed, device: %s, err: %v", s.deviceID, err)
	}
	if err := s.memory.AddMessage(s.ctx, s.deviceID, schema.Assistant, reply); err != nil {
		log.Warnf("append assistant history failed, device: %s, err: %v", s.deviceID, err)
	}
}

func (s *Session) synthesize(text string) [][]byte {
	if s.ttsProvider == nil || text == "" {
		return nil
	}
	frames, err := s.ttsProvider.TextToSpeech(s.ctx, text, s.outputFormat.SampleRate, s.outputFormat.Channels, s.outputFormat.FrameDuration)
	if err != nil {
		log.Errorf("tts failed, device: %s, err: %v", s.deviceID, err)
		return nil
	}
	return frames
}

// sendTtsFrames streams synthesized audio back as framed binary messages.
func (s *Session) sendTtsFrames(frames [][]byte) {
	var flags uint16
	if s.outputFormat.Format == common.OutputFormatOpus {
		flags |= FlagOpus
	}
	for _, frame := range frames {
		header := &AudioFrameHeader{
			Sequence:      s.ttsSequence,
			SampleRate:    uint16(s.outputFormat.SampleRate),
			Channels:      uint8(s.outputFormat.Channels),
			BitsPerSample: uint8(s.outputFormat.BitsPerSample),
			Flags:         flags,
		}
		s.ttsSequence++
		packed, err := PackAudioFrame(header, frame)
		if err != nil {
			log.Errorf("pack tts frame failed, device: %s, err: %v", s.deviceID, err)
			return
		}
		if err := s.conn.SendAudio(packed); err != nil {
			log.Errorf("send tts frame failed, device: %s, err: %v", s.deviceID, err)
			return
		}
	}
}

func (s *Session) sendControl(event string, payload map[string]interface{}) error {
	data, err := EncodeControlMessage(event, payload)
	if err != nil {
		return err
	}
	return s.conn.SendControl(data)
}
