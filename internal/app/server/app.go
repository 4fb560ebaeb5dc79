package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"speaking-stone-golang/constants"
	"speaking-stone-golang/internal/app/mqtt_server"
	"speaking-stone-golang/internal/app/server/auth"
	"speaking-stone-golang/internal/app/server/session"
	"speaking-stone-golang/internal/app/server/types"
	"speaking-stone-golang/internal/app/server/websocket"
	"speaking-stone-golang/internal/data/audio"
	"speaking-stone-golang/internal/domain/llm"
	llm_memory "speaking-stone-golang/internal/domain/llm/memory"
	"speaking-stone-golang/internal/domain/stt"
	"speaking-stone-golang/internal/domain/tts"
	"speaking-stone-golang/internal/domain/vad"
	"speaking-stone-golang/internal/domain/vad/inter"
	"speaking-stone-golang/internal/domain/vad/webrtc_vad"
	log "speaking-stone-golang/logger"
)

// App wires the websocket server, the pipeline providers and the
// optional telemetry broker together.
type App struct {
	wsServer *websocket.WebSocketServer

	sttProvider stt.SttProvider
	llmProvider llm.LLMProvider
	ttsProvider tts.TTSProvider

	systemPrompt string
}

func NewApp() *App {
	app := &App{}

	if err := app.initProviders(); err != nil {
		log.Errorf("init providers err: %+v", err)
		return nil
	}

	app.wsServer = app.newWebSocketServer()
	return app
}

// Run blocks until SIGINT or SIGTERM, then closes all live sessions.
func (a *App) Run() {
	go func() {
		if err := a.wsServer.Start(); err != nil {
			log.Fatalf("websocket server err: %+v", err)
		}
	}()
	if viper.GetBool("mqtt_server.enable") {
		go func() {
			if err := mqtt_server.StartMqttServer(); err != nil {
				log.Errorf("startMqttServer err: %+v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down, closing live sessions")
	session.GetRegistry().CloseAll()
}

func (a *App) initProviders() error {
	var err error

	a.sttProvider, err = stt.NewSttProvider(viper.GetString("stt.provider"), viper.GetStringMap("stt.config"))
	if err != nil {
		return err
	}

	// A missing LLM or TTS provider degrades gracefully inside the
	// session (echo fallback, no synthesized audio), so configuration
	// errors here are logged but not fatal.
	llmConfig := viper.GetStringMap("llm.config")
	if llmConfig == nil {
		llmConfig = map[string]interface{}{}
	}
	if _, ok := llmConfig["type"]; !ok {
		llmConfig["type"] = viper.GetString("llm.provider")
	}
	a.llmProvider, err = llm.GetLLMProvider(llmConfig)
	if err != nil {
		log.Warnf("llm provider unavailable, falling back to echo replies: %v", err)
		a.llmProvider = nil
	}

	a.ttsProvider, err = tts.GetTTSProvider(viper.GetString("tts.provider"), viper.GetStringMap("tts.config"))
	if err != nil {
		log.Warnf("tts provider unavailable, replies will be text only: %v", err)
		a.ttsProvider = nil
	}

	a.systemPrompt = llm.LoadSystemPrompt(viper.GetString("llm.system_prompt_file"))
	return nil
}

func (a *App) newWebSocketServer() *websocket.WebSocketServer {
	port := viper.GetInt("websocket.port")
	return websocket.NewWebSocketServer(port,
		websocket.WithAuthManager(auth.A()),
		websocket.WithOnNewConnection(a.OnNewConnection),
	)
}

// OnNewConnection builds a session for every accepted device connection.
func (a *App) OnNewConnection(conn types.IConn) {
	deviceID := conn.GetDeviceID()

	opts := []session.SessionOption{
		session.WithSttProvider(a.sttProvider),
		session.WithLLMProvider(a.llmProvider),
		session.WithTTSProvider(a.ttsProvider),
		session.WithMemory(llm_memory.Get()),
		session.WithSystemPrompt(a.systemPrompt),
		session.WithOutputFormat(a.outputFormat()),
	}

	var vadInstance = a.acquireEndpointerVAD()
	if vadInstance != nil {
		sampleRate := viper.GetInt("vad.config.sample_rate")
		if sampleRate == 0 {
			sampleRate = webrtc_vad.DefaultSampleRate
		}
		endpointer := vad.NewEndpointer(vadInstance, sampleRate, viper.GetInt("vad.silence_frames"))
		opts = append(opts, session.WithEndpointer(endpointer))
	}

	sess := session.NewSession(context.Background(), conn, opts...)

	registry := session.GetRegistry()
	registry.Register(deviceID, sess)

	conn.OnClose(func(deviceId string) {
		registry.Unregister(deviceId, sess)
		if vadInstance != nil {
			if err := webrtc_vad.ReleaseVAD(vadInstance); err != nil {
				log.Warnf("release vad failed: %v", err)
			}
		}
	})

	if err := sess.Start(); err != nil {
		log.Errorf("start session failed, device: %s, err: %v", deviceID, err)
		sess.Close()
	}
}

func (a *App) outputFormat() audio.AudioFormat {
	format := audio.DefaultFormat()
	if v := viper.GetString("tts.output_format"); v != "" {
		format.Format = v
	}
	if v := viper.GetInt("tts.frame_duration"); v > 0 {
		format.FrameDuration = v
	}
	return format
}

func (a *App) acquireEndpointerVAD() inter.VAD {
	if !viper.GetBool("vad.enable") {
		return nil
	}
	if provider := viper.GetString("vad.provider"); provider != "" && provider != constants.VadTypeWebRTCVad {
		log.Warnf("unsupported vad provider %s, end-of-speech detection disabled", provider)
		return nil
	}
	vadInstance, err := webrtc_vad.AcquireVAD(viper.GetStringMap("vad.config"))
	if err != nil {
		log.Warnf("acquire vad failed, end-of-speech detection disabled: %v", err)
		return nil
	}
	return vadInstance
}
