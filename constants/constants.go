package constants

const (
	VadTypeWebRTCVad = "webrtc_vad"
)

const (
	SttTypeWhisper = "whisper"
)

const (
	LlmTypeOpenai = "openai"
	LlmTypeOllama = "ollama"
)

const (
	TtsTypeEdge = "edge"
)
