package types

// IConn is the transport-agnostic connection interface implemented by
// protocol adapters (websocket today; anything frame-oriented later).

const (
	TransportTypeWebsocket = "websocket"
)

type IConn interface {
	// Control channel (JSON text frames).
	SendControl(msg []byte) error
	RecvControl(timeout int) ([]byte, error)
	// Audio channel (binary frames).
	SendAudio(audio []byte) error
	RecvAudio(timeout int) ([]byte, error)

	GetDeviceID() string
	GetRemoteAddr() string

	Close() error
	OnClose(func(deviceId string))

	GetTransportType() string
}

type OnNewConnection func(conn IConn)
