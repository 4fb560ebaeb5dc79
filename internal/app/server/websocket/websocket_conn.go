package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"speaking-stone-golang/internal/app/server/types"
	log "speaking-stone-golang/logger"

	"github.com/gorilla/websocket"
)

// WebSocketConn implements types.IConn on top of a gorilla websocket
// connection. A reader goroutine fans incoming frames into a control
// channel (text) and an audio channel (binary).
type WebSocketConn struct {
	ctx    context.Context
	cancel context.CancelFunc

	onCloseCbList []func(deviceId string)

	conn     *websocket.Conn
	deviceID string

	recvControlChan chan []byte
	recvAudioChan   chan []byte

	isClosed bool
	sync.RWMutex
}

// NewWebSocketConn creates the adapter and starts its reader goroutine.
func NewWebSocketConn(conn *websocket.Conn, deviceID string) *WebSocketConn {
	ctx, cancel := context.WithCancel(context.Background())
	instance := &WebSocketConn{
		ctx:             ctx,
		cancel:          cancel,
		conn:            conn,
		deviceID:        deviceID,
		recvControlChan: make(chan []byte, 100),
		recvAudioChan:   make(chan []byte, 100),
	}

	go func() {
		// The reader owns the receive channels: closing them here, after
		// the last possible send, keeps Close from racing a send on a
		// closed channel.
		defer close(instance.recvControlChan)
		defer close(instance.recvAudioChan)

		for {
			select {
			case <-instance.ctx.Done():
				return
			default:
				instance.conn.SetReadDeadline(time.Now().Add(120 * time.Second))
				msgType, data, err := instance.conn.ReadMessage()
				if err != nil {
					log.Errorf("read message error: %v", err)
					for _, cb := range instance.onCloseCbList {
						cb(instance.deviceID)
					}
					return
				}

				if msgType == websocket.TextMessage {
					select {
					case instance.recvControlChan <- data:
					default:
						log.Errorf("recv control channel is full")
					}
				} else if msgType == websocket.BinaryMessage {
					select {
					case instance.recvAudioChan <- data:
					default:
						log.Errorf("recv audio channel is full")
					}
				}
			}
		}
	}()

	return instance
}

func (w *WebSocketConn) SendControl(msg []byte) error {
	w.Lock()
	defer w.Unlock()

	if w.isClosed {
		return errors.New("connection is closed")
	}

	err := w.conn.WriteMessage(websocket.TextMessage, msg)
	if err != nil {
		log.Errorf("send control error: %v", err)
		return err
	}
	return nil
}

func (w *WebSocketConn) SendAudio(audio []byte) error {
	w.Lock()
	defer w.Unlock()

	if w.isClosed {
		return errors.New("connection is closed")
	}

	err := w.conn.WriteMessage(websocket.BinaryMessage, audio)
	if err != nil {
		log.Errorf("send audio error: %v", err)
		return err
	}
	return nil
}

func (w *WebSocketConn) RecvControl(timeout int) ([]byte, error) {
	select {
	case msg, ok := <-w.recvControlChan:
		if !ok {
			return nil, errors.New("connection is closed")
		}
		return msg, nil
	case <-time.After(time.Duration(timeout) * time.Second):
		return nil, errors.New("timeout")
	}
}

func (w *WebSocketConn) RecvAudio(timeout int) ([]byte, error) {
	select {
	case audio, ok := <-w.recvAudioChan:
		if !ok {
			return nil, errors.New("connection is closed")
		}
		return audio, nil
	case <-time.After(time.Duration(timeout) * time.Second):
		return nil, errors.New("timeout")
	}
}

func (w *WebSocketConn) Close() error {
	w.Lock()
	defer w.Unlock()

	if w.isClosed {
		return nil
	}
	w.isClosed = true

	// Closing the underlying conn unblocks the reader, which then closes
	// the receive channels itself.
	w.cancel()
	w.conn.Close()

	for _, cb := range w.onCloseCbList {
		if cb != nil {
			cb(w.deviceID)
		}
	}

	return nil
}

func (w *WebSocketConn) OnClose(cb func(deviceId string)) {
	w.onCloseCbList = append(w.onCloseCbList, cb)
}

func (w *WebSocketConn) GetDeviceID() string {
	return w.deviceID
}

func (w *WebSocketConn) GetRemoteAddr() string {
	return w.conn.RemoteAddr().String()
}

func (w *WebSocketConn) GetTransportType() string {
	return types.TransportTypeWebsocket
}

// IsClosed reports whether Close has been called.
func (w *WebSocketConn) IsClosed() bool {
	w.RLock()
	defer w.RUnlock()
	return w.isClosed
}
