package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// floodHandler upgrades and blasts binary frames until the peer hangs up.
func floodHandler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		payload := make([]byte, 64)
		for {
			if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				return
			}
		}
	}
}

func TestConnCloseDuringInboundFlood(t *testing.T) {
	server := httptest.NewServer(floodHandler(t))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")

	// Close must never race the reader into a send on a closed channel,
	// however much traffic is in flight.
	for i := 0; i < 50; i++ {
		raw, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)

		conn := NewWebSocketConn(raw, "stone-01")
		if _, err := conn.RecvAudio(1); err != nil {
			t.Fatalf("no audio arrived before close: %v", err)
		}
		require.NoError(t, conn.Close())
	}
}

func TestConnRecvAfterCloseReturnsError(t *testing.T) {
	server := httptest.NewServer(floodHandler(t))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	raw, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	conn := NewWebSocketConn(raw, "stone-01")
	require.NoError(t, conn.Close())
	assert.True(t, conn.IsClosed())

	// Once the reader has drained, receives fail instead of blocking
	// until the timeout or handing out empty frames.
	assert.Eventually(t, func() bool {
		_, err := conn.RecvControl(1)
		return err != nil && err.Error() == "connection is closed"
	}, 5*time.Second, 10*time.Millisecond)
}
