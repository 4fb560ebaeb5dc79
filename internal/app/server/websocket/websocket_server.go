package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/viper"

	"speaking-stone-golang/internal/app/server/auth"
	"speaking-stone-golang/internal/app/server/types"
	log "speaking-stone-golang/logger"
)

// WebSocketServer accepts device audio connections.
type WebSocketServer struct {
	upgrader    websocket.Upgrader
	authManager *auth.AuthManager
	port        int

	onNewConnection types.OnNewConnection
}

// WebSocketServerOption configures optional parameters of WebSocketServer.
type WebSocketServerOption func(*WebSocketServer)

// WithAuthManager sets the auth manager.
func WithAuthManager(authManager *auth.AuthManager) WebSocketServerOption {
	return func(s *WebSocketServer) {
		s.authManager = authManager
	}
}

func WithOnNewConnection(onNewConnection types.OnNewConnection) WebSocketServerOption {
	return func(s *WebSocketServer) {
		s.onNewConnection = onNewConnection
	}
}

// NewWebSocketServer creates a new WebSocket server.
func NewWebSocketServer(port int, opts ...WebSocketServerOption) *WebSocketServer {
	s := &WebSocketServer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // devices connect from private networks
			},
		},
		authManager: auth.A(),
		port:        port,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers routes and serves until the listener fails.
func (s *WebSocketServer) Start() error {
	go s.cleanupSessions()

	http.HandleFunc("/ws/audio", s.handleAudio)
	http.HandleFunc("/", s.handleStatus)

	listenAddr := fmt.Sprintf("0.0.0.0:%d", s.port)
	log.Infof("websocket server listening on ws://%s/ws/audio", listenAddr)

	if err := http.ListenAndServe(listenAddr, nil); err != nil {
		log.Log().Fatalf("websocket server failed: %v", err)
		return err
	}
	return nil
}

// handleStatus is a lightweight status endpoint for container health checks.
func (s *WebSocketServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "speaking-stone-edge",
		"status":  "ok",
	})
}

// cleanupSessions periodically drops stale sessions.
func (s *WebSocketServer) cleanupSessions() {
	ticker := time.NewTicker(5 * time.Minute)
	for range ticker.C {
		s.authManager.CleanupSessions(30 * time.Minute)
	}
}

// handleAudio upgrades the connection and hands it to the session layer.
func (s *WebSocketServer) handleAudio(w http.ResponseWriter, r *http.Request) {
	deviceID := r.Header.Get("Device-Id")
	if deviceID == "" {
		// Fall back to the remote address so bare test clients still work.
		deviceID = r.RemoteAddr
	}

	if viper.GetBool("auth.enable") {
		token := r.Header.Get("Authorization")
		if token == "" {
			log.Warn("missing Authorization header")
			http.Error(w, "missing Authorization header", http.StatusUnauthorized)
			return
		}

		if !s.authManager.ValidateToken(token) {
			log.Warnf("invalid token: %s", token)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("websocket upgrade failed: %v", err)
		return
	}

	wsConn := NewWebSocketConn(conn, deviceID)
	if s.onNewConnection != nil {
		s.onNewConnection(wsConn)
	}
}
