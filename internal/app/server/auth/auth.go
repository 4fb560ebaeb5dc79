package auth

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// ClientSession represents one device session.
type ClientSession struct {
	ID        string
	DeviceID  string
	CreatedAt time.Time
	LastSeen  time.Time
}

// AuthManager tracks tokens and live sessions.
type AuthManager struct {
	sessions map[string]*ClientSession
	mutex    sync.RWMutex
	tokens   map[string]string // token -> deviceID
}

var authManager *AuthManager

func Init() error {
	authManager = NewAuthManager()
	// Static tokens from config are valid for any device.
	for _, token := range viper.GetStringSlice("auth.tokens") {
		authManager.RegisterToken(token, "*")
	}
	return nil
}

func A() *AuthManager {
	return authManager
}

// NewAuthManager creates an empty manager.
func NewAuthManager() *AuthManager {
	return &AuthManager{
		sessions: make(map[string]*ClientSession),
		tokens:   make(map[string]string),
	}
}

// CreateSession creates a new session for the device.
func (am *AuthManager) CreateSession(deviceID string) (*ClientSession, error) {
	sessionID := uuid.NewString()

	session := &ClientSession{
		ID:        sessionID,
		DeviceID:  deviceID,
		CreatedAt: time.Now(),
		LastSeen:  time.Now(),
	}

	am.mutex.Lock()
	am.sessions[sessionID] = session
	am.mutex.Unlock()

	return session, nil
}

// GetSession looks up a session and refreshes its LastSeen.
func (am *AuthManager) GetSession(sessionID string) (*ClientSession, error) {
	am.mutex.RLock()
	session, exists := am.sessions[sessionID]
	am.mutex.RUnlock()

	if !exists {
		return nil, errors.New("session not found")
	}

	am.mutex.Lock()
	session.LastSeen = time.Now()
	am.mutex.Unlock()

	return session, nil
}

// RemoveSession removes a session.
func (am *AuthManager) RemoveSession(sessionID string) {
	am.mutex.Lock()
	delete(am.sessions, sessionID)
	am.mutex.Unlock()
}

// CleanupSessions drops sessions idle for longer than maxAge.
func (am *AuthManager) CleanupSessions(maxAge time.Duration) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	now := time.Now()
	for id, session := range am.sessions {
		if now.Sub(session.LastSeen) > maxAge {
			delete(am.sessions, id)
		}
	}
}

// ValidateToken checks a bearer token against the registered set.
func (am *AuthManager) ValidateToken(token string) bool {
	token = strings.TrimPrefix(token, "Bearer ")

	am.mutex.RLock()
	_, exists := am.tokens[token]
	am.mutex.RUnlock()

	return exists
}

// RegisterToken registers a token for a device.
func (am *AuthManager) RegisterToken(token string, deviceID string) {
	token = strings.TrimPrefix(token, "Bearer ")

	am.mutex.Lock()
	am.tokens[token] = deviceID
	am.mutex.Unlock()
}

// RemoveToken removes a token.
func (am *AuthManager) RemoveToken(token string) {
	token = strings.TrimPrefix(token, "Bearer ")

	am.mutex.Lock()
	delete(am.tokens, token)
	am.mutex.Unlock()
}
