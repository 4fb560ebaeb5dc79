package session

import (
	"context"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"speaking-stone-golang/internal/util/workqueue"
	log "speaking-stone-golang/logger"
)

// Registry tracks live sessions keyed by device id. A device that
// reconnects replaces its previous session.
type Registry struct {
	sessions cmap.ConcurrentMap[string, *Session]
}

var (
	globalRegistry *Registry
	registryOnce   sync.Once
)

// GetRegistry returns the process-wide session registry.
func GetRegistry() *Registry {
	registryOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: cmap.New[*Session](),
	}
}

// Register stores the session, closing any previous one for the same
// device.
func (r *Registry) Register(deviceID string, s *Session) {
	if existing, ok := r.sessions.Get(deviceID); ok {
		log.Warnf("device %s already has a session, closing the old connection", deviceID)
		go existing.Close()
	}
	r.sessions.Set(deviceID, s)
	log.Infof("session registered, device: %s", deviceID)
}

// Unregister drops the session for the device if it is the one given.
// A replacement registered in the meantime is left alone.
func (r *Registry) Unregister(deviceID string, s *Session) {
	removed := r.sessions.RemoveCb(deviceID, func(key string, current *Session, exists bool) bool {
		return exists && current == s
	})
	if removed {
		log.Infof("session unregistered, device: %s", deviceID)
	}
}

func (r *Registry) Get(deviceID string) (*Session, bool) {
	return r.sessions.Get(deviceID)
}

func (r *Registry) Count() int {
	return r.sessions.Count()
}

func (r *Registry) DeviceIDs() []string {
	return r.sessions.Keys()
}

// CloseAll shuts every live session down, for server shutdown.
func (r *Registry) CloseAll() {
	sessions := make([]*Session, 0, r.sessions.Count())
	for item := range r.sessions.IterBuffered() {
		sessions = append(sessions, item.Val)
	}
	r.sessions.Clear()

	workqueue.ParallelizeUntil(context.Background(), 8, len(sessions), func(i int) {
		if err := sessions[i].Close(); err != nil {
			log.Warnf("close session failed, device: %s, err: %v", sessions[i].DeviceID(), err)
		}
	})
}
