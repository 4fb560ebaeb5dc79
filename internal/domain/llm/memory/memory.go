package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	i_redis "speaking-stone-golang/internal/db/redis"
	log "speaking-stone-golang/logger"
)

var (
	memoryInstance *Memory
	once           sync.Once
)

// maxHistoryMessages caps how many turns are replayed into the dialogue.
const maxHistoryMessages = 20

// Memory stores per-device conversation history so the LLM can reference
// prior turns. Backed by Redis when available, process memory otherwise.
type Memory struct {
	redisClient *redis.Client
	keyPrefix   string

	local map[string][]*schema.Message
	sync.RWMutex
}

// Init initializes the shared memory instance.
func Init() error {
	once.Do(func() {
		memoryInstance = &Memory{
			redisClient: i_redis.GetClient(),
			keyPrefix:   viper.GetString("redis.key_prefix"),
			local:       make(map[string][]*schema.Message),
		}
	})
	return nil
}

// Get returns the shared memory instance.
func Get() *Memory {
	if memoryInstance == nil {
		Init()
	}
	return memoryInstance
}

// NewMemory creates a standalone instance (tests).
func NewMemory(redisClient *redis.Client) *Memory {
	return &Memory{
		redisClient: redisClient,
		local:       make(map[string][]*schema.Message),
	}
}

func (m *Memory) historyKey(deviceID string) string {
	return i_redis.GetKeyWithPrefix(m.keyPrefix, "llm:"+deviceID)
}

// AddMessage appends one dialogue message for the device.
func (m *Memory) AddMessage(ctx context.Context, deviceID string, role schema.RoleType, content string) error {
	msg := &schema.Message{
		Role:    role,
		Content: content,
	}

	if m.redisClient == nil {
		m.Lock()
		history := append(m.local[deviceID], msg)
		if len(history) > maxHistoryMessages {
			history = history[len(history)-maxHistoryMessages:]
		}
		m.local[deviceID] = history
		m.Unlock()
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := m.historyKey(deviceID)
	pipe := m.redisClient.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-maxHistoryMessages), -1)
	_, err = pipe.Exec(ctx)
	return err
}

// GetMessages returns the stored dialogue for the device, oldest first.
func (m *Memory) GetMessages(ctx context.Context, deviceID string) ([]*schema.Message, error) {
	if m.redisClient == nil {
		m.RLock()
		defer m.RUnlock()
		history := m.local[deviceID]
		out := make([]*schema.Message, len(history))
		copy(out, history)
		return out, nil
	}

	raw, err := m.redisClient.LRange(ctx, m.historyKey(deviceID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	messages := make([]*schema.Message, 0, len(raw))
	for _, item := range raw {
		var msg schema.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			log.Warnf("skip malformed history entry for %s: %v", deviceID, err)
			continue
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// Reset drops the stored dialogue for the device.
func (m *Memory) Reset(ctx context.Context, deviceID string) error {
	if m.redisClient == nil {
		m.Lock()
		delete(m.local, deviceID)
		m.Unlock()
		return nil
	}
	return m.redisClient.Del(ctx, m.historyKey(deviceID)).Err()
}
