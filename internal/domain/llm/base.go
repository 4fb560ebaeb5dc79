package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"speaking-stone-golang/constants"
	"speaking-stone-golang/internal/domain/llm/eino_llm"
)

// LLMProvider is the chat model interface. Implementations use Eino
// native message types.
type LLMProvider interface {
	// ResponseWithContext streams the assistant reply for the dialogue.
	// The returned channel is closed when the reply is complete.
	ResponseWithContext(ctx context.Context, sessionID string, dialogue []*schema.Message) chan *schema.Message

	// GetModelInfo returns model name and other metadata.
	GetModelInfo() map[string]interface{}
}

// GetLLMProvider creates an LLM provider. Both supported types are
// served by the Eino-backed implementation.
func GetLLMProvider(config map[string]interface{}) (LLMProvider, error) {
	llmType, _ := config["type"].(string)
	switch llmType {
	case constants.LlmTypeOpenai, constants.LlmTypeOllama:
		provider, err := eino_llm.NewEinoLLMProvider(config)
		if err != nil {
			return nil, fmt.Errorf("create eino llm provider failed: %v", err)
		}
		return provider, nil
	}
	return nil, fmt.Errorf("unsupported llm provider: %s", llmType)
}

// Config is the LLM configuration structure.
type Config struct {
	Type      string `json:"type"`
	ModelName string `json:"model_name"`
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	MaxTokens int    `json:"max_tokens"`
}
