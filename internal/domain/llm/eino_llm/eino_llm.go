package eino_llm

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	log "speaking-stone-golang/logger"
)

// EinoLLMProvider serves chat completions through the Eino ChatModel
// interface. Supports any OpenAI-compatible endpoint (OpenRouter
// included) and Ollama.
type EinoLLMProvider struct {
	chatModel    model.ToolCallingChatModel
	modelName    string
	maxTokens    int
	streamable   bool
	config       map[string]interface{}
	providerType string // "openai" or "ollama"
}

// Connection pool settings for the shared HTTP client.
const (
	maxIdleConns        = 100
	maxIdleConnsPerHost = 10
	idleConnTimeout     = 90 * time.Second
	requestTimeout      = 30 * time.Second
)

var (
	httpClient     *http.Client
	httpClientOnce sync.Once
)

// getHTTPClient returns the pooled HTTP client shared by all requests.
func getHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		transport := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        maxIdleConns,
			MaxIdleConnsPerHost: maxIdleConnsPerHost,
			IdleConnTimeout:     idleConnTimeout,
			TLSHandshakeTimeout: 10 * time.Second,
			DisableKeepAlives:   false,
		}

		httpClient = &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		}
	})

	return httpClient
}

// NewEinoLLMProvider creates a provider for the configured type.
func NewEinoLLMProvider(config map[string]interface{}) (*EinoLLMProvider, error) {
	providerType, _ := config["type"].(string)
	if providerType == "" {
		return nil, fmt.Errorf("type is required, must be 'openai' or 'ollama'")
	}

	modelName, _ := config["model_name"].(string)
	if modelName == "" {
		return nil, fmt.Errorf("model_name is required")
	}

	maxTokens := 500
	if mt, ok := config["max_tokens"].(int); ok {
		maxTokens = mt
	}

	streamable := true
	if s, ok := config["streamable"].(bool); ok {
		streamable = s
	}

	var chatModel model.ToolCallingChatModel
	var err error

	switch providerType {
	case "openai":
		chatModel, err = createOpenAIChatModel(config)
		if err != nil {
			return nil, fmt.Errorf("create OpenAI ChatModel failed: %v", err)
		}
	case "ollama":
		chatModel, err = createOllamaChatModel(config)
		if err != nil {
			return nil, fmt.Errorf("create Ollama ChatModel failed: %v", err)
		}
	default:
		return nil, fmt.Errorf("unsupported model type: %s", providerType)
	}

	provider := &EinoLLMProvider{
		chatModel:    chatModel,
		modelName:    modelName,
		maxTokens:    maxTokens,
		streamable:   streamable,
		config:       config,
		providerType: providerType,
	}

	return provider, nil
}

// createOpenAIChatModel builds a ChatModel for OpenAI-compatible APIs.
func createOpenAIChatModel(config map[string]interface{}) (model.ToolCallingChatModel, error) {
	ctx := context.Background()

	modelName, _ := config["model_name"].(string)
	if modelName == "" {
		modelName = "gpt-3.5-turbo"
	}

	apiKey, _ := config["api_key"].(string)
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	baseURL, _ := config["base_url"].(string)

	openaiConfig := &openai.ChatModelConfig{
		Model:      modelName,
		APIKey:     apiKey,
		HTTPClient: getHTTPClient(),
	}

	if baseURL != "" {
		openaiConfig.BaseURL = baseURL
	}

	chatModel, err := openai.NewChatModel(ctx, openaiConfig)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI ChatModel failed: %v", err)
	}

	log.Infof("created OpenAI ChatModel, model: %s", modelName)
	return chatModel, nil
}

// createOllamaChatModel builds a ChatModel served by a local Ollama.
func createOllamaChatModel(config map[string]interface{}) (model.ToolCallingChatModel, error) {
	ctx := context.Background()

	modelName, _ := config["model_name"].(string)
	baseURL, _ := config["base_url"].(string)

	if modelName == "" || baseURL == "" {
		return nil, fmt.Errorf("model_name and base_url are required")
	}

	ollamaConfig := &ollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   modelName,
	}

	chatModel, err := ollama.NewChatModel(ctx, ollamaConfig)
	if err != nil {
		return nil, fmt.Errorf("create Ollama ChatModel failed: %v", err)
	}

	log.Infof("created Ollama ChatModel, model: %s", modelName)
	return chatModel, nil
}

// GetModelInfo returns model metadata.
func (p *EinoLLMProvider) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model_name":    p.modelName,
		"max_tokens":    p.maxTokens,
		"streamable":    p.streamable,
		"type":          "eino",
		"provider_type": p.providerType,
		"base_url":      p.config["base_url"],
	}
}

// ResponseWithContext streams the assistant reply. The channel carries
// partial messages when streaming is enabled, or a single complete
// message otherwise, and is closed when the reply ends.
func (p *EinoLLMProvider) ResponseWithContext(ctx context.Context, sessionID string, dialogue []*schema.Message) chan *schema.Message {
	responseChan := make(chan *schema.Message, 200)

	go func() {
		defer close(responseChan)

		if !p.streamable {
			message, err := p.chatModel.Generate(ctx, dialogue, model.WithMaxTokens(p.maxTokens))
			if err != nil {
				log.Errorf("llm generate failed - sessionID: %s, err: %v", sessionID, err)
				return
			}
			if message != nil {
				responseChan <- message
			}
			return
		}

		streamReader, err := p.chatModel.Stream(ctx, dialogue, model.WithMaxTokens(p.maxTokens))
		if err != nil {
			log.Errorf("llm stream call failed, falling back to generate: %v", err)
			message, genErr := p.chatModel.Generate(ctx, dialogue, model.WithMaxTokens(p.maxTokens))
			if genErr != nil {
				log.Errorf("llm generate failed - sessionID: %s, err: %v", sessionID, genErr)
				return
			}
			if message != nil {
				responseChan <- message
			}
			return
		}
		defer streamReader.Close()

		for {
			message, err := streamReader.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				log.Errorf("recv stream response failed: %v", err)
				return
			}
			if message == nil || message.Content == "" {
				continue
			}
			select {
			case responseChan <- message:
			case <-ctx.Done():
				return
			}
		}
	}()

	return responseChan
}
