package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLLMProviderRejectsUnknownTypes(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]interface{}
	}{
		{"missing type", map[string]interface{}{"model_name": "m"}},
		{"bogus type", map[string]interface{}{"type": "bogus", "model_name": "m"}},
		{"backend name is not a provider type", map[string]interface{}{"type": "eino", "model_name": "m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := GetLLMProvider(tt.config)
			require.Error(t, err)
			assert.Nil(t, provider)
			assert.Contains(t, err.Error(), "unsupported llm provider")
		})
	}
}

func TestGetLLMProviderOllama(t *testing.T) {
	provider, err := GetLLMProvider(map[string]interface{}{
		"type":       "ollama",
		"model_name": "qwen2.5:3b",
		"base_url":   "http://127.0.0.1:11434",
	})
	require.NoError(t, err)

	info := provider.GetModelInfo()
	assert.Equal(t, "qwen2.5:3b", info["model_name"])
	assert.Equal(t, "ollama", info["provider_type"])
}
