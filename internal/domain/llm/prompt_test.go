package llm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeReply(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		expected string
	}{
		{
			name:     "plain text untouched",
			reply:    "Hello there.",
			expected: "Hello there.",
		},
		{
			name:     "stage directions stripped",
			reply:    "*clears throat* Hello there.",
			expected: "Hello there.",
		},
		{
			name:     "bracketed actions stripped",
			reply:    "[whispers] Come closer.",
			expected: "Come closer.",
		},
		{
			name:     "wrapping quotes removed",
			reply:    `"All set."`,
			expected: "All set.",
		},
		{
			name:     "whitespace collapsed",
			reply:    "One  two   three",
			expected: "One two three",
		},
		{
			name:     "pure stage direction falls back to original",
			reply:    "*waves*",
			expected: "*waves*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeReply(tt.reply))
		})
	}
}

func TestFallbackReply(t *testing.T) {
	assert.Equal(t, "Echoing your words: hi", FallbackReply("hi"))
}

func TestLoadSystemPrompt(t *testing.T) {
	assert.Equal(t, DefaultSystemPrompt, LoadSystemPrompt(""))
	assert.Equal(t, DefaultSystemPrompt, LoadSystemPrompt("/nonexistent/prompt.txt"))

	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("   \n"), 0o644))
	assert.Equal(t, DefaultSystemPrompt, LoadSystemPrompt(empty))

	custom := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(custom, []byte("  Be brief.  \n"), 0o644))
	assert.Equal(t, "Be brief.", LoadSystemPrompt(custom))
}
