package llm

import (
	"os"
	"regexp"
	"strings"

	log "speaking-stone-golang/logger"
)

// DefaultSystemPrompt is used when no prompt file is configured or the
// configured file cannot be read.
const DefaultSystemPrompt = "You are Speaking Stone, a concise conversational assistant co-located on a robotics hub. " +
	"Respond with plain speech only; never include stage directions, sound effects, or bracketed actions. " +
	"Keep replies short, direct, and ready for TTS."

// LoadSystemPrompt reads the system prompt from path, falling back to the
// default when the path is empty, unreadable, or blank.
func LoadSystemPrompt(path string) string {
	if path == "" {
		return DefaultSystemPrompt
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("could not read system prompt file %s: %v; using default prompt", path, err)
		return DefaultSystemPrompt
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		log.Warnf("system prompt file %s is empty; using default prompt", path)
		return DefaultSystemPrompt
	}
	return prompt
}

var (
	stageDirectionRe = regexp.MustCompile(`\*[^*]{0,80}\*`)
	bracketActionRe  = regexp.MustCompile(`\[[^\]]{0,80}\]`)
	multiSpaceRe     = regexp.MustCompile(`\s{2,}`)
)

// SanitizeReply strips stage directions and quotes so TTS gets clean
// speech. Returns the original reply if sanitizing leaves nothing.
func SanitizeReply(reply string) string {
	cleaned := stageDirectionRe.ReplaceAllString(reply, " ")
	cleaned = bracketActionRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Trim(cleaned, `"“”'`)
	cleaned = multiSpaceRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return reply
	}
	return cleaned
}

// FallbackReply is returned when no provider is available or the
// provider fails; devices still get speakable output.
func FallbackReply(text string) string {
	return "Echoing your words: " + text
}
