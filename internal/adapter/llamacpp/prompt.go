package llamacpp

import (
	"strings"

	"github.com/lucasmend/askdb/internal/core/port"
)

// renderPrompt flattens a conversation into llama.cpp's plain-prompt format:
// System/Human/Assistant blocks ending with an open "Assistant:" for the
// model to complete. Unknown roles default to Human.
func renderPrompt(system string, messages []port.Message) string {
	var parts []string

	if system != "" {
		parts = append(parts, "System: "+system+"\n")
	}

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			parts = append(parts, "System: "+msg.Content+"\n")
		case "assistant":
			parts = append(parts, "Assistant: "+msg.Content+"\n")
		default:
			parts = append(parts, "Human: "+msg.Content+"\n")
		}
	}

	parts = append(parts, "Assistant:")
	return strings.Join(parts, "\n")
}
