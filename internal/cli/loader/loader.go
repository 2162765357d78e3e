package loader

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/lvyanru/chatctl/internal/stream"
)

// Transcript is a conversation context loaded from a YAML file, used to
// seed the prior-turn history of a new request.
type Transcript struct {
	// ConversationID resumes an existing conversation when set
	ConversationID string `json:"conversationId,omitempty"`
	// Model overrides the configured model selector
	Model string `json:"model,omitempty"`
	// Turns are the prior exchanges, oldest first
	Turns []TranscriptTurn `json:"turns"`
}

// TranscriptTurn is one prior exchange
type TranscriptTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LoadTranscript loads a conversation transcript from a YAML file.
func LoadTranscript(filepath string) (*Transcript, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var t Transcript
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	for i, turn := range t.Turns {
		switch turn.Role {
		case "user", "assistant", "system":
			// Valid role
		case "":
			return nil, fmt.Errorf("turns[%d].role is required", i)
		default:
			return nil, fmt.Errorf("invalid role '%s' in turns[%d], must be 'user', 'assistant' or 'system'", turn.Role, i)
		}
		if turn.Content == "" {
			return nil, fmt.Errorf("turns[%d].content is required", i)
		}
	}

	return &t, nil
}

// History converts the transcript turns to request history.
func (t *Transcript) History() []stream.Turn {
	if len(t.Turns) == 0 {
		return nil
	}
	history := make([]stream.Turn, len(t.Turns))
	for i, turn := range t.Turns {
		history[i] = stream.Turn{Role: turn.Role, Content: turn.Content}
	}
	return history
}
