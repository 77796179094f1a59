package types

import "time"

// Mode selects which remote capability a finalized recording is routed to.
type Mode string

const (
	ModeEcho Mode = "echo"
	ModeLLM  Mode = "llm"
	ModeChat Mode = "chat"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeEcho, ModeLLM, ModeChat:
		return true
	}
	return false
}

// Roles of a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one role-tagged message within a session's history.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnResult is what the backend produced for one submitted recording.
type TurnResult struct {
	Transcription string `json:"transcription"`
	Response      string `json:"llm_response"`
	AudioURL      string `json:"audio_url,omitempty"`
	MessageCount  int    `json:"message_count,omitempty"`

	// Partial is set when the backend reported partial_success; Advisory
	// carries its non-fatal message for display.
	Partial  bool   `json:"-"`
	Advisory string `json:"-"`
}

// SessionSummary describes one stored conversation as reported by the backend.
type SessionSummary struct {
	ID           string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}
