package wire

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one entry of a participant's chat log. Logs grow
// independently on both peers and are deduplicated by ID, so an optimistic
// local echo followed by the authoritative rebroadcast displays once.
type ChatMessage struct {
	ID     string    `json:"id"`
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
	System bool      `json:"system,omitempty"`
	Side   Side      `json:"side,omitempty"`
}

// NewChat creates a participant message with a fresh ID.
func NewChat(sender, text string, side Side) ChatMessage {
	return ChatMessage{
		ID:     uuid.NewString(),
		Sender: sender,
		Text:   text,
		Time:   time.Now(),
		Side:   side,
	}
}

// NewSystemChat creates a host-generated system line.
func NewSystemChat(text string) ChatMessage {
	return ChatMessage{
		ID:     uuid.NewString(),
		Sender: "system",
		Text:   text,
		Time:   time.Now(),
		System: true,
	}
}
