package chat

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kazimoto/mipango/core"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role      string    `json:"role"` // system | user | assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Conversation is one user's chat thread with the planning assistant.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// titleFrom derives a conversation title from its opening message.
func titleFrom(content string) string {
	words := strings.Fields(content)
	if len(words) > 7 {
		words = words[:7]
	}
	title := strings.Join(words, " ")
	if len(title) > 60 {
		title = title[:60]
	}
	return title
}

// SendRequest carries one user turn.
type SendRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message" validate:"required"`
}

func (sr *SendRequest) Validate(validate *validator.Validate) error {
	sr.ConversationID = core.CleanString(sr.ConversationID)
	sr.Message = core.CleanString(sr.Message)
	return validate.Struct(sr)
}

// Reply is the assistant's answer to one SendRequest.
type Reply struct {
	ConversationID string  `json:"conversation_id"`
	Message        Message `json:"message"`
}
