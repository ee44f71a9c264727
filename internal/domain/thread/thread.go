// Package thread contains the domain types for AI conversation threads:
// the messages of a turn, forwarded stream events, and the aggregated
// thread view served to administrators.
package thread

import (
	"encoding/json"
	"time"
)

// Roles a message can carry on the client-facing API.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one stored conversation message.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is one inbound message of a conversation turn. Only role and
// content are ever forwarded upstream; any other client fields are dropped
// at the boundary.
type Turn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

// Event is one upstream stream event wrapped for the client. It is
// serialized as exactly {type, data}.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ErrorEvent builds the single terminal event a failed stream emits.
func ErrorEvent(message string) Event {
	data, _ := json.Marshal(map[string]string{"message": message})
	return Event{Type: "error", Data: data}
}

// Record is a conversation as reported by the upstream runtime's search
// and state operations, with messages already mapped to API roles.
type Record struct {
	ThreadID  string
	CreatedAt time.Time
	UpdatedAt time.Time
	Status    string
	Metadata  map[string]any
	Messages  []Message
}

// Thread is the aggregated admin view of a conversation.
type Thread struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	MessageCount int            `json:"message_count"`
	CreatedAt    time.Time      `json:"created_at"`
	LastUpdated  time.Time      `json:"last_updated"`
	UserEmail    string         `json:"user_email"`
	UserID       string         `json:"user_id"`
	Status       string         `json:"status"`
	Messages     []Message      `json:"messages"`
	Metadata     map[string]any `json:"raw_metadata,omitempty"`
}

// Stats are the aggregate totals for the admin dashboard.
type Stats struct {
	TotalUsers    int `json:"total_users"`
	TotalThreads  int `json:"total_threads"`
	TotalMessages int `json:"total_messages"`
}

// Summarize builds the admin view of a runtime record. The title is the
// first user message truncated to previewLen runes; user attribution comes
// from the conversation metadata stamped at creation time.
func Summarize(rec Record, previewLen int) Thread {
	title := "Untitled Thread"
	for _, m := range rec.Messages {
		if m.Role == RoleUser && m.Content != "" {
			title = truncate(m.Content, previewLen)
			break
		}
	}

	userEmail, _ := rec.Metadata["user_email"].(string)
	if userEmail == "" {
		userEmail = "unknown"
	}
	userID, _ := rec.Metadata["user_id"].(string)
	if userID == "" {
		userID = "unknown"
	}

	return Thread{
		ID:           rec.ThreadID,
		Title:        title,
		MessageCount: len(rec.Messages),
		CreatedAt:    rec.CreatedAt,
		LastUpdated:  rec.UpdatedAt,
		UserEmail:    userEmail,
		UserID:       userID,
		Status:       rec.Status,
		Messages:     rec.Messages,
		Metadata:     rec.Metadata,
	}
}

// truncate shortens s to max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
