package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/threadgate/threadgate/internal/domain/auth"
	"github.com/threadgate/threadgate/internal/port/outbound"
)

// ConversationService handles the user-facing conversation surface.
type ConversationService struct {
	runtime outbound.AgentRuntime
	logger  *slog.Logger
}

// NewConversationService creates a ConversationService.
func NewConversationService(runtime outbound.AgentRuntime, logger *slog.Logger) *ConversationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationService{runtime: runtime, logger: logger}
}

// Create starts a conversation for the caller. Ownership metadata comes
// from the verified identity, never from the request body.
func (s *ConversationService) Create(ctx context.Context, identity *auth.Identity) (string, error) {
	threadID, err := s.runtime.CreateThread(ctx, map[string]string{
		"user_id":    identity.Subject,
		"user_email": identity.Email,
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("conversation created", "thread_id", threadID, "user_id", identity.Subject)
	return threadID, nil
}

// State returns the raw runtime state for a conversation.
func (s *ConversationService) State(ctx context.Context, threadID string) (json.RawMessage, error) {
	return s.runtime.ThreadState(ctx, threadID)
}
