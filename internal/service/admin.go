package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/threadgate/threadgate/internal/domain/thread"
	"github.com/threadgate/threadgate/internal/port/outbound"
)

// statsSweepPageSize bounds each search page while aggregating totals.
const statsSweepPageSize = 100

// AdminService aggregates conversation data from the upstream agent
// runtime for the administrative surface.
type AdminService struct {
	runtime       outbound.AgentRuntime
	threadLimit   int
	previewLength int
	logger        *slog.Logger
}

// NewAdminService creates an AdminService. threadLimit caps a single
// listing; previewLength bounds derived thread titles.
func NewAdminService(runtime outbound.AgentRuntime, threadLimit, previewLength int, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{
		runtime:       runtime,
		threadLimit:   threadLimit,
		previewLength: previewLength,
		logger:        logger,
	}
}

// ListThreads returns aggregated views of recent conversations.
func (s *AdminService) ListThreads(ctx context.Context) ([]thread.Thread, error) {
	records, err := s.runtime.SearchThreads(ctx, outbound.ThreadQuery{Limit: s.threadLimit})
	if err != nil {
		return nil, err
	}

	threads := make([]thread.Thread, 0, len(records))
	for _, rec := range records {
		threads = append(threads, thread.Summarize(rec, s.previewLength))
	}
	s.logger.Debug("admin thread listing", "count", len(threads))
	return threads, nil
}

// ThreadDetails returns the raw runtime state for one conversation.
func (s *AdminService) ThreadDetails(ctx context.Context, threadID string) (json.RawMessage, error) {
	return s.runtime.ThreadState(ctx, threadID)
}

// DeleteThread removes a conversation from the runtime.
func (s *AdminService) DeleteThread(ctx context.Context, threadID string) error {
	if err := s.runtime.DeleteThread(ctx, threadID); err != nil {
		return err
	}
	s.logger.Info("admin deleted thread", "thread_id", threadID)
	return nil
}

// Stats sweeps the runtime's conversations and returns aggregate totals.
// Users are counted by distinct user_id metadata.
func (s *AdminService) Stats(ctx context.Context) (thread.Stats, error) {
	var stats thread.Stats
	users := make(map[string]struct{})

	for offset := 0; ; offset += statsSweepPageSize {
		records, err := s.runtime.SearchThreads(ctx, outbound.ThreadQuery{
			Limit:  statsSweepPageSize,
			Offset: offset,
		})
		if err != nil {
			return thread.Stats{}, err
		}
		for _, rec := range records {
			stats.TotalThreads++
			stats.TotalMessages += len(rec.Messages)
			if id, _ := rec.Metadata["user_id"].(string); id != "" {
				users[id] = struct{}{}
			}
		}
		if len(records) < statsSweepPageSize {
			break
		}
	}

	stats.TotalUsers = len(users)
	return stats, nil
}
