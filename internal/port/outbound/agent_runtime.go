// Package outbound defines the interfaces the gateway requires from
// external collaborators. Adapters under internal/adapter/outbound
// implement them.
package outbound

import (
	"context"
	"encoding/json"

	"github.com/threadgate/threadgate/internal/domain/thread"
)

// ThreadQuery selects conversations from the runtime's search operation.
// An empty Metadata map matches every conversation.
type ThreadQuery struct {
	Limit    int
	Offset   int
	Metadata map[string]any
}

// Stream is one live run against the upstream runtime. Events are
// delivered in upstream order on a single-consumer channel that closes
// when the upstream finishes or fails; after it closes, Err reports the
// failure, if any. Close releases the upstream connection and must be safe
// to call at any time (client disconnects are the common caller).
type Stream interface {
	Events() <-chan thread.Event
	Err() error
	Close() error
}

// AgentRuntime is the upstream service that executes conversational turns
// and emits events. Conversation identifiers and metadata values are
// opaque strings passed through unmodified.
type AgentRuntime interface {
	// CreateThread creates a conversation with the given metadata and
	// returns its identifier.
	CreateThread(ctx context.Context, metadata map[string]string) (string, error)

	// ThreadState fetches the raw state of a conversation.
	ThreadState(ctx context.Context, threadID string) (json.RawMessage, error)

	// DeleteThread removes a conversation.
	DeleteThread(ctx context.Context, threadID string) error

	// SearchThreads returns conversations matching the query, with
	// messages already mapped to API roles.
	SearchThreads(ctx context.Context, q ThreadQuery) ([]thread.Record, error)

	// StreamRun starts a run for a turn on the given conversation and
	// returns the live event stream. Only role and content of each turn
	// are forwarded.
	StreamRun(ctx context.Context, threadID string, turns []thread.Turn) (Stream, error)
}
