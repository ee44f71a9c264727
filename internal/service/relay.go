// Package service contains application services.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/threadgate/threadgate/internal/domain/fault"
	"github.com/threadgate/threadgate/internal/domain/thread"
	"github.com/threadgate/threadgate/internal/port/outbound"
)

// StreamState is the lifecycle state of a relay session.
type StreamState string

const (
	StateOpened    StreamState = "opened"
	StateStreaming StreamState = "streaming"
	StateClosed    StreamState = "closed"
	StateFailed    StreamState = "failed"
)

// EventSink receives forwarded events. Send returns an error when the
// consumer is gone; the relay treats that as a client disconnect.
type EventSink interface {
	Send(ev thread.Event) error
}

// RelayService opens runs against the upstream agent runtime and forwards
// their events to a sink, one at a time, in arrival order.
type RelayService struct {
	runtime outbound.AgentRuntime
	logger  *slog.Logger
}

// NewRelayService creates a RelayService.
func NewRelayService(runtime outbound.AgentRuntime, logger *slog.Logger) *RelayService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayService{runtime: runtime, logger: logger}
}

// Session is one open relay stream. It is not safe for concurrent use;
// each stream has a single consumer.
type Session struct {
	threadID  string
	stream    outbound.Stream
	logger    *slog.Logger
	state     StreamState
	forwarded int
}

// Open starts an upstream run for the conversation. Failures here happen
// before any event reaches the client and propagate as ordinary errors.
func (s *RelayService) Open(ctx context.Context, threadID string, turns []thread.Turn) (*Session, error) {
	stream, err := s.runtime.StreamRun(ctx, threadID, turns)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("relay stream opened", "thread_id", threadID, "turns", len(turns))
	return &Session{
		threadID: threadID,
		stream:   stream,
		logger:   s.logger,
		state:    StateOpened,
	}, nil
}

// State returns the session's current lifecycle state.
func (sess *Session) State() StreamState {
	return sess.state
}

// Forwarded returns how many upstream events the session has sent.
func (sess *Session) Forwarded() int {
	return sess.forwarded
}

// Pump forwards upstream events to the sink until the stream ends, the
// upstream fails, the sink rejects a write, or the context is cancelled.
// On upstream failure it writes exactly one terminal error event and
// reports StateFailed; every other outcome reports StateClosed. Pump
// always releases the upstream stream before returning.
func (sess *Session) Pump(ctx context.Context, sink EventSink) StreamState {
	defer sess.stream.Close()

	sess.state = StateStreaming
	for {
		select {
		case ev, ok := <-sess.stream.Events():
			if !ok {
				return sess.finish(sink)
			}
			if err := sink.Send(ev); err != nil {
				sess.logger.Debug("relay client gone",
					"thread_id", sess.threadID, "forwarded", sess.forwarded, "error", err)
				sess.state = StateClosed
				return sess.state
			}
			sess.forwarded++
		case <-ctx.Done():
			sess.logger.Debug("relay cancelled",
				"thread_id", sess.threadID, "forwarded", sess.forwarded)
			sess.state = StateClosed
			return sess.state
		}
	}
}

// finish inspects the drained stream and emits the single terminal error
// frame when the upstream failed mid-run.
func (sess *Session) finish(sink EventSink) StreamState {
	err := sess.stream.Err()
	if err == nil {
		sess.state = StateClosed
		return sess.state
	}

	sess.logger.Error("relay upstream failed",
		"thread_id", sess.threadID, "forwarded", sess.forwarded, "error", err)

	message := "Agent stream failed"
	var failure *fault.Failure
	if errors.As(err, &failure) {
		message = failure.Message
	}
	// Best effort: the client may already be gone.
	if sendErr := sink.Send(thread.ErrorEvent(message)); sendErr != nil {
		sess.logger.Debug("relay terminal frame undeliverable",
			"thread_id", sess.threadID, "error", sendErr)
	}
	sess.state = StateFailed
	return sess.state
}
