package langgraph

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/threadgate/threadgate/internal/domain/fault"
	"github.com/threadgate/threadgate/internal/domain/thread"
	"github.com/threadgate/threadgate/internal/port/outbound"
)

const (
	// scannerInitialBufSize is the initial buffer for the SSE scanner.
	scannerInitialBufSize = 64 * 1024
	// scannerMaxBufSize bounds a single SSE line. Frames beyond this are
	// a protocol violation and fail the stream.
	scannerMaxBufSize = 1024 * 1024
)

// StreamRun starts a run for one turn on the given conversation and
// returns the live event stream. Only the role and content of each turn
// are forwarded to the runtime.
func (c *Client) StreamRun(ctx context.Context, threadID string, turns []thread.Turn) (outbound.Stream, error) {
	messages := make([]map[string]string, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, map[string]string{
			"role":    t.Role,
			"content": t.Content,
		})
	}
	body := map[string]any{
		"assistant_id": c.assistantID,
		"input":        map[string]any{"messages": messages},
		"stream_mode":  "messages",
	}

	resp, err := c.doStream(ctx, "/threads/"+threadID+"/runs/stream", body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, c.threadNotFound(threadID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, c.expectSuccess(resp, "stream run")
	}

	s := &runStream{
		events: make(chan thread.Event),
		body:   resp.Body,
		done:   make(chan struct{}),
		logger: c.logger,
	}
	go s.read()
	return s, nil
}

// doStream issues the run request on a client without a global timeout;
// streams are long-lived and bounded by the request context instead.
func (c *Client) doStream(ctx context.Context, path string, body any) (*http.Response, error) {
	streamClient := &http.Client{Transport: c.httpClient.Transport}

	resp, err := c.doWith(ctx, streamClient, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// runStream is one live upstream run. It reads SSE frames off the
// response body and pushes them, in order and unbuffered, to a single
// consumer.
type runStream struct {
	events chan thread.Event
	body   io.ReadCloser
	done   chan struct{}
	logger *slog.Logger

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

// Events returns the ordered event channel. It closes when the upstream
// finishes or fails; check Err afterwards.
func (s *runStream) Events() <-chan thread.Event {
	return s.events
}

// Err reports the stream failure, if any, once Events has closed.
func (s *runStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the upstream connection. Safe to call concurrently with
// reads and more than once.
func (s *runStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.body.Close()
	})
	return nil
}

// read consumes SSE frames until the body ends, the stream fails, or the
// consumer closes. Frames are "event: <name>" / "data: <payload>" line
// groups terminated by a blank line.
func (s *runStream) read() {
	defer close(s.events)
	defer s.body.Close()

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, scannerInitialBufSize), scannerMaxBufSize)

	var eventName string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				if !s.emit(eventName, strings.Join(data, "\n")) {
					return
				}
			}
			eventName = ""
			data = data[:0]
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		default:
			// Comments (":keepalive") and fields we do not use (id, retry).
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-s.done:
			// Consumer closed the stream; the read error is our own.
		default:
			s.fail(err)
		}
		return
	}

	// Flush a final frame the upstream did not terminate with a blank line.
	if len(data) > 0 {
		s.emit(eventName, strings.Join(data, "\n"))
	}
}

// emit pushes one event. Returns false when the consumer is gone.
func (s *runStream) emit(name, payload string) bool {
	if name == "" {
		name = "message"
	}
	ev := thread.Event{Type: name, Data: normalizeEventData(payload)}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// fail records the stream error.
func (s *runStream) fail(err error) {
	s.logger.Warn("agent runtime stream failed", "error", err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = fault.ExternalService("Agent runtime stream interrupted").
		With("service_name", serviceName).
		With("cause", err.Error())
}

// normalizeEventData keeps valid JSON payloads verbatim and wraps anything
// else as a JSON string so every forwarded frame stays valid JSON.
func normalizeEventData(payload string) []byte {
	raw := []byte(payload)
	if json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(payload)
	return quoted
}
