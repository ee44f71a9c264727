package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/threadgate/threadgate/internal/domain/fault"
	"github.com/threadgate/threadgate/internal/domain/thread"
	"github.com/threadgate/threadgate/internal/port/outbound"
)

// fakeStream is a scripted outbound.Stream fed by tests.
type fakeStream struct {
	events chan thread.Event
	err    error

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan thread.Event),
		done:   make(chan struct{}),
	}
}

func (f *fakeStream) Events() <-chan thread.Event { return f.events }

func (f *fakeStream) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

func (f *fakeStream) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// finish closes the event channel after recording the terminal error.
func (f *fakeStream) finish(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	close(f.events)
}

type fakeRuntime struct {
	stream  *fakeStream
	openErr error

	gotThreadID string
	gotTurns    []thread.Turn
}

func (f *fakeRuntime) CreateThread(ctx context.Context, metadata map[string]string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeRuntime) ThreadState(ctx context.Context, threadID string) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRuntime) DeleteThread(ctx context.Context, threadID string) error {
	return errors.New("not implemented")
}

func (f *fakeRuntime) SearchThreads(ctx context.Context, q outbound.ThreadQuery) ([]thread.Record, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRuntime) StreamRun(ctx context.Context, threadID string, turns []thread.Turn) (outbound.Stream, error) {
	f.gotThreadID = threadID
	f.gotTurns = turns
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

// recordingSink collects forwarded events; failAfter, when positive,
// rejects every send past that count.
type recordingSink struct {
	mu        sync.Mutex
	events    []thread.Event
	failAfter int
}

func (r *recordingSink) Send(ev thread.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAfter > 0 && len(r.events) >= r.failAfter {
		return errors.New("client disconnected")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) snapshot() []thread.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]thread.Event(nil), r.events...)
}

func textEvent(t *testing.T, typ, text string) thread.Event {
	t.Helper()
	data, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		t.Fatalf("marshal event data: %v", err)
	}
	return thread.Event{Type: typ, Data: data}
}

func TestRelayForwardsEventsThenTerminalError(t *testing.T) {
	defer goleak.VerifyNone(t)

	stream := newFakeStream()
	runtime := &fakeRuntime{stream: stream}
	svc := NewRelayService(runtime, nil)

	turns := []thread.Turn{{Role: "user", Content: "hi"}}
	sess, err := svc.Open(context.Background(), "t-1", turns)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if runtime.gotThreadID != "t-1" || len(runtime.gotTurns) != 1 {
		t.Fatalf("StreamRun called with (%q, %d turns)", runtime.gotThreadID, len(runtime.gotTurns))
	}

	sink := &recordingSink{}
	done := make(chan StreamState, 1)
	go func() { done <- sess.Pump(context.Background(), sink) }()

	stream.events <- textEvent(t, "messages/partial", "hel")
	stream.events <- textEvent(t, "messages/partial", "hello")
	stream.finish(fault.ExternalService("Agent runtime stream interrupted"))

	state := <-done
	if state != StateFailed {
		t.Fatalf("Pump() state = %q, want %q", state, StateFailed)
	}

	events := sink.snapshot()
	if len(events) != 3 {
		t.Fatalf("sink received %d events, want 3", len(events))
	}
	if events[0].Type != "messages/partial" || events[1].Type != "messages/partial" {
		t.Errorf("forwarded types = %q, %q", events[0].Type, events[1].Type)
	}
	if events[2].Type != "error" {
		t.Fatalf("terminal event type = %q, want error", events[2].Type)
	}
	var terminal map[string]string
	if err := json.Unmarshal(events[2].Data, &terminal); err != nil {
		t.Fatalf("terminal data not JSON: %v", err)
	}
	if terminal["message"] != "Agent runtime stream interrupted" {
		t.Errorf("terminal message = %q", terminal["message"])
	}
	if sess.Forwarded() != 2 {
		t.Errorf("Forwarded() = %d, want 2", sess.Forwarded())
	}
	if !stream.wasClosed() {
		t.Error("upstream stream not released")
	}
}

func TestRelayCleanCloseEmitsNoErrorFrame(t *testing.T) {
	defer goleak.VerifyNone(t)

	stream := newFakeStream()
	svc := NewRelayService(&fakeRuntime{stream: stream}, nil)
	sess, err := svc.Open(context.Background(), "t-2", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	sink := &recordingSink{}
	done := make(chan StreamState, 1)
	go func() { done <- sess.Pump(context.Background(), sink) }()

	stream.events <- textEvent(t, "messages/complete", "done")
	stream.finish(nil)

	if state := <-done; state != StateClosed {
		t.Fatalf("Pump() state = %q, want %q", state, StateClosed)
	}
	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("sink received %d events, want 1", len(events))
	}
	if events[0].Type == "error" {
		t.Error("clean close produced an error frame")
	}
}

func TestRelayCancellationReleasesUpstream(t *testing.T) {
	defer goleak.VerifyNone(t)

	stream := newFakeStream()
	svc := NewRelayService(&fakeRuntime{stream: stream}, nil)
	sess, err := svc.Open(context.Background(), "t-3", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sink := &recordingSink{}
	done := make(chan StreamState, 1)
	go func() { done <- sess.Pump(ctx, sink) }()

	cancel()
	select {
	case state := <-done:
		if state != StateClosed {
			t.Fatalf("Pump() state = %q, want %q", state, StateClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pump() did not return after cancellation")
	}
	if !stream.wasClosed() {
		t.Error("upstream stream not released after cancellation")
	}
	// Unblock nothing further; the producer side is owned by the test.
	close(stream.events)
}

func TestRelaySinkFailureStopsForwarding(t *testing.T) {
	defer goleak.VerifyNone(t)

	stream := newFakeStream()
	svc := NewRelayService(&fakeRuntime{stream: stream}, nil)
	sess, err := svc.Open(context.Background(), "t-4", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	sink := &recordingSink{failAfter: 1}
	done := make(chan StreamState, 1)
	go func() { done <- sess.Pump(context.Background(), sink) }()

	stream.events <- textEvent(t, "messages/partial", "one")
	stream.events <- textEvent(t, "messages/partial", "two")

	if state := <-done; state != StateClosed {
		t.Fatalf("Pump() state = %q, want %q", state, StateClosed)
	}
	if got := len(sink.snapshot()); got != 1 {
		t.Fatalf("sink received %d events, want 1", got)
	}
	if !stream.wasClosed() {
		t.Error("upstream stream not released after sink failure")
	}
	close(stream.events)
}

func TestRelayOpenFailurePropagates(t *testing.T) {
	openErr := fault.NotFound("Thread not found")
	svc := NewRelayService(&fakeRuntime{openErr: openErr}, nil)

	_, err := svc.Open(context.Background(), "missing", nil)
	if !errors.Is(err, openErr) {
		t.Fatalf("Open() error = %v, want %v", err, openErr)
	}
}
