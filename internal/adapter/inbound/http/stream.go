package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/threadgate/threadgate/internal/domain/fault"
	"github.com/threadgate/threadgate/internal/domain/thread"
	"github.com/threadgate/threadgate/internal/service"
)

type streamRequest struct {
	Messages []thread.Turn `json:"messages" validate:"required,min=1,dive"`
}

// handleStream opens a relay stream for a conversation. Failures before
// the first frame surface as ordinary error envelopes; once streaming has
// begun, failures travel inside the stream as the single terminal error
// event and the HTTP status stays 200.
func (a *API) handleStream(w http.ResponseWriter, r *http.Request) error {
	var req streamRequest
	if err := a.decodeJSON(r, &req); err != nil {
		return err
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		return fault.Internal("Streaming unsupported by connection")
	}

	session, err := a.relay.Open(r.Context(), r.PathValue("id"), req.Messages)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if a.metrics != nil {
		a.metrics.ActiveStreams.Inc()
		defer a.metrics.ActiveStreams.Dec()
	}

	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "relay.stream",
		trace.WithAttributes(attribute.String("thread.id", r.PathValue("id"))))
	defer span.End()

	sink := &sseSink{w: w, flusher: flusher, metrics: a.metrics}
	state := session.Pump(ctx, sink)
	span.SetAttributes(
		attribute.String("stream.state", string(state)),
		attribute.Int("stream.forwarded", session.Forwarded()),
	)
	LoggerFromContext(r.Context()).Info("relay stream finished",
		"thread_id", r.PathValue("id"),
		"state", string(state),
		"forwarded", session.Forwarded())
	return nil
}

// sseSink writes relay events as server-sent-event frames, flushing after
// every frame. No batching; perceived latency tracks the upstream.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	metrics *Metrics
}

var _ service.EventSink = (*sseSink)(nil)

func (s *sseSink) Send(ev thread.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	s.flusher.Flush()
	if s.metrics != nil {
		s.metrics.StreamEventsTotal.Inc()
	}
	return nil
}
