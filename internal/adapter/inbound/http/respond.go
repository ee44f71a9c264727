package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/threadgate/threadgate/internal/domain/fault"
)

// apiFunc is a route handler that reports failures as errors instead of
// writing them itself; handle converts whatever it returns (or panics
// with) into the uniform envelope.
type apiFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts an apiFunc into an http.Handler with the response
// translator as its single error boundary.
func handle(fn apiFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				translateError(w, r, fmt.Errorf("panic: %v", rec))
			}
		}()
		if err := fn(w, r); err != nil {
			translateError(w, r, err)
		}
	})
}

// translateError is the single place any raised failure becomes a wire
// response. Typed failures keep their own code, status, and correlation
// ID; caller mistakes (sub-500) also keep their message and context,
// while server-side failures are redacted to a generic message.
// Request-validation failures become 422 with per-field detail. Anything
// else is logged with full detail server-side while the caller receives
// only a generic 500 with a fresh correlation ID.
func translateError(w http.ResponseWriter, r *http.Request, err error) {
	logger := LoggerFromContext(r.Context())

	var failure *fault.Failure
	if errors.As(err, &failure) {
		respondFailure(w, r, failure)
		return
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		envelope := fault.Envelope{
			Success:          false,
			Error:            "VALIDATION_ERROR",
			Message:          "Request validation failed",
			CorrelationID:    uuid.New().String(),
			Timestamp:        time.Now().UTC().Format(time.RFC3339),
			StatusCode:       http.StatusUnprocessableEntity,
			ValidationErrors: fieldErrors(fieldErrs),
		}
		logger.Warn("request validation failed",
			"path", r.URL.Path,
			"fields", len(envelope.ValidationErrors),
			"correlation_id", envelope.CorrelationID)
		respondJSON(w, envelope.StatusCode, envelope)
		return
	}

	// Unexpected: rich server log, minimal client payload.
	correlationID := uuid.New().String()
	logger.Error("unhandled error",
		"path", r.URL.Path,
		"method", r.Method,
		"error", err,
		"error_type", fmt.Sprintf("%T", err),
		"correlation_id", correlationID,
		"stack", string(debug.Stack()))
	envelope := fault.Envelope{
		Success:       false,
		Error:         fault.CodeFor(fault.KindInternal),
		Message:       "An unexpected error occurred",
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		StatusCode:    http.StatusInternalServerError,
	}
	respondJSON(w, envelope.StatusCode, envelope)
}

// respondFailure writes a typed failure as its envelope and logs it.
// Server-side kinds log at error level, caller mistakes at warn.
func respondFailure(w http.ResponseWriter, r *http.Request, failure *fault.Failure) {
	logger := LoggerFromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"kind", string(failure.Kind),
		"code", failure.Code,
		"status", failure.Status,
		"correlation_id", failure.CorrelationID,
	}
	if len(failure.Context) > 0 {
		attrs = append(attrs, "context", failure.Context)
	}
	envelope := failure.Envelope()
	if failure.Status >= http.StatusInternalServerError {
		logger.Error(failure.Message, attrs...)
		// Server-side failure detail stays in the logs. The caller keeps
		// the code, status, and correlation ID for support lookups, but
		// the free-form message and context never cross the boundary.
		envelope.Message = "An unexpected error occurred"
		envelope.Details = nil
	} else {
		logger.Warn(failure.Message, attrs...)
	}
	respondJSON(w, failure.Status, envelope)
}

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fieldErrors(errs validator.ValidationErrors) []fault.FieldError {
	out := make([]fault.FieldError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, fault.FieldError{
			Field:   fieldPath(fe),
			Message: validationMessage(fe),
			Code:    strings.ToUpper(fe.Tag()),
		})
	}
	return out
}

// fieldPath strips the request struct name from the validator namespace,
// leaving the field path as the caller sent it.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Must be a valid email address"
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("Must have at least %s items or characters", fe.Param())
	case "max":
		return fmt.Sprintf("Must have at most %s items or characters", fe.Param())
	default:
		return fmt.Sprintf("Failed validation rule %q", fe.Tag())
	}
}
