package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/threadgate/threadgate/internal/domain/fault"
)

func TestTranslateTypedFailureVerbatim(t *testing.T) {
	failure := fault.Authorization("Admin access required").With("required_role", "admin")
	h := handle(func(w http.ResponseWriter, r *http.Request) error {
		return failure
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	envelope, err := fault.ParseEnvelope(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	if envelope.Error != "AUTHORIZATION_ERROR" {
		t.Errorf("error = %q", envelope.Error)
	}
	if envelope.Message != "Admin access required" {
		t.Errorf("message = %q", envelope.Message)
	}
	if envelope.CorrelationID != failure.CorrelationID {
		t.Errorf("correlation_id = %q, want %q", envelope.CorrelationID, failure.CorrelationID)
	}
	if envelope.StatusCode != http.StatusForbidden {
		t.Errorf("status_code = %d", envelope.StatusCode)
	}
	if envelope.Details["required_role"] != "admin" {
		t.Errorf("details = %v", envelope.Details)
	}
}

func TestTranslateServerSideFailureRedacted(t *testing.T) {
	tests := []struct {
		name    string
		failure *fault.Failure
		secret  string
	}{
		{
			name: "configuration failure hides the config key",
			failure: fault.Configuration("JWT signing secret not configured").
				With("config_key", "auth.jwt_secret"),
			secret: "auth.jwt_secret",
		},
		{
			name: "database failure hides the driver error",
			failure: fault.Database("User directory lookup failed").
				With("cause", "SQL logic error: no such table: users"),
			secret: "no such table",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handle(func(w http.ResponseWriter, r *http.Request) error {
				return tt.failure
			})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

			if rec.Code != tt.failure.Status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.failure.Status)
			}
			body := rec.Body.String()
			if strings.Contains(body, tt.secret) {
				t.Fatalf("server-side detail leaked to client: %s", body)
			}
			envelope, err := fault.ParseEnvelope(rec.Body.Bytes())
			if err != nil {
				t.Fatalf("parse envelope: %v", err)
			}
			if envelope.Message != "An unexpected error occurred" {
				t.Errorf("message = %q, want generic", envelope.Message)
			}
			if envelope.Details != nil {
				t.Errorf("details = %v, want none", envelope.Details)
			}
			// The code and correlation ID survive so operators can match
			// the caller's report against the server log.
			if envelope.Error != tt.failure.Code {
				t.Errorf("error = %q, want %q", envelope.Error, tt.failure.Code)
			}
			if envelope.CorrelationID != tt.failure.CorrelationID {
				t.Errorf("correlation_id = %q, want %q", envelope.CorrelationID, tt.failure.CorrelationID)
			}
		})
	}
}

func TestTranslateValidationErrors(t *testing.T) {
	type body struct {
		Email string `json:"email" validate:"required,email"`
	}
	err := validator.New().Struct(body{Email: "nope"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	h := handle(func(w http.ResponseWriter, r *http.Request) error {
		return err
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/check-user", nil))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	envelope, perr := fault.ParseEnvelope(rec.Body.Bytes())
	if perr != nil {
		t.Fatalf("parse envelope: %v", perr)
	}
	if envelope.Error != "VALIDATION_ERROR" {
		t.Errorf("error = %q", envelope.Error)
	}
	if len(envelope.ValidationErrors) != 1 {
		t.Fatalf("validation_errors = %v, want one entry", envelope.ValidationErrors)
	}
	fe := envelope.ValidationErrors[0]
	if fe.Field != "Email" {
		t.Errorf("field = %q", fe.Field)
	}
	if fe.Code != "EMAIL" {
		t.Errorf("code = %q", fe.Code)
	}
}

func TestTranslateUnexpectedErrorIsGeneric(t *testing.T) {
	h := handle(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("pq: connection refused at 10.1.2.3:5432")
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads/t-1", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "10.1.2.3") || strings.Contains(body, "pq:") {
		t.Fatalf("internal detail leaked to client: %s", body)
	}
	envelope, err := fault.ParseEnvelope(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	if envelope.Message != "An unexpected error occurred" {
		t.Errorf("message = %q", envelope.Message)
	}
	if envelope.CorrelationID == "" {
		t.Error("generic envelope missing correlation ID")
	}
}

func TestHandleRecoversPanics(t *testing.T) {
	h := handle(func(w http.ResponseWriter, r *http.Request) error {
		panic("nil map write")
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "nil map write") {
		t.Error("panic detail leaked to client")
	}
}

func TestEnvelopeRoundTripThroughTranslator(t *testing.T) {
	failure := fault.Unavailable("Upstream briefly down")
	h := handle(func(w http.ResponseWriter, r *http.Request) error {
		return failure
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	envelope, err := fault.ParseEnvelope(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	if envelope.Error != failure.Code || envelope.StatusCode != failure.Status ||
		envelope.CorrelationID != failure.CorrelationID {
		t.Errorf("round trip lost fields: %+v", envelope)
	}
}
