package fault

import (
	"encoding/json"
	"time"
)

// FieldError reports one offending field of a request-validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Envelope is the uniform JSON error body returned on every non-2xx
// response. Serialization is lossless for Error, StatusCode, and
// CorrelationID: re-parsing an envelope recovers the same three fields.
type Envelope struct {
	Success          bool           `json:"success"`
	Error            string         `json:"error"`
	Message          string         `json:"message"`
	CorrelationID    string         `json:"correlation_id"`
	Timestamp        string         `json:"timestamp"`
	StatusCode       int            `json:"status_code"`
	Details          map[string]any `json:"details,omitempty"`
	ValidationErrors []FieldError   `json:"validation_errors,omitempty"`
}

// Envelope converts the Failure into the wire envelope. Context is exposed
// as details verbatim; the translator decides whether the Failure is safe
// to show before calling this.
func (f *Failure) Envelope() Envelope {
	var details map[string]any
	if len(f.Context) > 0 {
		details = f.Context
	}
	return Envelope{
		Success:       false,
		Error:         f.Code,
		Message:       f.Message,
		CorrelationID: f.CorrelationID,
		Timestamp:     f.Timestamp.Format(time.RFC3339),
		StatusCode:    f.Status,
		Details:       details,
	}
}

// ParseEnvelope decodes a JSON error envelope. Used by clients and tests to
// recover the code, status, and correlation ID of a Failure.
func ParseEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
