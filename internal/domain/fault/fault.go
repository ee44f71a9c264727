// Package fault contains the typed failure taxonomy shared by every layer
// of the gateway. A Failure carries a stable machine code, a fixed HTTP
// status, a correlation ID for cross-log tracing, and free-form diagnostic
// context. Failures propagate up the call stack unmodified and are
// terminally consumed by the HTTP response translator.
package fault

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a Failure. Each kind maps to exactly one HTTP status;
// the mapping is fixed and must be preserved on every propagation path.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindAuthentication     Kind = "authentication"
	KindAuthorization      Kind = "authorization"
	KindExternalService    Kind = "external_service"
	KindConfiguration      Kind = "configuration"
	KindDatabase           Kind = "database"
	KindResourceNotFound   Kind = "resource_not_found"
	KindRateLimit          Kind = "rate_limit"
	KindSecurity           Kind = "security"
	KindInternal           Kind = "internal"
	KindServiceUnavailable Kind = "service_unavailable"
)

// kindCodes is the fixed kind -> machine error code mapping.
var kindCodes = map[Kind]string{
	KindValidation:         "VALIDATION_ERROR",
	KindAuthentication:     "AUTHENTICATION_ERROR",
	KindAuthorization:      "AUTHORIZATION_ERROR",
	KindExternalService:    "EXTERNAL_SERVICE_ERROR",
	KindConfiguration:      "CONFIGURATION_ERROR",
	KindDatabase:           "DATABASE_ERROR",
	KindResourceNotFound:   "RESOURCE_NOT_FOUND",
	KindRateLimit:          "RATE_LIMIT_ERROR",
	KindSecurity:           "SECURITY_ERROR",
	KindInternal:           "INTERNAL_SERVER_ERROR",
	KindServiceUnavailable: "SERVICE_UNAVAILABLE",
}

// kindStatus is the fixed kind -> HTTP status mapping.
var kindStatus = map[Kind]int{
	KindValidation:         400,
	KindAuthentication:     401,
	KindAuthorization:      403,
	KindExternalService:    502,
	KindConfiguration:      500,
	KindDatabase:           500,
	KindResourceNotFound:   404,
	KindRateLimit:          429,
	KindSecurity:           400,
	KindInternal:           500,
	KindServiceUnavailable: 503,
}

// Failure is a typed error with a stable code, fixed HTTP status,
// correlation ID, timestamp, and diagnostic context. The zero value is not
// usable; construct Failures with New or one of the kind constructors.
type Failure struct {
	Kind          Kind
	Message       string
	Code          string
	Status        int
	CorrelationID string
	Timestamp     time.Time
	Context       map[string]any
}

// New creates a Failure of the given kind with a fresh correlation ID.
// Unknown kinds are coerced to KindInternal so a Failure always maps to a
// valid code/status pair.
func New(kind Kind, message string) *Failure {
	code, ok := kindCodes[kind]
	if !ok {
		kind = KindInternal
		code = kindCodes[KindInternal]
	}
	return &Failure{
		Kind:          kind,
		Message:       message,
		Code:          code,
		Status:        kindStatus[kind],
		CorrelationID: uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		Context:       map[string]any{},
	}
}

// Newf is New with fmt.Sprintf formatting of the message.
func Newf(kind Kind, format string, args ...any) *Failure {
	return New(kind, fmt.Sprintf(format, args...))
}

// With attaches a diagnostic key/value pair and returns the Failure for
// chaining. Context values end up in server logs and, for client-safe
// kinds, in the envelope details.
func (f *Failure) With(key string, value any) *Failure {
	f.Context[key] = value
	return f
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s (ID: %s)", f.Code, f.Message, f.CorrelationID)
}

// StatusFor returns the fixed HTTP status for a kind.
func StatusFor(kind Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return 500
}

// CodeFor returns the fixed machine code for a kind.
func CodeFor(kind Kind) string {
	if c, ok := kindCodes[kind]; ok {
		return c
	}
	return kindCodes[KindInternal]
}

// Validation creates a 400 validation Failure.
func Validation(message string) *Failure { return New(KindValidation, message) }

// Authentication creates a 401 authentication Failure.
func Authentication(message string) *Failure { return New(KindAuthentication, message) }

// Authorization creates a 403 authorization Failure.
func Authorization(message string) *Failure { return New(KindAuthorization, message) }

// ExternalService creates a 502 upstream Failure.
func ExternalService(message string) *Failure { return New(KindExternalService, message) }

// Configuration creates a 500 configuration Failure.
func Configuration(message string) *Failure { return New(KindConfiguration, message) }

// Database creates a 500 storage Failure.
func Database(message string) *Failure { return New(KindDatabase, message) }

// NotFound creates a 404 Failure for a missing resource.
func NotFound(message string) *Failure { return New(KindResourceNotFound, message) }

// RateLimit creates a 429 Failure.
func RateLimit(message string) *Failure { return New(KindRateLimit, message) }

// Security creates a 400 Failure for a detected security violation.
func Security(message string) *Failure { return New(KindSecurity, message) }

// Internal creates a generic 500 Failure.
func Internal(message string) *Failure { return New(KindInternal, message) }

// Unavailable creates a 503 Failure.
func Unavailable(message string) *Failure { return New(KindServiceUnavailable, message) }
