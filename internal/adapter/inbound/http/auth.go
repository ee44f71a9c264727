package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/threadgate/threadgate/internal/ctxkey"
	"github.com/threadgate/threadgate/internal/domain/auth"
	"github.com/threadgate/threadgate/internal/domain/fault"
)

// IdentityKey is the context key for the verified caller identity.
var IdentityKey = ctxkey.IdentityKey{}

// IdentityFromContext retrieves the verified identity from context.
// Returns nil when the request is anonymous.
func IdentityFromContext(ctx context.Context) *auth.Identity {
	if identity, ok := ctx.Value(IdentityKey).(*auth.Identity); ok {
		return identity
	}
	return nil
}

// requireIdentity resolves the bearer token before fn runs and fails the
// request on any decoder error.
func (a *API) requireIdentity(fn apiFunc) apiFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		identity, err := a.resolveIdentity(r)
		if err != nil {
			return err
		}
		ctx := context.WithValue(r.Context(), IdentityKey, identity)
		return fn(w, r.WithContext(ctx))
	}
}

// optionalIdentity resolves the bearer token if one is present, yielding
// an anonymous request on authentication failures. Configuration and
// unexpected failures still propagate.
func (a *API) optionalIdentity(fn apiFunc) apiFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		identity, err := a.resolveIdentity(r)
		if err != nil {
			var failure *fault.Failure
			if errors.As(err, &failure) && failure.Kind == fault.KindAuthentication {
				return fn(w, r)
			}
			return err
		}
		ctx := context.WithValue(r.Context(), IdentityKey, identity)
		return fn(w, r.WithContext(ctx))
	}
}

// requireAdmin composes identity resolution with the admin role gate.
// Resolution always runs first; the order is a correctness requirement.
func (a *API) requireAdmin(fn apiFunc) apiFunc {
	return a.requireIdentity(func(w http.ResponseWriter, r *http.Request) error {
		identity := IdentityFromContext(r.Context())
		if _, err := auth.RequireRole(identity, auth.RoleAdmin); err != nil {
			LoggerFromContext(r.Context()).Warn("admin access denied",
				"user_id", identity.Subject, "role", identity.CustomRole)
			return err
		}
		return fn(w, r)
	})
}

func (a *API) resolveIdentity(r *http.Request) (*auth.Identity, error) {
	token := bearerToken(r)
	identity, err := a.decoder.Decode(token)
	if err != nil {
		a.recordAuthFailure(r, token, err)
		return nil, err
	}
	return identity, nil
}

func (a *API) recordAuthFailure(r *http.Request, token string, err error) {
	reason := "unknown"
	var failure *fault.Failure
	if errors.As(err, &failure) {
		if s, ok := failure.Context["reason"].(string); ok {
			reason = s
		}
	}
	if a.metrics != nil {
		a.metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	}
	attrs := []any{"path", r.URL.Path, "reason", reason}
	if token != "" {
		// Log a fingerprint only; the bearer token never reaches the logs.
		attrs = append(attrs, "token_fp", tokenFingerprint(token))
	}
	LoggerFromContext(r.Context()).Warn("identity resolution failed", attrs...)
}

// bearerToken extracts the token from the Authorization header.
// Returns "" when the header is absent or not a Bearer scheme.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// tokenFingerprint returns a short non-reversible identifier for a token.
func tokenFingerprint(token string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(token))
}
