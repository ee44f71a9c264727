package http

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/threadgate/threadgate/internal/ctxkey"
	"github.com/threadgate/threadgate/internal/domain/fault"
)

// requestIDContextKey is the type for the request ID context key.
type requestIDContextKey struct{}

// RequestIDKey is the context key for the request ID.
var RequestIDKey = requestIDContextKey{}

// LoggerKey is the context key for the enriched logger.
// Uses shared key type from ctxkey package to allow cross-package access without import cycles.
var LoggerKey = ctxkey.LoggerKey{}

// forwardingHeaders are the proxy headers stripped from untrusted peers.
var forwardingHeaders = []string{"X-Forwarded-For", "X-Real-Ip", "X-Forwarded-Proto"}

// RequestIDMiddleware extracts or generates a request ID and enriches the logger.
// The request ID is stored in context using RequestIDKey.
// An enriched logger with request_id field is stored using LoggerKey.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enrichedLogger := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, LoggerKey, enrichedLogger)

			// Set response header for correlation
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// RequestIDFromContext retrieves the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// TrustedProxyMiddleware strips forwarding headers from peers outside the
// trusted networks, before any downstream stage reads them. An empty
// trusted set means every peer is untrusted and the headers are always
// stripped. Must run before any stage that inspects client addressing.
func TrustedProxyMiddleware(trustedCIDRs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	networks := make([]netip.Prefix, 0, len(trustedCIDRs))
	for _, cidr := range trustedCIDRs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			logger.Warn("ignoring invalid trusted proxy network", "network", cidr, "error", err)
			continue
		}
		networks = append(networks, prefix)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !peerIsTrusted(r.RemoteAddr, networks) {
				for _, header := range forwardingHeaders {
					if r.Header.Get(header) != "" {
						LoggerFromContext(r.Context()).Warn("stripping untrusted forwarding header",
							"header", header, "peer", r.RemoteAddr)
						r.Header.Del(header)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// peerIsTrusted reports whether the peer address lies inside any trusted
// network. An empty network list trusts nobody.
func peerIsTrusted(remoteAddr string, networks []netip.Prefix) bool {
	if len(networks) == 0 {
		return false
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	for _, network := range networks {
		if network.Contains(addr) {
			return true
		}
	}
	return false
}

// PayloadSizeMiddleware rejects requests whose declared content length
// exceeds the ceiling, before the body is read.
func PayloadSizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				logger := LoggerFromContext(r.Context())
				logger.Warn("request body too large",
					"content_length", r.ContentLength,
					"max_allowed", maxBytes,
					"path", r.URL.Path)
				failure := fault.Newf(fault.KindSecurity,
					"Request body too large. Maximum size: %dMB", maxBytes/(1024*1024)).
					With("max_size_bytes", maxBytes)
				respondFailure(w, r, failure)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware attaches the fixed hardening header set to
// every response, error responses included. The set is computed once from
// the environment: the CSP is more permissive outside production, and
// HSTS is sent only in production.
func SecurityHeadersMiddleware(environment string) func(http.Handler) http.Handler {
	headers := securityHeaders(environment)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for name, value := range headers {
				w.Header().Set(name, value)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeaders(environment string) map[string]string {
	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-XSS-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
		"Permissions-Policy": "geolocation=(), microphone=(), camera=(), payment=(), " +
			"usb=(), magnetometer=(), gyroscope=(), speaker=()",
		"Content-Security-Policy": cspPolicy(environment),
		"Server":                  "threadgate",
	}
	if environment == "production" {
		headers["Strict-Transport-Security"] = "max-age=31536000; includeSubDomains; preload"
	}
	return headers
}

func cspPolicy(environment string) string {
	if environment == "production" {
		return "default-src 'self'; script-src 'self'; style-src 'self'; " +
			"img-src 'self' data:; connect-src 'self'; font-src 'self'; " +
			"object-src 'none'; base-uri 'self'; form-action 'self'; " +
			"frame-ancestors 'none';"
	}
	return "default-src 'self'; script-src 'self' 'unsafe-inline' 'unsafe-eval'; " +
		"style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; " +
		"connect-src 'self' ws: wss: http: https:; font-src 'self' data:; " +
		"object-src 'none'; base-uri 'self'; form-action 'self';"
}

// SlowRequestMiddleware logs requests whose wall-clock duration crosses
// 80% of the advisory ceiling. It never cancels the request; cancellation
// belongs to the connection lifecycle, not this stage.
func SlowRequestMiddleware(ceiling time.Duration) func(http.Handler) http.Handler {
	threshold := ceiling * 8 / 10
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			elapsed := time.Since(start)
			if elapsed > threshold {
				LoggerFromContext(r.Context()).Warn("slow request",
					"path", r.URL.Path,
					"method", r.Method,
					"duration", elapsed.String(),
					"ceiling", ceiling.String())
			}
		})
	}
}

// suspiciousPatterns are attack signatures scanned for in the URL and all
// header values. Detection only; matches are logged, never blocked.
var suspiciousPatterns = []string{
	"script>", "<iframe", "javascript:", "vbscript:",
	"onload=", "onerror=", "onclick=",
	"union select", "drop table", "insert into",
	"../", "..\\", "%2e%2e",
	"; cat ", "| cat ", "&& cat ",
}

const maxHeaderValueLength = 1000

// SuspiciousRequestMiddleware scans the request for attack signatures and
// abnormal forwarding headers and logs what it finds. Runs after the
// sanitizer so it observes the request as the handlers will see it, and
// logs after the inner handler so the record carries the outcome.
func SuspiciousRequestMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			indicators := suspiciousIndicators(r)
			if len(indicators) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(wrapped, r)

			LoggerFromContext(r.Context()).Warn("suspicious request detected",
				"path", r.URL.Path,
				"method", r.Method,
				"indicators", indicators,
				"peer", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"status", wrapped.status,
				"duration", time.Since(start).String())
		})
	}
}

func suspiciousIndicators(r *http.Request) []string {
	var indicators []string

	url := strings.ToLower(r.URL.String())
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(url, pattern) {
			indicators = append(indicators, "URL contains: "+pattern)
		}
	}

	for name, values := range r.Header {
		for _, value := range values {
			lower := strings.ToLower(value)
			for _, pattern := range suspiciousPatterns {
				if strings.Contains(lower, pattern) {
					indicators = append(indicators, fmt.Sprintf("Header %s contains: %s", name, pattern))
				}
			}
			if len(value) > maxHeaderValueLength {
				indicators = append(indicators, "Unusually long header: "+name)
			}
		}
	}

	var forwarded []string
	for _, header := range []string{"X-Forwarded-For", "X-Real-Ip", "X-Originating-Ip"} {
		if r.Header.Get(header) != "" {
			forwarded = append(forwarded, strings.ToLower(header))
		}
	}
	if len(forwarded) > 1 {
		indicators = append(indicators, "Multiple forwarding headers: "+strings.Join(forwarded, ", "))
	}

	return indicators
}
