// Package http provides the inbound HTTP transport for threadgate.
//
// This package wires the gateway's routes behind the defensive middleware
// chain and translates every raised failure into the uniform JSON error
// envelope.
//
// # Usage
//
// Create and start a transport:
//
//	transport := http.NewTransport(settings, decoder, relay, conversations, admin, beta,
//	    http.WithAddr(":8000"),
//	    http.WithLogger(logger),
//	)
//	err := transport.Start(ctx)
//
// # Endpoints
//
//	GET  /                              - Service banner
//	GET  /health                        - Health probe
//	GET  /metrics                       - Prometheus metrics
//	POST /api/auth/check-user           - Beta-access status for an email
//	POST /api/auth/non-beta-request     - Collect a beta signup
//	GET  /api/auth/me                   - Verified caller identity
//	POST /api/threads                   - Create a conversation
//	GET  /api/threads/{id}              - Conversation state
//	POST /api/threads/{id}/stream       - Relay a turn as server-sent events
//	GET  /api/admin/threads             - Aggregated conversation listing (admin)
//	GET  /api/admin/threads/{id}        - Raw conversation state (admin)
//	DELETE /api/admin/threads/{id}      - Delete a conversation (admin)
//	GET  /api/admin/stats               - Aggregate totals (admin)
//
// # Request Headers
//
//	Authorization: Bearer <token>   - Bearer token for authenticated routes
//	Content-Type: application/json  - Required for POST requests
//	X-Request-ID: <id>              - Optional caller-supplied correlation ID
//
// # Middleware chain
//
// Outermost to innermost: metrics, request ID, trusted-proxy sanitizer,
// payload-size guard, security-header injector, slow-request monitor,
// suspicious-pattern logger. The chain order is load-bearing: the
// sanitizer strips spoofable forwarding headers before anything reads
// them, and the header injector covers error responses produced inside
// the chain.
package http
