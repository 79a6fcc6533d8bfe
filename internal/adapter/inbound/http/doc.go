// Package http provides the HTTP server for sheetlogin.
//
// The transport owns the listener, the Prometheus registry and the middleware
// chain. The page itself is served by an application handler passed in with
// WithHandler.
//
// # Usage
//
//	transport := http.NewHTTPTransport(
//	    http.WithAddr("127.0.0.1:8080"),
//	    http.WithHandler(webHandler),
//	    http.WithHealthChecker(checker),
//	    http.WithLogger(logger),
//	)
//	err := transport.Start(ctx)
//
// # Endpoints
//
//	GET /health   - JSON component status, 503 when the table source is failing
//	GET /metrics  - Prometheus exposition
//	/             - application handler
//
// # Middleware Chain
//
// Requests pass through middleware in this order:
//
//  1. MetricsMiddleware - Records request duration and status
//  2. RequestIDMiddleware - Extracts or generates X-Request-ID, enriches the logger
//  3. RealIPMiddleware - Extracts client IP from proxy headers
//  4. OriginProtection - Rejects cross-origin requests not in the allowlist
//  5. otelhttp - Starts a server span per request (global tracer provider)
//  6. Handler
package http
