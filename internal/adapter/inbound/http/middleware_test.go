package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated when missing", "", false},
		{"propagated", "abc-123", true},
		{"replaced when too long", strings.Repeat("x", 129), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestIDMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if seen == "" {
				t.Fatal("request ID missing from context")
			}
			if rec.Header().Get("X-Request-ID") != seen {
				t.Errorf("response header = %q, context = %q", rec.Header().Get("X-Request-ID"), seen)
			}
			if (seen == tt.incoming) != tt.keep {
				t.Errorf("request ID = %q, incoming %q, keep = %v", seen, tt.incoming, tt.keep)
			}
		})
	}
}

func TestLoggerFromContext_Default(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if LoggerFromContext(req.Context()) != slog.Default() {
		t.Error("LoggerFromContext() without middleware should return slog.Default()")
	}
}

func TestRealIPMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.5:5555", "10.0.0.5"},
		{"x-forwarded-for first hop", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.1:80", "1.2.3.4"},
		{"x-real-ip", map[string]string{"X-Real-IP": " 5.6.7.8 "}, "10.0.0.1:80", "5.6.7.8"},
		{"remote without port", nil, "10.0.0.9", "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			var got string
			handler := RequestIDMiddleware(logger)(RealIPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = IPFromContext(r.Context())
				LoggerFromContext(r.Context()).Info("probe")
			})))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("IP = %q, want %q", got, tt.want)
			}
			if !strings.Contains(buf.String(), "client_ip="+tt.want) {
				t.Errorf("log line missing client_ip: %s", buf.String())
			}
		})
	}
}

func TestOriginProtection(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := OriginProtection([]string{"https://allowed.example"})(next)

	tests := []struct {
		name   string
		host   string
		origin string
		want   int
	}{
		{"no origin", "app.local", "", http.StatusOK},
		{"same host", "app.local:8080", "http://app.local:8080", http.StatusOK},
		{"same host different case", "APP.local", "http://app.LOCAL", http.StatusOK},
		{"allowlisted", "app.local", "https://allowed.example", http.StatusOK},
		{"foreign", "app.local", "https://evil.example", http.StatusForbidden},
		{"null origin", "app.local", "null", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
