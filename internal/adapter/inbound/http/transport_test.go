package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// markerHandler returns an http.Handler that writes a specific marker string.
// Used in routing tests to verify which handler received the request.
func markerHandler(marker string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Handler", marker)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, marker)
	})
}

// startTestServer serves the transport's routing tree on an httptest server.
func startTestServer(t *testing.T, transport *HTTPTransport) string {
	t.Helper()
	server := httptest.NewServer(transport.Handler())
	t.Cleanup(server.Close)
	return server.URL
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestRouting_AppHandler(t *testing.T) {
	transport := NewHTTPTransport(WithLogger(discardLogger()), WithHandler(markerHandler("app")))
	baseURL := startTestServer(t, transport)

	for _, path := range []string{"/", "/login", "/api/session"} {
		resp, body := get(t, baseURL+path)
		if resp.StatusCode != http.StatusOK || body != "app" {
			t.Errorf("GET %s = %d %q, want 200 app", path, resp.StatusCode, body)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Errorf("GET %s missing X-Request-ID", path)
		}
	}
}

func TestRouting_NoHandler(t *testing.T) {
	transport := NewHTTPTransport(WithLogger(discardLogger()))
	baseURL := startTestServer(t, transport)

	resp, _ := get(t, baseURL+"/")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET / without handler = %d, want 404", resp.StatusCode)
	}
}

func TestRouting_HealthAndFavicon(t *testing.T) {
	transport := NewHTTPTransport(WithLogger(discardLogger()), WithHandler(markerHandler("app")))
	baseURL := startTestServer(t, transport)

	resp, body := get(t, baseURL+"/health")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "healthy") {
		t.Errorf("GET /health = %d %q", resp.StatusCode, body)
	}

	resp, _ = get(t, baseURL+"/favicon.ico")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("GET /favicon.ico = %d, want 204", resp.StatusCode)
	}
}

func TestRouting_MetricsEndpoint(t *testing.T) {
	transport := NewHTTPTransport(
		WithLogger(discardLogger()),
		WithHandler(markerHandler("app")),
		WithSessionCounter(fixedCounter{size: 2, authenticated: 1}),
	)
	baseURL := startTestServer(t, transport)

	get(t, baseURL+"/")
	transport.Metrics().RecordLoginAttempt("success")

	_, body := get(t, baseURL+"/metrics")
	for _, want := range []string{
		`sheetlogin_requests_total{method="GET",status="ok"} 1`,
		`sheetlogin_login_attempts_total{result="success"} 1`,
		`sheetlogin_active_sessions 2`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestRouting_CrossOriginBlocked(t *testing.T) {
	transport := NewHTTPTransport(
		WithLogger(discardLogger()),
		WithHandler(markerHandler("app")),
		WithAllowedOrigins([]string{"https://school.example"}),
	)
	baseURL := startTestServer(t, transport)

	tests := []struct {
		origin string
		want   int
	}{
		{"", http.StatusOK},
		{baseURL, http.StatusOK},
		{"https://school.example", http.StatusOK},
		{"https://evil.example", http.StatusForbidden},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodPost, baseURL+"/login", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("Origin %q: status = %d, want %d", tt.origin, resp.StatusCode, tt.want)
		}
	}
}

func TestHTTPTransport_StartAndShutdown(t *testing.T) {
	transport := NewHTTPTransport(
		WithAddr("127.0.0.1:0"),
		WithLogger(discardLogger()),
		WithHandler(markerHandler("app")),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- transport.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for transport.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("transport did not start listening")
		}
		time.Sleep(10 * time.Millisecond)
	}

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + transport.Addr() + "/")
	if err != nil {
		t.Fatalf("GET / error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

func TestHTTPTransport_StartBadAddr(t *testing.T) {
	transport := NewHTTPTransport(WithAddr("256.0.0.1:99999"), WithLogger(discardLogger()))
	if err := transport.Start(context.Background()); err == nil {
		t.Fatal("Start() with invalid address should fail")
	}
}

func TestHTTPTransport_CloseBeforeStart(t *testing.T) {
	if err := NewHTTPTransport().Close(); err != nil {
		t.Errorf("Close() before Start() = %v, want nil", err)
	}
}

func TestHandler_StartsServerSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	transport := NewHTTPTransport(WithLogger(discardLogger()), WithHandler(markerHandler("app")))
	rec := httptest.NewRecorder()
	transport.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name() != "GET /" {
		t.Errorf("span name = %q, want %q", spans[0].Name(), "GET /")
	}

	// Health probes are not traced.
	transport.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if len(sr.Ended()) != 1 {
		t.Errorf("/health produced a span")
	}
}
