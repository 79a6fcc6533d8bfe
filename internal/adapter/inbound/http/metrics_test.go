package http

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gaepo/sheetlogin/internal/service"
)

// fixedCounter is a SessionCounter with constant values.
type fixedCounter struct {
	size, authenticated int
}

func (f fixedCounter) Size() int          { return f.size }
func (f fixedCounter) Authenticated() int { return f.authenticated }

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, nil)

	if m.RequestsTotal == nil {
		t.Error("RequestsTotal not initialized")
	}
	if m.RequestDuration == nil {
		t.Error("RequestDuration not initialized")
	}
	if m.LoginAttempts == nil {
		t.Error("LoginAttempts not initialized")
	}
	if m.TableLoads == nil {
		t.Error("TableLoads not initialized")
	}
	if m.TableRows == nil {
		t.Error("TableRows not initialized")
	}
}

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, nil)

	m.RequestsTotal.WithLabelValues("POST", "ok").Inc()

	count := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "ok"))
	if count != 1 {
		t.Errorf("RequestsTotal = %v, want 1", count)
	}

	m.RequestDuration.WithLabelValues("POST").Observe(0.1)
	gathered, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range gathered {
		if strings.Contains(mf.GetName(), "request_duration") {
			found = true
			break
		}
	}
	if !found {
		t.Error("request_duration histogram not found in gathered metrics")
	}
}

func TestMetrics_SessionGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg, fixedCounter{size: 7, authenticated: 3})

	expected := `
# HELP sheetlogin_active_sessions Number of stored sessions
# TYPE sheetlogin_active_sessions gauge
sheetlogin_active_sessions 7
# HELP sheetlogin_authenticated_sessions Number of live sessions with a logged-in student
# TYPE sheetlogin_authenticated_sessions gauge
sheetlogin_authenticated_sessions 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"sheetlogin_active_sessions", "sheetlogin_authenticated_sessions"); err != nil {
		t.Error(err)
	}
}

func TestMetrics_RecordLoginAttempt(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), nil)

	m.RecordLoginAttempt(service.ResultSuccess)
	m.RecordLoginAttempt(service.ResultInvalidCredentials)
	m.RecordLoginAttempt(service.ResultInvalidCredentials)

	if got := testutil.ToFloat64(m.LoginAttempts.WithLabelValues(service.ResultSuccess)); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LoginAttempts.WithLabelValues(service.ResultInvalidCredentials)); got != 2 {
		t.Errorf("invalid_credentials = %v, want 2", got)
	}
}

func TestMetrics_RecordTableLoad(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), nil)

	m.RecordTableLoad(service.LoadResult{Source: "sheets", Rows: 120, Duration: 200 * time.Millisecond})
	if got := testutil.ToFloat64(m.TableRows); got != 120 {
		t.Errorf("TableRows = %v, want 120", got)
	}
	if got := testutil.ToFloat64(m.TableLoads.WithLabelValues("sheets", "success")); got != 1 {
		t.Errorf("success loads = %v, want 1", got)
	}

	m.RecordTableLoad(service.LoadResult{Source: "sheets", Err: errors.New("boom")})
	if got := testutil.ToFloat64(m.TableRows); got != 0 {
		t.Errorf("TableRows after failure = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.TableLoads.WithLabelValues("sheets", "error")); got != 1 {
		t.Errorf("error loads = %v, want 1", got)
	}
}
