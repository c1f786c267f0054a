package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.RecordTurn("teaching", "ok", 250*time.Millisecond)
	m.RecordGeneration("generate", "ok", 100, 50)
	m.RecordSuspension("awaiting_name")
	m.RecordSlide()
	m.SetActiveSessions(3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		`meemo_turns_total{stage="teaching",status="ok"} 1`,
		`meemo_generation_calls_total{kind="generate",status="ok"} 1`,
		`meemo_tokens_total{type="input"} 100`,
		`meemo_tokens_total{type="output"} 50`,
		`meemo_suspensions_total{kind="awaiting_name"} 1`,
		`meemo_slides_built_total 1`,
		`meemo_sessions_active 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestMetricsIsolatedRegistries(t *testing.T) {
	// Each collector owns its registry; creating two must not panic on
	// duplicate registration.
	_ = NewMetrics()
	_ = NewMetrics()
}
