package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	m.ObserveTurn(PathFlow, "", time.Millisecond)
	m.Escape()
	m.GeneratorError()
	m.ArchiveFailure()
	m.RateLimited()
	m.SessionsExpired(3)
	m.ConnOpened()
	m.ConnClosed()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from nil handler, got %d", rec.Code)
	}
}

func TestCountersAndExposition(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveTurn(PathClassified, "GREETING", 5*time.Millisecond)
	m.ObserveTurn(PathClassified, "GREETING", 5*time.Millisecond)
	m.Escape()
	m.SessionsExpired(2)
	m.ConnOpened()

	if got := testutil.ToFloat64(m.turns.WithLabelValues(PathClassified, "GREETING")); got != 2 {
		t.Fatalf("expected 2 greeting turns, got %v", got)
	}
	if got := testutil.ToFloat64(m.sessionsExpired); got != 2 {
		t.Fatalf("expected 2 expired sessions, got %v", got)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"veltrix_chat_turns_total", "veltrix_guided_flow_escapes_total", "veltrix_ws_connections"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("exposition missing %s", name)
		}
	}
}
