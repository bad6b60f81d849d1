package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                        "/",
		"/metrics":                "/metrics",
		"/projects":               "/projects",
		"/projects/01HZX":         "/projects/:id",
		"/projects/01HZX/":        "/projects/:id",
		"/projects/abc/extra":     "/projects/abc/extra",
		"/auth/login":             "/auth/login",
		"/auth/refresh?trace=1":   "/auth/refresh",
		"/projects?owner=someone": "/projects",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
}

func TestInstrumentCountsCanonicalPath(t *testing.T) {
	Init()
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/projects/:id", "404"))

	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/projects/abc", nil))

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/projects/:id", "404"))
	if after-before != 1 {
		t.Fatalf("expected one request counted, got %v", after-before)
	}
}

func TestObserveCounters(t *testing.T) {
	before := testutil.ToFloat64(rateLimitDecisions.WithLabelValues("auth", "rejected"))
	ObserveRateLimit("auth", false)
	if got := testutil.ToFloat64(rateLimitDecisions.WithLabelValues("auth", "rejected")); got-before != 1 {
		t.Fatalf("expected rejected counter to increase")
	}

	before = testutil.ToFloat64(authEventsTotal.WithLabelValues("login", "ok"))
	ObserveAuth("login", "ok")
	if got := testutil.ToFloat64(authEventsTotal.WithLabelValues("login", "ok")); got-before != 1 {
		t.Fatalf("expected auth counter to increase")
	}

	SetReady(true)
	if testutil.ToFloat64(serviceReady) != 1 {
		t.Fatalf("expected ready gauge 1")
	}
	SetReady(false)
	if testutil.ToFloat64(serviceReady) != 0 {
		t.Fatalf("expected ready gauge 0")
	}
}

func TestLogWritesBaseKeys(t *testing.T) {
	l := Logger()
	orig := l.Writer()
	var buf bytes.Buffer
	l.SetOutput(&buf)
	defer l.SetOutput(orig)

	Log("warn", "something_happened", map[string]any{"msg": "ignored", "key": "value"})

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("log is not valid JSON: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "something_happened" || entry["key"] != "value" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key")
	}
}
