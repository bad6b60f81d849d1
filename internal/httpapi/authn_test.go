package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"testing"
	"time"

	"projgate.org/internal/auth"
	"projgate.org/internal/ratelimit"
)

var gateKeys = auth.StaticKeys{Access: []byte("gate-access"), Refresh: []byte("gate-refresh")}

func newGateTokens(t *testing.T, now func() time.Time) *auth.TokenManager {
	t.Helper()
	m, err := auth.NewTokenManager(gateKeys, auth.WithTokenClock(now))
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return m
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestIdentityGateReasons(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tokens := newGateTokens(t, clock)
	p := auth.Principal{ID: "user-1", Role: auth.RoleUser}

	access, err := tokens.IssueAccessToken(p)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	refresh, err := tokens.IssueRefreshToken(p)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	past := newGateTokens(t, func() time.Time { return now.Add(-2 * time.Hour) })
	expired, err := past.IssueAccessToken(p)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		name   string
		header string
		reason auth.TokenReason
	}{
		{"missing header", "", auth.ReasonNoToken},
		{"wrong scheme", "Basic dXNlcjpwYXNz", auth.ReasonNoToken},
		{"empty bearer", "Bearer   ", auth.ReasonNoToken},
		{"garbage", "Bearer garbage", auth.ReasonMalformed},
		{"refresh token", "Bearer " + refresh, auth.ReasonBadSignature},
		{"expired", "Bearer " + expired, auth.ReasonExpired},
	}
	handler := Chain(IdentityGate(tokens)).Then(okHandler())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/projects", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			if rr.Header().Get("WWW-Authenticate") == "" {
				t.Fatalf("expected WWW-Authenticate header set")
			}
			body := decodeBody(t, rr)
			if body["reason"] != string(tc.reason) {
				t.Fatalf("expected reason %s, got %v", tc.reason, body["reason"])
			}
		})
	}

	t.Run("valid", func(t *testing.T) {
		var seen auth.Principal
		h := Chain(IdentityGate(tokens)).Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = auth.PrincipalFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		req.Header.Set("Authorization", "bearer "+access)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if seen != p {
			t.Fatalf("unexpected principal in context: %+v", seen)
		}
	})
}

func withClaims(req *http.Request, id string, role auth.Role) *http.Request {
	claims := &auth.Claims{Role: role}
	claims.Subject = id
	return req.WithContext(auth.ContextWithClaims(req.Context(), claims))
}

func TestRoleGateAllowsMatchingRole(t *testing.T) {
	handler := Chain(RoleGate(auth.RoleAdmin)).Then(okHandler())

	req := withClaims(httptest.NewRequest(http.MethodDelete, "/projects/x", nil), "user-1", auth.RoleAdmin)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRoleGateIsExactMatch(t *testing.T) {
	handler := Chain(RoleGate(auth.RoleUser)).Then(okHandler())

	req := withClaims(httptest.NewRequest(http.MethodGet, "/internal", nil), "admin-1", auth.RoleAdmin)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("expected WWW-Authenticate header set")
	}
}

func TestRoleGateRejectsMissingClaims(t *testing.T) {
	handler := Chain(RoleGate(auth.RoleAdmin)).Then(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/internal", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRateGateHeadersAndRejection(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	lim, err := ratelimit.New(2, time.Minute, ratelimit.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("ratelimit.New: %v", err)
	}
	handler := RequestID(Chain(RateGate("auth", lim, nil)).Then(okHandler()))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = ip + ":5555"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		rr := send("10.0.0.1")
		if rr.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i+1, rr.Code)
		}
		if got := rr.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(1-i) {
			t.Fatalf("call %d: unexpected remaining %q", i+1, got)
		}
	}

	rr := send("10.0.0.1")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}
	body := decodeBody(t, rr)
	if body["error"] != "rate_limited" || body["reason"] != "auth" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["request_id"] == "" || body["request_id"] == nil {
		t.Fatalf("expected request_id in body")
	}

	if rr := send("10.0.0.2"); rr.Code != http.StatusOK {
		t.Fatalf("other clients must not be affected, got %d", rr.Code)
	}
}

func TestClientIPIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	var none TrustedProxies
	if got := none.ClientIP(req); got != "192.0.2.1" {
		t.Fatalf("unexpected ip %q", got)
	}
	other := TrustedProxies{netip.MustParsePrefix("10.0.0.0/8")}
	if got := other.ClientIP(req); got != "192.0.2.1" {
		t.Fatalf("forwarded header from untrusted peer must be ignored, got %q", got)
	}
}

func TestClientIPHonoursForwardedForFromTrustedPeer(t *testing.T) {
	proxies := TrustedProxies{netip.MustParsePrefix("10.0.0.0/8")}

	cases := []struct {
		name string
		xff  string
		want string
	}{
		{"single hop", "203.0.113.9", "203.0.113.9"},
		{"spoofed left hop", "198.51.100.1, 203.0.113.9", "203.0.113.9"},
		{"chained proxies", "203.0.113.9, 10.0.0.7", "203.0.113.9"},
		{"garbage hop", "nonsense, 10.0.0.7", "10.0.0.7"},
		{"no header", "", "10.1.1.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.1.1.1:443"
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := proxies.ClientIP(req); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRoleGateAuditsDenial(t *testing.T) {
	buf := captureLogs(t)
	handler := Chain(RoleGate(auth.RoleAdmin)).Then(okHandler())

	req := withClaims(httptest.NewRequest(http.MethodDelete, "/projects/x", nil), "user-7", auth.RoleUser)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("audit entry is not valid JSON: %v (%q)", err, buf.String())
	}
	if entry["event"] != "auth.access_denied" || entry["user_id"] != "user-7" {
		t.Fatalf("unexpected audit entry: %v", entry)
	}
	fields, _ := entry["fields"].(map[string]any)
	if fields["required_role"] != "admin" {
		t.Fatalf("expected required_role in audit fields, got %v", fields)
	}
}
