package identity

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	if got := Sanitize("  learner-1 "); got != "learner-1" {
		t.Fatalf("expected trimmed id, got %q", got)
	}
	if got := Sanitize("bad id"); got != "" {
		t.Fatalf("expected spaces to be rejected, got %q", got)
	}
	if got := Sanitize(strings.Repeat("a", 129)); got != "" {
		t.Fatalf("expected overlong id to be rejected, got %q", got)
	}
}

func TestMiddleware_HeaderBeatsQuery(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/chat/history?session_id=from-query", nil)
	req.Header.Set(SessionHeaderName, "from-header")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "from-header" {
		t.Fatalf("expected header session id, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/chat/history?session_id=from-query", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "from-query" {
		t.Fatalf("expected query session id, got %q", seen)
	}
}

func TestResolve_PrefersBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/chat/stream", nil)
	req = req.WithContext(WithSessionID(req.Context(), "from-header"))

	if got := Resolve(req, "from-body"); got != "from-body" {
		t.Fatalf("expected body id, got %q", got)
	}
	if got := Resolve(req, "not valid!"); got != "from-header" {
		t.Fatalf("expected fallback to header id, got %q", got)
	}
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := IPFromRequest(req); got != "10.0.0.1" {
		t.Fatalf("expected host without port, got %q", got)
	}
	req.RemoteAddr = "10.0.0.2"
	if got := IPFromRequest(req); got != "10.0.0.2" {
		t.Fatalf("expected bare address unchanged, got %q", got)
	}
}
