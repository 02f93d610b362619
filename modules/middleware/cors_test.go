package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsHandler(allowed ...string) http.Handler {
	return CORS(allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestCORSPassesSameOrigin(t *testing.T) {
	w := httptest.NewRecorder()
	corsHandler("https://site.example").ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want handler to run", w.Code)
	}
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	r := httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("Origin", "https://site.example")
	w := httptest.NewRecorder()
	corsHandler("https://site.example").ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want handler to run", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://site.example" {
		t.Errorf("allow-origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("allow-credentials = %q, cookies must travel", got)
	}
}

func TestCORSRejectsUnlistedOrigin(t *testing.T) {
	r := httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	corsHandler("https://site.example").ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("allow-origin header leaked on rejection")
	}
}

func TestCORSPreflight(t *testing.T) {
	r := httptest.NewRequest(http.MethodOptions, "/x", nil)
	r.Header.Set("Origin", "https://site.example")
	w := httptest.NewRecorder()
	corsHandler("https://site.example").ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("preflight status = %d, want 200", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("preflight missing allow-methods")
	}
}
