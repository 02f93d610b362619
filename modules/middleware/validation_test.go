package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func validationHandler(t *testing.T) http.Handler {
	t.Helper()
	mw := OpenAPIValidation(os.DirFS("../oapi"), "openapi-onekey.yaml", nil)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /paf-proxy/v1/proxy/sign-write", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mw(mux)
}

func postSignWrite(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest("POST", "/paf-proxy/v1/proxy/sign-write", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	validationHandler(t).ServeHTTP(w, r)
	return w
}

func TestValidationAcceptsIdentifiersOnlyWrite(t *testing.T) {
	w := postSignWrite(t, `{"identifiers":[{"version":0,"type":"paf_browser_id","value":"abc"}]}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d (%s), want handler to run", w.Code, w.Body.String())
	}
}

func TestValidationAcceptsPreferencesOnlyWrite(t *testing.T) {
	w := postSignWrite(t, `{"preferences":{"version":0,"data":{"use_browsing_for_personalization":true}}}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d (%s), want handler to run", w.Code, w.Body.String())
	}
}

func TestValidationRejectsWriteWithNeitherSide(t *testing.T) {
	w := postSignWrite(t, `{}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}
