package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"app/core/onekey/domain"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
const firefoxUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0"

func newTestBackend(t *testing.T, ex *testExchange) *BackendClient {
	t.Helper()
	b, err := NewBackendClient(ex.client, RedirectModeHTTP, 720*time.Hour)
	if err != nil {
		t.Fatalf("new backend client: %v", err)
	}
	return b
}

func TestNewBackendClientValidation(t *testing.T) {
	ex := newTestExchange(t)

	if _, err := NewBackendClient(ex.client, "javascript", time.Hour); err == nil {
		t.Error("client-side mode accepted")
	}
	if _, err := NewBackendClient(ex.client, RedirectModeHTTP, 0); err == nil {
		t.Error("zero cookie TTL accepted")
	}
	if _, err := NewBackendClient(ex.client, RedirectModeMeta, time.Hour); err != nil {
		t.Errorf("meta mode rejected: %v", err)
	}
}

func TestResolveFromCookies(t *testing.T) {
	ex := newTestExchange(t)
	b := newTestBackend(t, ex)

	r := httptest.NewRequest("GET", "http://publisher.example/news", nil)
	r.AddCookie(&http.Cookie{
		Name:  CookieIdentifiers,
		Value: url.QueryEscape(`[{"version":0,"type":"paf_browser_id","value":"cookie-id"}]`),
	})
	r.AddCookie(&http.Cookie{
		Name:  CookiePreferences,
		Value: url.QueryEscape(`{"version":0,"data":{"use_browsing_for_personalization":true}}`),
	})
	w := httptest.NewRecorder()

	data, redirected, err := b.ResolveOrRedirect(w, r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if redirected {
		t.Fatal("complete cookies still redirected")
	}
	if len(data.Identifiers) != 1 || data.Identifiers[0].Value != "cookie-id" {
		t.Errorf("identifiers = %+v", data.Identifiers)
	}
	if data.Preferences == nil {
		t.Error("preferences lost on the cookie path")
	}
}

func TestResolveFromCookieSentinels(t *testing.T) {
	ex := newTestExchange(t)
	b := newTestBackend(t, ex)

	// "asked before, nothing there": no redirect, explicitly empty result
	r := httptest.NewRequest("GET", "http://publisher.example/news", nil)
	r.AddCookie(&http.Cookie{Name: CookieIdentifiers, Value: NotKnown})
	r.AddCookie(&http.Cookie{Name: CookiePreferences, Value: NotKnown})
	r.Header.Set("User-Agent", firefoxUA)
	w := httptest.NewRecorder()

	data, redirected, err := b.ResolveOrRedirect(w, r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if redirected {
		t.Fatal("sentinel cookies triggered a new handshake")
	}
	if len(data.Identifiers) != 0 || data.Preferences != nil {
		t.Errorf("sentinel cookies produced data: %+v", data)
	}
}

func TestResolveCookiesPrecedeOperatorReturn(t *testing.T) {
	ex := newTestExchange(t)
	b := newTestBackend(t, ex)

	// a return payload that would fail verification if it were ever looked at
	resp := ex.operatorReadResponse(t, domain.IdsAndOptionalPreferences{
		Identifiers: []domain.Identifier{{Value: "genuine"}},
	})
	resp.Body.Identifiers[0].Value = "forged"
	raw, _ := json.Marshal(domain.RedirectGetIdsPrefsResponse{Response: &resp})

	r := httptest.NewRequest("GET", "http://publisher.example/news?paf="+url.QueryEscape(string(raw)), nil)
	r.AddCookie(&http.Cookie{
		Name:  CookieIdentifiers,
		Value: url.QueryEscape(`[{"version":0,"type":"paf_browser_id","value":"cookie-id"}]`),
	})
	r.AddCookie(&http.Cookie{
		Name:  CookiePreferences,
		Value: url.QueryEscape(`{"version":0,"data":{"use_browsing_for_personalization":true}}`),
	})
	w := httptest.NewRecorder()

	data, redirected, err := b.ResolveOrRedirect(w, r)
	if err != nil {
		t.Fatalf("cookie path must not inspect the query payload: %v", err)
	}
	if redirected {
		t.Fatal("complete cookies still redirected")
	}
	if len(data.Identifiers) != 1 || data.Identifiers[0].Value != "cookie-id" {
		t.Errorf("identifiers = %+v, want the cookie value", data.Identifiers)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("cookie path rewrote cookies from the query payload")
	}
}

func TestResolveFromOperatorReturn(t *testing.T) {
	ex := newTestExchange(t)
	b := newTestBackend(t, ex)

	persisted := false
	body := domain.IdsAndOptionalPreferences{
		Identifiers: []domain.Identifier{
			{Version: 0, Type: "paf_browser_id", Value: "keep-me"},
			{Version: 0, Type: "paf_browser_id", Value: "drop-me", Persisted: &persisted},
		},
		Preferences: &domain.Preferences{
			Data: domain.PreferencesData{UseBrowsingForPersonalization: true},
		},
	}
	resp := ex.operatorReadResponse(t, body)
	raw, err := json.Marshal(domain.RedirectGetIdsPrefsResponse{Response: &resp})
	if err != nil {
		t.Fatalf("marshal redirect payload: %v", err)
	}

	r := httptest.NewRequest("GET", "http://publisher.example/news?paf="+url.QueryEscape(string(raw)), nil)
	w := httptest.NewRecorder()

	data, redirected, err := b.ResolveOrRedirect(w, r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if redirected {
		t.Fatal("operator return leg still redirected")
	}
	if len(data.Identifiers) != 1 || data.Identifiers[0].Value != "keep-me" {
		t.Errorf("identifiers after persistence filter = %+v", data.Identifiers)
	}

	cookies := w.Result().Cookies()
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}
	idCookie, ok := byName[CookieIdentifiers]
	if !ok {
		t.Fatal("identifiers cookie not written")
	}
	unescaped, _ := url.QueryUnescape(idCookie.Value)
	if strings.Contains(unescaped, "drop-me") {
		t.Error("non-persisted identifier leaked into the cookie")
	}
	if _, ok := byName[CookiePreferences]; !ok {
		t.Error("preferences cookie not written")
	}
}

func TestResolveOperatorReturnWithoutData(t *testing.T) {
	ex := newTestExchange(t)
	b := newTestBackend(t, ex)

	resp := ex.operatorReadResponse(t, domain.IdsAndOptionalPreferences{Identifiers: []domain.Identifier{}})
	raw, _ := json.Marshal(domain.RedirectGetIdsPrefsResponse{Response: &resp})

	r := httptest.NewRequest("GET", "http://publisher.example/news?paf="+url.QueryEscape(string(raw)), nil)
	w := httptest.NewRecorder()

	data, redirected, err := b.ResolveOrRedirect(w, r)
	if err != nil || redirected {
		t.Fatalf("resolve: err=%v redirected=%v", err, redirected)
	}
	if len(data.Identifiers) != 0 || data.Preferences != nil {
		t.Errorf("empty operator answer produced data: %+v", data)
	}

	// both cookies must hold the sentinel so the next request short-circuits
	for _, c := range w.Result().Cookies() {
		unescaped, _ := url.QueryUnescape(c.Value)
		if unescaped != NotKnown {
			t.Errorf("cookie %s = %q, want sentinel", c.Name, unescaped)
		}
	}
}

func TestResolveOperatorReturnPropagatesUpstreamError(t *testing.T) {
	ex := newTestExchange(t)
	b := newTestBackend(t, ex)

	raw, _ := json.Marshal(domain.RedirectGetIdsPrefsResponse{
		Error: &domain.ErrorPayload{Message: "operator exploded"},
	})
	r := httptest.NewRequest("GET", "http://publisher.example/news?paf="+url.QueryEscape(string(raw)), nil)
	w := httptest.NewRecorder()

	_, _, err := b.ResolveOrRedirect(w, r)
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("got %v, want UpstreamError", err)
	}
	if upstream.Payload.Message != "operator exploded" {
		t.Errorf("upstream message = %q", upstream.Payload.Message)
	}
}

func TestResolveOperatorReturnRejectsForgedSignature(t *testing.T) {
	ex := newTestExchange(t)
	b := newTestBackend(t, ex)

	resp := ex.operatorReadResponse(t, domain.IdsAndOptionalPreferences{
		Identifiers: []domain.Identifier{{Value: "genuine"}},
	})
	resp.Body.Identifiers[0].Value = "forged"
	raw, _ := json.Marshal(domain.RedirectGetIdsPrefsResponse{Response: &resp})

	r := httptest.NewRequest("GET", "http://publisher.example/news?paf="+url.QueryEscape(string(raw)), nil)
	w := httptest.NewRecorder()

	_, redirected, err := b.ResolveOrRedirect(w, r)
	if !errors.Is(err, domain.ErrVerificationFailed) {
		t.Fatalf("got %v, want ErrVerificationFailed", err)
	}
	if redirected {
		t.Error("verification failure degraded into a redirect")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("cookies written despite failed verification")
	}
}

func TestResolveOperatorReturnPrecedesUserAgentHeuristic(t *testing.T) {
	ex := newTestExchange(t)
	b := newTestBackend(t, ex)

	resp := ex.operatorReadResponse(t, domain.IdsAndOptionalPreferences{
		Identifiers: []domain.Identifier{{Value: "from-return-leg"}},
	})
	raw, _ := json.Marshal(domain.RedirectGetIdsPrefsResponse{Response: &resp})

	// 3PC-capable browser AND a return payload: the payload must win
	r := httptest.NewRequest("GET", "http://publisher.example/news?paf="+url.QueryEscape(string(raw)), nil)
	r.Header.Set("User-Agent", chromeUA)
	w := httptest.NewRecorder()

	data, redirected, err := b.ResolveOrRedirect(w, r)
	if err != nil || redirected {
		t.Fatalf("resolve: err=%v redirected=%v", err, redirected)
	}
	if len(data.Identifiers) != 1 || data.Identifiers[0].Value != "from-return-leg" {
		t.Errorf("return payload lost to the user-agent heuristic: %+v", data)
	}
}

func TestResolve3PCCapableBrowser(t *testing.T) {
	ex := newTestExchange(t)
	b := newTestBackend(t, ex)

	r := httptest.NewRequest("GET", "http://publisher.example/news", nil)
	r.Header.Set("User-Agent", chromeUA)
	w := httptest.NewRecorder()

	data, redirected, err := b.ResolveOrRedirect(w, r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if redirected {
		t.Fatal("3PC-capable browser redirected")
	}
	if data == nil || len(data.Identifiers) != 0 {
		t.Errorf("3PC path should yield an explicitly empty result, got %+v", data)
	}
}

func TestResolveRedirectsUnknownBrowser(t *testing.T) {
	ex := newTestExchange(t)
	b := newTestBackend(t, ex)

	r := httptest.NewRequest("GET", "http://publisher.example/news?section=sports", nil)
	r.Header.Set("User-Agent", firefoxUA)
	w := httptest.NewRecorder()

	data, redirected, err := b.ResolveOrRedirect(w, r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !redirected || data != nil {
		t.Fatalf("want redirect with no data, got redirected=%v data=%+v", redirected, data)
	}
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}

	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	if loc.Host != testOperator || loc.Path != "/v1/redirect/read" {
		t.Errorf("redirect target = %s", loc)
	}

	var wrapper domain.RedirectRequest[domain.GetIdsPrefsRequest]
	if err := json.Unmarshal([]byte(loc.Query().Get("paf")), &wrapper); err != nil {
		t.Fatalf("redirect wrapper does not decode: %v", err)
	}
	if wrapper.ReturnURL != "http://publisher.example/news?section=sports" {
		t.Errorf("returnUrl = %q, want the original page", wrapper.ReturnURL)
	}
	if wrapper.Request.Sender != testPublisher {
		t.Errorf("embedded request sender = %q", wrapper.Request.Sender)
	}
}

func TestResolveMetaRedirectMode(t *testing.T) {
	ex := newTestExchange(t)
	b, err := NewBackendClient(ex.client, RedirectModeMeta, time.Hour)
	if err != nil {
		t.Fatalf("new backend client: %v", err)
	}

	r := httptest.NewRequest("GET", "http://publisher.example/news", nil)
	r.Header.Set("User-Agent", firefoxUA)
	w := httptest.NewRecorder()

	_, redirected, err := b.ResolveOrRedirect(w, r)
	if err != nil || !redirected {
		t.Fatalf("resolve: err=%v redirected=%v", err, redirected)
	}
	if w.Code != http.StatusOK {
		t.Errorf("meta mode status = %d, want 200", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, `http-equiv="refresh"`) {
		t.Errorf("meta page missing refresh tag: %s", body)
	}
}
