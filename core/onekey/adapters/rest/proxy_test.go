package rest

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"app/core/onekey/client"
	"app/core/onekey/crypto"
	"app/core/onekey/domain"
)

const (
	testPublisher = "publisher.example"
	testOperator  = "operator.example"
)

type fixedClock struct{ at time.Time }

func (f fixedClock) Now() time.Time { return f.at }

type proxyFixture struct {
	mux            *http.ServeMux
	client         *client.OperatorClient
	operatorSigner *crypto.Signer
}

func keyPair(t *testing.T) (privPEM, pubPEM string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})),
		string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
}

func newProxyFixture(t *testing.T) *proxyFixture {
	t.Helper()

	pubPriv, pubPub := keyPair(t)
	opPriv, opPub := keyPair(t)

	keys, err := crypto.NewPublicKeyRegistry(map[string]string{
		testPublisher: pubPub,
		testOperator:  opPub,
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	c, err := client.New(client.Config{
		Protocol:     "https",
		OperatorHost: testOperator,
		Sender:       testPublisher,
		PrivateKey:   pubPriv,
		Keys:         keys,
		Clock:        fixedClock{at: time.UnixMilli(1700000000000)},
	})
	if err != nil {
		t.Fatalf("operator client: %v", err)
	}
	b, err := client.NewBackendClient(c, client.RedirectModeHTTP, 720*time.Hour)
	if err != nil {
		t.Fatalf("backend client: %v", err)
	}

	opSigner, err := crypto.NewSigner(opPriv)
	if err != nil {
		t.Fatalf("operator signer: %v", err)
	}

	mux := http.NewServeMux()
	NewProxyAPI(c, b).Register(mux)
	return &proxyFixture{mux: mux, client: c, operatorSigner: opSigner}
}

func (f *proxyFixture) operatorReadResponse(t *testing.T, body domain.IdsAndOptionalPreferences) domain.GetIdsPrefsResponse {
	t.Helper()
	ts := int64(1700000000000)
	parts, err := crypto.MessageParts(testOperator, testPublisher, ts, body)
	if err != nil {
		t.Fatalf("message parts: %v", err)
	}
	sig, err := f.operatorSigner.Sign(parts...)
	if err != nil {
		t.Fatalf("operator sign: %v", err)
	}
	return domain.GetIdsPrefsResponse{
		Message: domain.Message{Sender: testOperator, Receiver: testPublisher, Timestamp: ts, Signature: sig},
		Body:    body,
	}
}

func (f *proxyFixture) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, r)
	return w
}

func TestJSONReadForwardsSignedEnvelope(t *testing.T) {
	f := newProxyFixture(t)

	w := f.do(httptest.NewRequest("GET", "/paf-proxy/v1/json/read", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	if loc.Host != testOperator || loc.Path != "/v1/json/read" {
		t.Errorf("forward target = %s", loc)
	}

	var req domain.GetIdsPrefsRequest
	if err := json.Unmarshal([]byte(loc.Query().Get("paf")), &req); err != nil {
		t.Fatalf("embedded envelope does not decode: %v", err)
	}
	if req.Sender != testPublisher || req.Signature == "" {
		t.Errorf("envelope = %+v", req)
	}
}

func TestJSONWriteUses307(t *testing.T) {
	f := newProxyFixture(t)

	body := bytes.NewBufferString(`{"sender":"x"}`)
	w := f.do(httptest.NewRequest("POST", "/paf-proxy/v1/json/write", body))
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307 so the POST body survives", w.Code)
	}
	loc := w.Header().Get("Location")
	if loc != "https://operator.example/v1/json/write" {
		t.Errorf("forward target = %q", loc)
	}
}

func TestJSONVerify3PCAndNewId(t *testing.T) {
	f := newProxyFixture(t)

	w := f.do(httptest.NewRequest("GET", "/paf-proxy/v1/json/verify-3pc", nil))
	if w.Code != http.StatusFound {
		t.Errorf("verify-3pc status = %d, want 302", w.Code)
	}
	if got := w.Header().Get("Location"); got != "https://operator.example/v1/json/verify-3pc" {
		t.Errorf("verify-3pc target = %q", got)
	}

	w = f.do(httptest.NewRequest("GET", "/paf-proxy/v1/json/new-id", nil))
	if w.Code != http.StatusFound {
		t.Errorf("new-id status = %d, want 302", w.Code)
	}
	loc, _ := url.Parse(w.Header().Get("Location"))
	if loc.Path != "/v1/json/new-id" || loc.Query().Get("paf") == "" {
		t.Errorf("new-id target = %s", loc)
	}
}

func TestRedirectReadRequiresReturnURL(t *testing.T) {
	f := newProxyFixture(t)

	w := f.do(httptest.NewRequest("GET", "/paf-proxy/v1/redirect/read", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q, want problem document", ct)
	}
}

func TestRedirectReadBuildsOperatorURL(t *testing.T) {
	f := newProxyFixture(t)

	target := "/paf-proxy/v1/redirect/read?returnUrl=" + url.QueryEscape("https://publisher.example/news")
	w := f.do(httptest.NewRequest("GET", target, nil))
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}

	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	if loc.Path != "/v1/redirect/read" {
		t.Errorf("target path = %q", loc.Path)
	}
	var wrapper domain.RedirectRequest[domain.GetIdsPrefsRequest]
	if err := json.Unmarshal([]byte(loc.Query().Get("paf")), &wrapper); err != nil {
		t.Fatalf("wrapper does not decode: %v", err)
	}
	if wrapper.ReturnURL != "https://publisher.example/news" {
		t.Errorf("returnUrl = %q", wrapper.ReturnURL)
	}
}

func TestRedirectWriteSignsMessage(t *testing.T) {
	f := newProxyFixture(t)

	payload := `{"identifiers":[{"version":0,"type":"paf_browser_id","value":"abc"}]}`
	target := "/paf-proxy/v1/redirect/write?returnUrl=" +
		url.QueryEscape("https://publisher.example/news") +
		"&message=" + url.QueryEscape(payload)
	w := f.do(httptest.NewRequest("GET", target, nil))
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302, body %s", w.Code, w.Body)
	}

	loc, _ := url.Parse(w.Header().Get("Location"))
	if loc.Path != "/v1/redirect/write" {
		t.Errorf("target path = %q", loc.Path)
	}
	var wrapper domain.RedirectRequest[domain.PostIdsPrefsRequest]
	if err := json.Unmarshal([]byte(loc.Query().Get("paf")), &wrapper); err != nil {
		t.Fatalf("wrapper does not decode: %v", err)
	}
	if wrapper.Request.Signature == "" {
		t.Error("payload was forwarded unsigned")
	}
	if len(wrapper.Request.Body.Identifiers) != 1 {
		t.Errorf("body = %+v", wrapper.Request.Body)
	}
}

func TestRedirectWriteRejectsBadInput(t *testing.T) {
	f := newProxyFixture(t)

	// missing message
	target := "/paf-proxy/v1/redirect/write?returnUrl=" + url.QueryEscape("https://publisher.example/news")
	if w := f.do(httptest.NewRequest("GET", target, nil)); w.Code != http.StatusBadRequest {
		t.Errorf("missing message: status = %d, want 400", w.Code)
	}

	// empty payload: refuse before signing
	target += "&message=" + url.QueryEscape(`{"identifiers":[]}`)
	if w := f.do(httptest.NewRequest("GET", target, nil)); w.Code != http.StatusBadRequest {
		t.Errorf("empty payload: status = %d, want 400", w.Code)
	}
}

func TestVerifyRedirectRead(t *testing.T) {
	f := newProxyFixture(t)
	body := domain.IdsAndOptionalPreferences{Identifiers: []domain.Identifier{{Value: "id-1"}}}

	post := func(t *testing.T, payload any) *httptest.ResponseRecorder {
		t.Helper()
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return f.do(httptest.NewRequest("POST", "/paf-proxy/v1/proxy/verify-redirect-read", bytes.NewReader(raw)))
	}

	t.Run("valid", func(t *testing.T) {
		resp := f.operatorReadResponse(t, body)
		w := post(t, domain.RedirectGetIdsPrefsResponse{Response: &resp})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body)
		}
		var verified domain.GetIdsPrefsResponse
		if err := json.Unmarshal(w.Body.Bytes(), &verified); err != nil {
			t.Fatalf("response does not decode: %v", err)
		}
		if len(verified.Body.Identifiers) != 1 {
			t.Errorf("verified body = %+v", verified.Body)
		}
	})

	t.Run("upstream error", func(t *testing.T) {
		w := post(t, domain.RedirectGetIdsPrefsResponse{
			Error: &domain.ErrorPayload{Message: "operator failure"},
		})
		if w.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", w.Code)
		}
	})

	t.Run("forged signature", func(t *testing.T) {
		resp := f.operatorReadResponse(t, body)
		resp.Signature = "AAAA"
		w := post(t, domain.RedirectGetIdsPrefsResponse{Response: &resp})
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})

	t.Run("neither response nor error", func(t *testing.T) {
		w := post(t, domain.RedirectGetIdsPrefsResponse{})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestSignPrefs(t *testing.T) {
	f := newProxyFixture(t)

	raw := `{"identifiers":[],"optIn":true}`
	w := f.do(httptest.NewRequest("POST", "/paf-proxy/v1/proxy/sign-prefs", strings.NewReader(raw)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}

	var prefs domain.Preferences
	if err := json.Unmarshal(w.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("response does not decode: %v", err)
	}
	if !prefs.Data.UseBrowsingForPersonalization {
		t.Error("consent value not carried through")
	}
	if err := f.client.VerifyPreferences(prefs); err != nil {
		t.Errorf("signed preferences do not verify: %v", err)
	}
}

func TestSignWrite(t *testing.T) {
	f := newProxyFixture(t)

	raw := `{"identifiers":[{"version":0,"type":"paf_browser_id","value":"abc"}]}`
	w := f.do(httptest.NewRequest("POST", "/paf-proxy/v1/proxy/sign-write", strings.NewReader(raw)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}

	var req domain.PostIdsPrefsRequest
	if err := json.Unmarshal(w.Body.Bytes(), &req); err != nil {
		t.Fatalf("envelope does not decode: %v", err)
	}
	if req.Sender != testPublisher || req.Signature == "" {
		t.Errorf("envelope = %+v", req.Message)
	}

	// empty payload is rejected before signing
	w = f.do(httptest.NewRequest("POST", "/paf-proxy/v1/proxy/sign-write", strings.NewReader(`{"identifiers":[]}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty payload: status = %d, want 400", w.Code)
	}
}

func TestIdsPrefsResolution(t *testing.T) {
	f := newProxyFixture(t)

	// 3PC-capable browser: explicit empty answer, no redirect
	r := httptest.NewRequest("GET", "/paf-proxy/v1/ids-prefs", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0 AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36")
	w := f.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var data domain.IdsAndOptionalPreferences
	if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil {
		t.Fatalf("response does not decode: %v", err)
	}
	if len(data.Identifiers) != 0 {
		t.Errorf("identifiers = %+v", data.Identifiers)
	}

	// unknown browser: full redirect handshake
	r = httptest.NewRequest("GET", "/paf-proxy/v1/ids-prefs", nil)
	r.Header.Set("User-Agent", "curl/8.4.0")
	w = f.do(r)
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	loc, _ := url.Parse(w.Header().Get("Location"))
	if loc.Host != testOperator || loc.Path != "/v1/redirect/read" {
		t.Errorf("redirect target = %s", loc)
	}
}
