// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rest is the HTTP adapter of the operator-client proxy: it
// translates publisher-site requests into operator-bound REST or redirect
// URLs and exposes the sign/verify primitives to browser-side callers that
// must never hold the private key.
package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"app/core/onekey/client"
	"app/core/onekey/domain"
	"app/core/onekey/endpoints"
	"app/modules/api/serde"
	"app/modules/middleware/problem"
)

// ProxyAPI holds the operator client and the resolution flow. Handlers are
// side-effect-free beyond forwarding; all state lives in the browser.
type ProxyAPI struct {
	client  *client.OperatorClient
	backend *client.BackendClient
}

func NewProxyAPI(c *client.OperatorClient, b *client.BackendClient) *ProxyAPI {
	return &ProxyAPI{client: c, backend: b}
}

// Register mounts every proxy route under endpoints.ProxyBasePath.
func (p *ProxyAPI) Register(mux *http.ServeMux) {
	base := endpoints.ProxyBasePath
	mux.HandleFunc("GET "+base+endpoints.JSONRead, p.JSONRead)
	mux.HandleFunc("POST "+base+endpoints.JSONWrite, p.JSONWrite)
	mux.HandleFunc("GET "+base+endpoints.JSONVerify3PC, p.JSONVerify3PC)
	mux.HandleFunc("GET "+base+endpoints.JSONNewID, p.JSONNewId)
	mux.HandleFunc("GET "+base+endpoints.RedirectRead, p.RedirectRead)
	mux.HandleFunc("GET "+base+endpoints.RedirectWrite, p.RedirectWrite)
	mux.HandleFunc("POST "+base+endpoints.ProxyVerifyRedirectRead, p.VerifyRedirectRead)
	mux.HandleFunc("POST "+base+endpoints.ProxySignPrefs, p.SignPrefs)
	mux.HandleFunc("POST "+base+endpoints.ProxySignWrite, p.SignWrite)
	mux.HandleFunc("GET "+base+endpoints.ProxyIdsPrefs, p.IdsPrefs)
}

// JSONRead signs a fresh read envelope and forwards the browser to the
// operator's REST read endpoint.
func (p *ProxyAPI) JSONRead(w http.ResponseWriter, r *http.Request) {
	request, err := p.client.BuildGetIdsPrefsRequest()
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	u, err := p.client.Read.RestURL(&request)
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	client.HTTPRedirect(w, r, u.String(), http.StatusFound)
}

// JSONWrite forwards a write whose body was already signed via SignWrite.
// 307 is mandatory: a 302 would let the browser replay the POST as a GET
// and drop the payload on the way to the operator.
func (p *ProxyAPI) JSONWrite(w http.ResponseWriter, r *http.Request) {
	u, err := p.client.Write.RestURL(nil)
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	client.HTTPRedirect(w, r, u.String(), http.StatusTemporaryRedirect)
}

// JSONVerify3PC forwards the third-party-cookie support probe.
func (p *ProxyAPI) JSONVerify3PC(w http.ResponseWriter, r *http.Request) {
	u, err := p.client.Verify3PC.RestURL(nil)
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	client.HTTPRedirect(w, r, u.String(), http.StatusFound)
}

// JSONNewId signs a new-identifier request and forwards it.
func (p *ProxyAPI) JSONNewId(w http.ResponseWriter, r *http.Request) {
	request, err := p.client.BuildGetNewIdRequest()
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	u, err := p.client.NewId.RestURL(&request)
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	client.HTTPRedirect(w, r, u.String(), http.StatusFound)
}

// RedirectRead builds the full-page redirect toward the operator's read
// endpoint. returnUrl is mandatory; its absence is a client error reported
// before any signing work.
func (p *ProxyAPI) RedirectRead(w http.ResponseWriter, r *http.Request) {
	returnURL, ok := mandatoryQueryParam(w, r, endpoints.ParamReturnURL)
	if !ok {
		return
	}
	request, err := p.client.BuildGetIdsPrefsRequest()
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	redirectRequest, err := p.client.Read.ToRedirectRequest(request, returnURL)
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	u, err := p.client.Read.RedirectURL(redirectRequest)
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	client.HTTPRedirect(w, r, u.String(), http.StatusFound)
}

// RedirectWrite signs the plaintext payload carried in the message query
// parameter and builds the operator-bound write redirect.
func (p *ProxyAPI) RedirectWrite(w http.ResponseWriter, r *http.Request) {
	returnURL, ok := mandatoryQueryParam(w, r, endpoints.ParamReturnURL)
	if !ok {
		return
	}
	rawMessage, ok := mandatoryQueryParam(w, r, endpoints.ParamMessage)
	if !ok {
		return
	}
	var payload domain.IdsAndPreferences
	if err := json.Unmarshal([]byte(rawMessage), &payload); err != nil {
		problem.Write(w, problem.BadRequest("malformed message parameter"))
		return
	}
	request, err := p.client.BuildPostIdsPrefsRequest(payload)
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	redirectRequest, err := p.client.Write.ToRedirectRequest(request, returnURL)
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	u, err := p.client.Write.RedirectURL(redirectRequest)
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	client.HTTPRedirect(w, r, u.String(), http.StatusFound)
}

// VerifyRedirectRead validates an operator redirect response on behalf of a
// browser-side caller: an upstream error propagates as such, a bad signature
// is an explicit failure payload, and only a verified body is returned.
func (p *ProxyAPI) VerifyRedirectRead(w http.ResponseWriter, r *http.Request) {
	var message domain.RedirectGetIdsPrefsResponse
	if err := serde.ParseJsonBody(r.Body, &message); err != nil {
		problem.Write(w, problem.BadRequest("malformed redirect response payload"))
		return
	}
	if message.Response == nil {
		if message.Error != nil {
			writeDomainProblem(w, &domain.UpstreamError{Payload: *message.Error})
			return
		}
		problem.Write(w, problem.BadRequest("redirect response carries neither response nor error"))
		return
	}
	if err := p.client.VerifyReadResponse(message.Response); err != nil {
		slog.WarnContext(r.Context(), "redirect read verification failed",
			slog.String("sender", message.Response.Sender),
			slog.Any("error", err),
		)
		writeDomainProblem(w, err)
		return
	}
	serde.WriteJSON(w, http.StatusOK, message.Response)
}

// SignPrefs signs a consent value with the publisher key so the browser
// never holds it.
func (p *ProxyAPI) SignPrefs(w http.ResponseWriter, r *http.Request) {
	var input domain.NewPrefs
	if err := serde.ParseJsonBody(r.Body, &input); err != nil {
		problem.Write(w, problem.BadRequest("malformed sign-prefs payload"))
		return
	}
	prefs, err := p.client.BuildPreferences(input.OptIn)
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	serde.WriteJSON(w, http.StatusOK, prefs)
}

// SignWrite turns an unsigned identifiers+preferences payload into a signed
// write envelope the caller can forward through JSONWrite or RedirectWrite.
func (p *ProxyAPI) SignWrite(w http.ResponseWriter, r *http.Request) {
	var payload domain.IdsAndPreferences
	if err := serde.ParseJsonBody(r.Body, &payload); err != nil {
		problem.Write(w, problem.BadRequest("malformed sign-write payload"))
		return
	}
	request, err := p.client.BuildPostIdsPrefsRequest(payload)
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	serde.WriteJSON(w, http.StatusOK, request)
}

// IdsPrefs runs the resolution flow for the publisher's own pages: 200 with
// the resolved data, or the redirect instruction, never both.
func (p *ProxyAPI) IdsPrefs(w http.ResponseWriter, r *http.Request) {
	data, redirected, err := p.backend.ResolveOrRedirect(w, r)
	if err != nil {
		writeDomainProblem(w, err)
		return
	}
	if redirected {
		return
	}
	serde.WriteJSON(w, http.StatusOK, data)
}
