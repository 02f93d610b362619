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

package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"app/core/onekey/domain"
	"app/core/onekey/endpoints"
)

// BackendClient runs the per-request resolution flow for a publisher page.
// It owns no state of its own: everything durable lives in the browser's
// cookies, everything else is the read-only client configuration.
type BackendClient struct {
	client    *OperatorClient
	mode      RedirectMode
	cookieTTL time.Duration
}

// NewBackendClient wires the resolution flow. An unsupported redirect mode
// is a construction-time error; it must never surface per request.
func NewBackendClient(client *OperatorClient, mode RedirectMode, cookieTTL time.Duration) (*BackendClient, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("backend client: unsupported redirect mode %q", mode)
	}
	if cookieTTL <= 0 {
		return nil, fmt.Errorf("backend client: cookie TTL must be positive")
	}
	return &BackendClient{client: client, mode: mode, cookieTTL: cookieTTL}, nil
}

// ResolveOrRedirect decides, for one incoming browser request, which of the
// four resolution paths applies. Evaluated strictly in order, first match
// wins:
//
//  1. both exchange cookies present → return them, no network interaction
//  2. operator redirect payload in the query string → verify, persist, return
//  3. no data, browser family known to support 3PC → explicitly empty result
//  4. otherwise → instruct the browser to redirect to the operator
//
// redirected is true only on path 4, in which case nothing but the redirect
// (or the meta page) has been written and the caller must not serve content.
// A verification failure on path 2 aborts the request; it never degrades
// into paths 3 or 4.
func (b *BackendClient) ResolveOrRedirect(w http.ResponseWriter, r *http.Request) (data *domain.IdsAndOptionalPreferences, redirected bool, err error) {
	ctx := r.Context()

	// 1. Complete first-party cookies?
	rawIds := CookieValue(r, CookieIdentifiers)
	rawPrefs := CookieValue(r, CookiePreferences)
	if rawIds != "" && rawPrefs != "" {
		slog.DebugContext(ctx, "resolution: exchange cookies found")
		found, err := FromCookieValues(rawIds, rawPrefs)
		if err != nil {
			return nil, false, err
		}
		return found, false, nil
	}

	// 2. Redirected back from the operator? Takes precedence over any
	// user-agent heuristic, even when one cookie of the pair is present.
	if raw := r.URL.Query().Get(endpoints.ParamData); raw != "" {
		slog.DebugContext(ctx, "resolution: operator redirect payload present")
		found, err := b.acceptOperatorReturn(w, raw)
		if err != nil {
			return nil, false, err
		}
		return found, false, nil
	}

	// 3. Browser known to keep third-party cookies working?
	if KnownToSupport3PC(r.UserAgent()) {
		slog.DebugContext(ctx, "resolution: browser supports 3PC, no redirect needed")
		return &domain.IdsAndOptionalPreferences{Identifiers: []domain.Identifier{}}, false, nil
	}

	// 4. Full redirect handshake.
	slog.DebugContext(ctx, "resolution: redirecting to operator")
	if err := b.redirectToOperator(w, r); err != nil {
		return nil, false, err
	}
	return nil, true, nil
}

// acceptOperatorReturn validates and persists a redirect-carried operator
// response. An upstream error is propagated unchanged, without attempting
// verification.
func (b *BackendClient) acceptOperatorReturn(w http.ResponseWriter, raw string) (*domain.IdsAndOptionalPreferences, error) {
	var uriData domain.RedirectGetIdsPrefsResponse
	if err := json.Unmarshal([]byte(raw), &uriData); err != nil {
		return nil, fmt.Errorf("%w: redirect payload: %v", domain.ErrMalformedData, err)
	}
	if uriData.Response == nil {
		if uriData.Error != nil {
			return nil, &domain.UpstreamError{Payload: *uriData.Error}
		}
		return nil, fmt.Errorf("%w: redirect payload has neither response nor error", domain.ErrMalformedData)
	}

	if err := b.client.VerifyReadResponse(uriData.Response); err != nil {
		return nil, err
	}

	body := uriData.Response.Body
	expires := b.client.clk.Now().Add(b.cookieTTL)

	persisted := domain.PersistedIdentifiers(body.Identifiers)
	var idsValue any
	if len(persisted) > 0 {
		idsValue = persisted
	}
	if err := saveValueOrUnknown(w, CookieIdentifiers, idsValue, expires); err != nil {
		return nil, err
	}
	var prefsValue any
	if body.Preferences != nil {
		prefsValue = body.Preferences
	}
	if err := saveValueOrUnknown(w, CookiePreferences, prefsValue, expires); err != nil {
		return nil, err
	}

	return &domain.IdsAndOptionalPreferences{
		Identifiers: persisted,
		Preferences: body.Preferences,
	}, nil
}

func (b *BackendClient) redirectToOperator(w http.ResponseWriter, r *http.Request) error {
	request, err := b.client.BuildGetIdsPrefsRequest()
	if err != nil {
		return err
	}
	redirectRequest, err := b.client.Read.ToRedirectRequest(request, RequestURL(r).String())
	if err != nil {
		return err
	}
	redirectURL, err := b.client.Read.RedirectURL(redirectRequest)
	if err != nil {
		return err
	}

	switch b.mode {
	case RedirectModeHTTP:
		HTTPRedirect(w, r, redirectURL.String(), http.StatusFound)
		return nil
	case RedirectModeMeta:
		return MetaRedirect(w, redirectURL.String())
	default:
		// unreachable, modes are validated at construction
		return fmt.Errorf("unsupported redirect mode %q", b.mode)
	}
}
