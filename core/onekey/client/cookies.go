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
	"net/url"
	"time"

	"app/core/onekey/domain"
)

// First-party cookie names holding the operator-issued values.
const (
	CookieIdentifiers = "paf_identifiers"
	CookiePreferences = "paf_preferences"
)

// NotKnown is the reserved cookie value written when the operator was asked
// and reported no data. It is deliberately distinct from an absent cookie:
// absent means "never asked", NotKnown means "asked, nothing there", and
// only the former triggers a new handshake.
const NotKnown = "NOT_KNOWN"

// CookieValue returns the raw value of a request cookie, or "".
func CookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetCookie writes a first-party exchange cookie.
func SetCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    url.QueryEscape(value),
		Expires:  expires,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
}

// FromCookieValues rebuilds the resolved result from raw cookie strings. The
// NotKnown sentinel and absent values both map to "no data" without error;
// anything else must be valid JSON.
func FromCookieValues(rawIds, rawPrefs string) (*domain.IdsAndOptionalPreferences, error) {
	out := &domain.IdsAndOptionalPreferences{Identifiers: []domain.Identifier{}}

	if unescaped, err := url.QueryUnescape(rawIds); err == nil {
		rawIds = unescaped
	}
	if unescaped, err := url.QueryUnescape(rawPrefs); err == nil {
		rawPrefs = unescaped
	}

	if rawIds != "" && rawIds != NotKnown {
		if err := json.Unmarshal([]byte(rawIds), &out.Identifiers); err != nil {
			return nil, fmt.Errorf("%w: identifiers cookie: %v", domain.ErrMalformedData, err)
		}
	}
	if rawPrefs != "" && rawPrefs != NotKnown {
		var prefs domain.Preferences
		if err := json.Unmarshal([]byte(rawPrefs), &prefs); err != nil {
			return nil, fmt.Errorf("%w: preferences cookie: %v", domain.ErrMalformedData, err)
		}
		out.Preferences = &prefs
	}
	return out, nil
}

// saveValueOrUnknown persists an operator-delivered value, or the NotKnown
// sentinel when the operator had nothing, so the next request short-circuits
// either way.
func saveValueOrUnknown(w http.ResponseWriter, name string, value any, expires time.Time) error {
	stored := NotKnown
	if value != nil {
		encoded, err := json.Marshal(value)
		if err != nil {
			return err
		}
		stored = string(encoded)
	}
	slog.Debug("saving exchange cookie",
		slog.String("cookie", name),
		slog.Bool("known", stored != NotKnown),
	)
	SetCookie(w, name, stored, expires)
	return nil
}

// RequestURL reconstructs the absolute URL of an incoming request, for use
// as the returnUrl of an outbound redirect.
func RequestURL(r *http.Request) *url.URL {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	u := *r.URL
	u.Scheme = scheme
	u.Host = r.Host
	return &u
}
