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
	"net/url"

	"app/core/onekey/domain"
	"app/core/onekey/endpoints"
)

// RestURLBuilder builds direct-call URLs toward one operator endpoint for
// one message kind T. Read-type endpoints embed the whole signed envelope as
// a single JSON query parameter; write-type endpoints pass a nil payload and
// POST the signed envelope as the request body instead.
type RestURLBuilder[T any] struct {
	protocol     string
	operatorHost string
	endpoint     string
}

func NewRestURLBuilder[T any](protocol, operatorHost, endpoint string) *RestURLBuilder[T] {
	return &RestURLBuilder[T]{
		protocol:     protocol,
		operatorHost: operatorHost,
		endpoint:     endpoint,
	}
}

// RestURL returns the operator URL for this kind. payload is embedded in the
// query string when non-nil.
func (b *RestURLBuilder[T]) RestURL(payload *T) (*url.URL, error) {
	if payload == nil {
		return b.operatorURL(b.endpoint, nil)
	}
	return b.operatorURL(b.endpoint, *payload)
}

func (b *RestURLBuilder[T]) operatorURL(endpoint string, payload any) (*url.URL, error) {
	u := &url.URL{
		Scheme: b.protocol,
		Host:   b.operatorHost,
		Path:   endpoint,
	}
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", endpoint, err)
		}
		q := u.Query()
		q.Set(endpoints.ParamData, string(encoded))
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// RedirectURLBuilder adds the redirect transport on top of the REST one, for
// the kinds the operator accepts via full-page navigation.
type RedirectURLBuilder[T any] struct {
	RestURLBuilder[T]
	redirectEndpoint string
}

func NewRedirectURLBuilder[T any](protocol, operatorHost, restEndpoint, redirectEndpoint string) *RedirectURLBuilder[T] {
	return &RedirectURLBuilder[T]{
		RestURLBuilder: RestURLBuilder[T]{
			protocol:     protocol,
			operatorHost: operatorHost,
			endpoint:     restEndpoint,
		},
		redirectEndpoint: redirectEndpoint,
	}
}

// ToRedirectRequest wraps an already-signed request with the URL the
// operator must send the browser back to. returnURL has to be absolute: the
// operator knows nothing about the publisher's routing.
func (b *RedirectURLBuilder[T]) ToRedirectRequest(request T, returnURL string) (domain.RedirectRequest[T], error) {
	if returnURL == "" {
		return domain.RedirectRequest[T]{}, domain.ErrMissingReturnURL
	}
	parsed, err := url.Parse(returnURL)
	if err != nil || !parsed.IsAbs() {
		return domain.RedirectRequest[T]{}, fmt.Errorf("%w: %q is not an absolute URL", domain.ErrMissingReturnURL, returnURL)
	}
	return domain.RedirectRequest[T]{Request: request, ReturnURL: returnURL}, nil
}

// RedirectURL JSON-encodes the whole redirect wrapper into one query
// parameter of the operator's redirect endpoint. Keeping the entire signed
// envelope in the URL is what makes the transport stateless: neither side
// holds a session to correlate request and response.
func (b *RedirectURLBuilder[T]) RedirectURL(redirectRequest domain.RedirectRequest[T]) (*url.URL, error) {
	return b.operatorURL(b.redirectEndpoint, redirectRequest)
}
