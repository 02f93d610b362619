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

package rest

import (
	"errors"
	"net/http"

	"app/core/onekey/domain"
	"app/modules/middleware/problem"
)

// mandatoryQueryParam returns a query parameter or writes a 400 problem.
// The bool reports whether the caller may proceed.
func mandatoryQueryParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := r.URL.Query().Get(name)
	if value == "" {
		problem.Write(w, problem.BadRequest("missing mandatory query parameter: "+name))
		return "", false
	}
	return value, true
}

// writeDomainProblem maps a domain error onto the HTTP status taxonomy:
// client mistakes are 400s, failed verification is 403, an error the
// operator itself reported is a 502. Nothing is reinterpreted as "no data".
func writeDomainProblem(w http.ResponseWriter, err error) {
	var upstream *domain.UpstreamError
	switch {
	case errors.As(err, &upstream):
		problem.Write(w, problem.New(
			problem.WithStatus(http.StatusBadGateway),
			problem.WithTitle("Upstream Operator Error"),
			problem.WithDetail(upstream.Payload.Message),
		))
	case errors.Is(err, domain.ErrVerificationFailed), errors.Is(err, domain.ErrUnknownSigner):
		problem.Write(w, problem.New(
			problem.WithStatus(http.StatusForbidden),
			problem.WithTitle("Verification Failed"),
			problem.WithDetail(err.Error()),
		))
	case errors.Is(err, domain.ErrMalformedData),
		errors.Is(err, domain.ErrMissingReturnURL),
		errors.Is(err, domain.ErrEmptyWritePayload):
		problem.Write(w, problem.BadRequest(err.Error()))
	default:
		problem.Write(w, problem.Internal("exchange error"))
	}
}
