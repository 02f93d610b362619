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

package domain

// Message is the signed envelope common to every exchange with the
// operator: who sends, who receives, when it was built (unix milliseconds at
// the sender) and a signature over all other fields.
type Message struct {
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// SignedMessage is an envelope carrying a typed body. The signature also
// covers the body's canonical JSON form.
type SignedMessage[T any] struct {
	Message
	Body T `json:"body"`
}

// Concrete message kinds. Bodyless requests are plain envelopes; the kind
// only changes which endpoint they are sent to.
type (
	GetIdsPrefsRequest = Message
	GetNewIdRequest    = Message
	Get3PCRequest      = Message

	GetIdsPrefsResponse = SignedMessage[IdsAndOptionalPreferences]
	PostIdsPrefsRequest = SignedMessage[IdsAndPreferences]
	GetNewIdResponse    = SignedMessage[NewIdBody]
)

// NewIdBody is the body of a new-identifier response.
type NewIdBody struct {
	Identifiers []Identifier `json:"identifiers"`
}

// RedirectRequest wraps a signed request for the redirect transport,
// carrying the URL the operator must send the browser back to. Never
// persisted anywhere; it only ever lives in a query string.
type RedirectRequest[T any] struct {
	Request   T      `json:"request"`
	ReturnURL string `json:"returnUrl"`
}

// ErrorPayload is an error reported by the operator inside a redirect
// response.
type ErrorPayload struct {
	Message string `json:"message"`
}

// RedirectGetIdsPrefsResponse is what comes back from the operator after a
// redirect read. Exactly one of Response or Error is set.
type RedirectGetIdsPrefsResponse struct {
	Response *GetIdsPrefsResponse `json:"response,omitempty"`
	Error    *ErrorPayload        `json:"error,omitempty"`
}

// NewPrefs is the plaintext input of the sign-prefs proxy endpoint.
type NewPrefs struct {
	Identifiers []Identifier `json:"identifiers"`
	OptIn       bool         `json:"optIn"`
}
