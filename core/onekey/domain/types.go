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

// Package domain holds the wire model of the identity-and-consent exchange.
// Field names and JSON tags are fixed by the cross-domain protocol; the
// operator parses these documents byte for byte before verifying signatures.
package domain

// Source identifies who signed a piece of data and when. The signature
// covers every sibling field of the signed value except itself.
type Source struct {
	Domain    string `json:"domain"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature,omitempty"`
}

// Identifier is one pseudonymous user id issued by the operator.
//
// A nil Persisted means the operator intends the browser to retain the id
// across sessions; opting out of persistence must be explicit (false).
type Identifier struct {
	Version   int     `json:"version"`
	Type      string  `json:"type"`
	Value     string  `json:"value"`
	Persisted *bool   `json:"persisted,omitempty"`
	Source    *Source `json:"source,omitempty"`
}

// PreferencesData is the consent payload itself.
type PreferencesData struct {
	UseBrowsingForPersonalization bool `json:"use_browsing_for_personalization"`
}

// Preferences is the versioned, signed consent value.
type Preferences struct {
	Version int             `json:"version"`
	Data    PreferencesData `json:"data"`
	Source  *Source         `json:"source,omitempty"`
}

// IdsAndOptionalPreferences is what resolution hands back to the calling
// page. A user may carry identifiers without ever having answered a consent
// prompt, so Preferences stays optional.
type IdsAndOptionalPreferences struct {
	Identifiers []Identifier `json:"identifiers"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// IdsAndPreferences is the write-direction payload. The identifier list may
// be empty when only preferences are being written, but a payload with
// neither is rejected before any signing happens.
type IdsAndPreferences struct {
	Identifiers []Identifier `json:"identifiers"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// Empty reports whether there is nothing to write.
func (p IdsAndPreferences) Empty() bool {
	return len(p.Identifiers) == 0 && p.Preferences == nil
}
