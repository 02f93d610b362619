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

package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
)

// partSeparator joins the covered fields before hashing. U+2063 (invisible
// separator) cannot appear in a domain, a decimal timestamp or compact JSON,
// so the concatenation is unambiguous.
const partSeparator = "⁣"

// Signer signs canonical part lists with this instance's private key.
type Signer struct {
	key *ecdsa.PrivateKey
}

// NewSigner parses the PEM private key. An unparseable key fails here, at
// construction, not per call.
func NewSigner(pemKey string) (*Signer, error) {
	key, err := ParsePrivateKey(pemKey)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key}, nil
}

// Sign hashes the joined parts and returns the base64 ECDSA signature.
func (s *Signer) Sign(parts ...string) (string, error) {
	digest := digest(parts)
	sig, err := ecdsa.SignASN1(rand.Reader, s.key, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks signature against the same canonical parts under pub.
// Malformed signatures report false, not an error: a forged input must be
// indistinguishable from a wrong one.
func Verify(pub *ecdsa.PublicKey, signature string, parts ...string) bool {
	if pub == nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	digest := digest(parts)
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}

func digest(parts []string) [sha256.Size]byte {
	return sha256.Sum256([]byte(strings.Join(parts, partSeparator)))
}

// MessageParts builds the canonical ordered field list covered by an
// envelope signature: sender, receiver, decimal timestamp, then the compact
// JSON of the body when one is present. encoding/json emits struct fields in
// declaration order, which gives the order-stable serialization both sides
// rely on.
func MessageParts(sender, receiver string, timestamp int64, body any) ([]string, error) {
	parts := []string{sender, receiver, strconv.FormatInt(timestamp, 10)}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		parts = append(parts, string(encoded))
	}
	return parts, nil
}

// DataParts builds the canonical field list covered by a data (preferences
// or identifier) signature: signer domain, decimal timestamp, then the
// compact JSON of the signed value with its source stripped.
func DataParts(domain string, timestamp int64, value any) ([]string, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return []string{domain, strconv.FormatInt(timestamp, 10), string(encoded)}, nil
}
