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

// Package crypto implements the signature scheme of the exchange protocol:
// ECDSA over P-256 with SHA-256 digests, signatures transported as standard
// base64. Keys travel as PEM.
package crypto

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var (
	ErrMissingKey = errors.New("missing key material")
	ErrBadKeyPEM  = errors.New("key is not valid PEM")
	ErrNotECDSA   = errors.New("key is not an ECDSA key")
)

// ParsePrivateKey reads a PEM-encoded ECDSA private key (PKCS#8 or SEC1).
// A key that fails to parse is a construction-time error for every component
// holding one; nothing in this package retries or degrades.
func ParsePrivateKey(pemKey string) (*ecdsa.PrivateKey, error) {
	if pemKey == "" {
		return nil, ErrMissingKey
	}
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, ErrBadKeyPEM
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, ErrNotECDSA
	}
	return key, nil
}

// ParsePublicKey reads a PEM-encoded (PKIX) ECDSA public key.
func ParsePublicKey(pemKey string) (*ecdsa.PublicKey, error) {
	if pemKey == "" {
		return nil, ErrMissingKey
	}
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, ErrBadKeyPEM
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, ErrNotECDSA
	}
	return key, nil
}

// PublicKeyRegistry maps a sender domain to its verification key. Loaded
// once at startup and shared read-only afterwards; an unknown sender simply
// has no entry and can never verify.
type PublicKeyRegistry map[string]*ecdsa.PublicKey

// Get returns the key registered for domain, or nil.
func (r PublicKeyRegistry) Get(domain string) *ecdsa.PublicKey {
	return r[domain]
}

// NewPublicKeyRegistry parses a domain → PEM mapping.
func NewPublicKeyRegistry(pems map[string]string) (PublicKeyRegistry, error) {
	reg := make(PublicKeyRegistry, len(pems))
	for domain, pemKey := range pems {
		key, err := ParsePublicKey(pemKey)
		if err != nil {
			return nil, fmt.Errorf("public key for %q: %w", domain, err)
		}
		reg[domain] = key
	}
	return reg, nil
}

// LoadPublicKeyRegistry reads a JSON file of the form {"domain": "PEM", ...}.
func LoadPublicKeyRegistry(path string) (PublicKeyRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key registry: %w", err)
	}
	var pems map[string]string
	if err := json.Unmarshal(data, &pems); err != nil {
		return nil, fmt.Errorf("decode key registry: %w", err)
	}
	return NewPublicKeyRegistry(pems)
}
