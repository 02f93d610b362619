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

// Package client is the publisher side of the identity-and-consent exchange:
// it builds signed requests toward the operator, verifies what comes back,
// and decides per incoming browser request whether identity is already known
// or a redirect handshake is needed.
package client

import (
	"fmt"
	"net/url"
	"strconv"

	"app/core/onekey/crypto"
	"app/core/onekey/domain"
	"app/core/onekey/endpoints"
	"app/modules/clock"
)

// Config is the immutable construction input shared by the operator client
// and the request builders. Everything here is process-wide and read-only
// after startup, so concurrent request handling needs no locking.
type Config struct {
	// Protocol is the operator scheme, https or http.
	Protocol string
	// OperatorHost is the trusted third-party operator domain.
	OperatorHost string
	// Sender is this publisher's declared domain in outbound envelopes.
	Sender string
	// PrivateKey is this publisher's PEM-encoded ECDSA signing key.
	PrivateKey string
	// Keys maps sender domains to their verification keys.
	Keys crypto.PublicKeyRegistry
	// Clock stamps outbound envelopes. Defaults to the real clock.
	Clock clock.Clock
}

// OperatorClient signs outbound messages, verifies inbound ones and exposes
// the per-kind URL builders.
type OperatorClient struct {
	protocol     string
	operatorHost string
	sender       string
	signer       *crypto.Signer
	keys         crypto.PublicKeyRegistry
	clk          clock.Clock

	Read      *RedirectURLBuilder[domain.GetIdsPrefsRequest]
	Write     *RedirectURLBuilder[domain.PostIdsPrefsRequest]
	NewId     *RestURLBuilder[domain.GetNewIdRequest]
	Verify3PC *RestURLBuilder[domain.Get3PCRequest]
}

func New(cfg Config) (*OperatorClient, error) {
	signer, err := crypto.NewSigner(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("operator client: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClockProvider()
	}
	return &OperatorClient{
		protocol:     cfg.Protocol,
		operatorHost: cfg.OperatorHost,
		sender:       cfg.Sender,
		signer:       signer,
		keys:         cfg.Keys,
		clk:          cfg.Clock,

		Read:      NewRedirectURLBuilder[domain.GetIdsPrefsRequest](cfg.Protocol, cfg.OperatorHost, endpoints.JSONRead, endpoints.RedirectRead),
		Write:     NewRedirectURLBuilder[domain.PostIdsPrefsRequest](cfg.Protocol, cfg.OperatorHost, endpoints.JSONWrite, endpoints.RedirectWrite),
		NewId:     NewRestURLBuilder[domain.GetNewIdRequest](cfg.Protocol, cfg.OperatorHost, endpoints.JSONNewID),
		Verify3PC: NewRestURLBuilder[domain.Get3PCRequest](cfg.Protocol, cfg.OperatorHost, endpoints.JSONVerify3PC),
	}, nil
}

// Sender returns this publisher's declared domain.
func (c *OperatorClient) Sender() string { return c.sender }

func (c *OperatorClient) now() int64 { return c.clk.Now().UnixMilli() }

// signMessage assembles and signs an envelope. The timestamp is always
// freshly generated, never cached, so there is no replay ambiguity on the
// outbound leg.
func (c *OperatorClient) signMessage(body any) (domain.Message, error) {
	ts := c.now()
	parts, err := crypto.MessageParts(c.sender, c.operatorHost, ts, body)
	if err != nil {
		return domain.Message{}, err
	}
	sig, err := c.signer.Sign(parts...)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		Sender:    c.sender,
		Receiver:  c.operatorHost,
		Timestamp: ts,
		Signature: sig,
	}, nil
}

// BuildGetIdsPrefsRequest builds a freshly-signed read envelope.
func (c *OperatorClient) BuildGetIdsPrefsRequest() (domain.GetIdsPrefsRequest, error) {
	return c.signMessage(nil)
}

// BuildGetNewIdRequest builds a freshly-signed new-identifier envelope.
func (c *OperatorClient) BuildGetNewIdRequest() (domain.GetNewIdRequest, error) {
	return c.signMessage(nil)
}

// BuildGet3PCRequest builds a freshly-signed third-party-cookie probe.
func (c *OperatorClient) BuildGet3PCRequest() (domain.Get3PCRequest, error) {
	return c.signMessage(nil)
}

// BuildPostIdsPrefsRequest builds and signs a write envelope. An empty
// payload fails here, before any signature or URL is produced: a write that
// would have no effect is a caller bug, not a no-op.
func (c *OperatorClient) BuildPostIdsPrefsRequest(payload domain.IdsAndPreferences) (domain.PostIdsPrefsRequest, error) {
	if payload.Empty() {
		return domain.PostIdsPrefsRequest{}, domain.ErrEmptyWritePayload
	}
	msg, err := c.signMessage(payload)
	if err != nil {
		return domain.PostIdsPrefsRequest{}, err
	}
	return domain.PostIdsPrefsRequest{Message: msg, Body: payload}, nil
}

// VerifyReadResponse checks an operator read response against its declared
// sender's registered key. Unknown senders can never verify.
func (c *OperatorClient) VerifyReadResponse(resp *domain.GetIdsPrefsResponse) error {
	pub := c.keys.Get(resp.Sender)
	if pub == nil {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSigner, resp.Sender)
	}
	parts, err := crypto.MessageParts(resp.Sender, resp.Receiver, resp.Timestamp, resp.Body)
	if err != nil {
		return err
	}
	if !crypto.Verify(pub, resp.Signature, parts...) {
		return fmt.Errorf("%w: sender %q", domain.ErrVerificationFailed, resp.Sender)
	}
	return nil
}

// BuildPreferences signs a consent value on behalf of a browser-side caller
// that holds no key of its own.
func (c *OperatorClient) BuildPreferences(optIn bool) (domain.Preferences, error) {
	ts := c.now()
	unsigned := domain.Preferences{
		Version: 0,
		Data:    domain.PreferencesData{UseBrowsingForPersonalization: optIn},
	}
	parts, err := crypto.DataParts(c.sender, ts, unsigned)
	if err != nil {
		return domain.Preferences{}, err
	}
	sig, err := c.signer.Sign(parts...)
	if err != nil {
		return domain.Preferences{}, err
	}
	unsigned.Source = &domain.Source{
		Domain:    c.sender,
		Timestamp: ts,
		Signature: sig,
	}
	return unsigned, nil
}

// VerifyPreferences checks a preferences value against its declared source
// domain's registered key.
func (c *OperatorClient) VerifyPreferences(prefs domain.Preferences) error {
	if prefs.Source == nil {
		return domain.ErrVerificationFailed
	}
	pub := c.keys.Get(prefs.Source.Domain)
	if pub == nil {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSigner, prefs.Source.Domain)
	}
	unsigned := prefs
	unsigned.Source = nil
	parts, err := crypto.DataParts(prefs.Source.Domain, prefs.Source.Timestamp, unsigned)
	if err != nil {
		return err
	}
	if !crypto.Verify(pub, prefs.Source.Signature, parts...) {
		return domain.ErrVerificationFailed
	}
	return nil
}

// SimpleReadURL is the flat-parameter variant of the REST read call: the
// envelope fields travel as individual query parameters instead of one JSON
// blob.
func (c *OperatorClient) SimpleReadURL() (*url.URL, error) {
	req, err := c.BuildGetIdsPrefsRequest()
	if err != nil {
		return nil, err
	}
	u := &url.URL{
		Scheme: c.protocol,
		Host:   c.operatorHost,
		Path:   endpoints.JSONRead,
	}
	q := u.Query()
	q.Set(endpoints.ParamSender, req.Sender)
	q.Set(endpoints.ParamReceiver, req.Receiver)
	q.Set(endpoints.ParamTimestamp, strconv.FormatInt(req.Timestamp, 10))
	q.Set(endpoints.ParamSignature, req.Signature)
	u.RawQuery = q.Encode()
	return u, nil
}
