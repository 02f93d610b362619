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

// Package endpoints pins the operator and proxy route paths plus the query
// string parameter names of the cross-domain exchange. These are protocol
// constants: changing any of them breaks interop with the operator.
package endpoints

// Operator endpoints, rooted at {protocol}://{operatorHost}.
//
// The redirect family is followed by a full browser navigation and answers
// with another redirect back to returnUrl. The json family is called
// directly (fetch/XHR) and answers with a JSON body.
const (
	RedirectRead  = "/v1/redirect/read"
	RedirectWrite = "/v1/redirect/write"

	JSONRead      = "/v1/json/read"
	JSONWrite     = "/v1/json/write"
	JSONVerify3PC = "/v1/json/verify-3pc"
	JSONNewID     = "/v1/json/new-id"
)

// Proxy endpoints mounted by this service under ProxyBasePath. The json and
// redirect groups mirror the operator routes; the proxy group exposes
// sign/verify primitives so browser-side code never holds the private key.
const (
	ProxyBasePath = "/paf-proxy"

	ProxyVerifyRedirectRead = "/v1/proxy/verify-redirect-read"
	ProxySignPrefs          = "/v1/proxy/sign-prefs"
	ProxySignWrite          = "/v1/proxy/sign-write"

	// Resolution endpoint for the publisher's own pages: runs the full
	// cookie/redirect/user-agent decision flow.
	ProxyIdsPrefs = "/v1/ids-prefs"
)

// Query string parameter names.
const (
	// ParamData carries a whole JSON-encoded message or redirect wrapper.
	ParamData = "paf"

	// ParamReturnURL is the absolute URL the operator redirects back to.
	ParamReturnURL = "returnUrl"

	// ParamMessage carries the plaintext payload a proxy endpoint signs or
	// forwards on behalf of the caller.
	ParamMessage = "message"

	// Flat fields of the simple read REST call.
	ParamSender    = "sender"
	ParamReceiver  = "receiver"
	ParamTimestamp = "timestamp"
	ParamSignature = "signature"
)
