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
	"html/template"
	"net/http"
)

// RedirectMode selects how the browser is sent to the operator: a plain
// HTTP redirect, or a minimal HTML page carrying a meta refresh for
// publishers that must always answer 200 to the page request.
type RedirectMode string

const (
	RedirectModeHTTP RedirectMode = "http"
	RedirectModeMeta RedirectMode = "meta"
)

// Valid reports whether the mode is one a backend can serve. The protocol
// also defines a client-side javascript mode, which is not a backend
// concern and is rejected at construction.
func (m RedirectMode) Valid() bool {
	return m == RedirectModeHTTP || m == RedirectModeMeta
}

// HTTPRedirect sends a redirect with the given status. 302 for reads; 307
// for writes, because anything else lets intermediaries turn the POST into a
// GET and lose the body.
func HTTPRedirect(w http.ResponseWriter, r *http.Request, location string, status int) {
	http.Redirect(w, r, location, status)
}

var metaRedirectPage = template.Must(template.New("meta-redirect").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="0;url={{.}}">
<title>Redirecting</title>
</head>
<body>
<p>Redirecting… <a href="{{.}}">Continue</a></p>
</body>
</html>
`))

// MetaRedirect renders the meta-refresh page instead of a 3xx answer.
func MetaRedirect(w http.ResponseWriter, location string) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return metaRedirectPage.Execute(w, location)
}
