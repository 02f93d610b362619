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

package services

import (
	"io/fs"
	"net/http"

	proxy_rest "app/core/onekey/adapters/rest"
	"app/modules/middleware"
	"app/modules/server"
)

var _ server.RegistrableService = (*OneKeyProxyService)(nil)

// OneKeyProxyService encapsulates the registration logic for the
// operator-client proxy: routes plus the middlewares the proxy requires
// (cross-origin allow-list first, then request validation).
type OneKeyProxyService struct {
	api            *proxy_rest.ProxyAPI
	allowedOrigins []string
	specFS         fs.FS
	specPath       string
}

func NewOneKeyProxyService(api *proxy_rest.ProxyAPI, allowedOrigins []string, specFS fs.FS, specPath string) *OneKeyProxyService {
	return &OneKeyProxyService{
		api:            api,
		allowedOrigins: allowedOrigins,
		specFS:         specFS,
		specPath:       specPath,
	}
}

// Register mounts the proxy routes.
func (s *OneKeyProxyService) Register(mux *http.ServeMux) {
	s.api.Register(mux)
}

// Middlewares returns the global middlewares the proxy requires. CORS runs
// before validation so a disallowed origin never reaches any request
// processing.
func (s *OneKeyProxyService) Middlewares() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.CORS(s.allowedOrigins),
		middleware.OpenAPIValidation(s.specFS, s.specPath, nil),
	}
}
