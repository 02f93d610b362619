// Copyright 2025 Nguyen Nhat Nguyen
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

package middleware

import (
	"context"
	"io/fs"
	"net/http"
	"sync"

	"app/modules/middleware/problem"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	nethttpmiddleware "github.com/oapi-codegen/nethttp-middleware"
)

// ValidationErrorHandler handles OpenAPI validation errors and writes an appropriate response.
type ValidationErrorHandler func(ctx context.Context, err error, w http.ResponseWriter, r *http.Request, statusCode int)

// specCache holds cached OpenAPI specs keyed by file path.
var (
	specCacheMu sync.RWMutex
	specCache   = make(map[string]*specCacheEntry)
)

type specCacheEntry struct {
	doc *openapi3.T
	err error
}

func loadSpec(fsys fs.FS, specPath string) (*openapi3.T, error) {
	specCacheMu.RLock()
	if entry, ok := specCache[specPath]; ok {
		specCacheMu.RUnlock()
		return entry.doc, entry.err
	}
	specCacheMu.RUnlock()

	specCacheMu.Lock()
	defer specCacheMu.Unlock()

	if entry, ok := specCache[specPath]; ok {
		return entry.doc, entry.err
	}

	data, err := fs.ReadFile(fsys, specPath)
	if err != nil {
		specCache[specPath] = &specCacheEntry{err: err}
		return nil, err
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromData(data)
	specCache[specPath] = &specCacheEntry{doc: doc, err: err}
	return doc, err
}

// OpenAPIValidation creates a middleware that validates requests against an
// OpenAPI document loaded from fsys. Routes outside the document are
// rejected by the validator, so the document must cover every mounted route.
func OpenAPIValidation(specFS fs.FS, specPath string, errorHandler ValidationErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = problemValidationErrorHandler
	}

	spec, err := loadSpec(specFS, specPath)
	if err != nil {
		// A spec that fails to load is a deployment bug; surface it on
		// every request rather than silently skipping validation.
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				problem.Write(w, problem.Internal("request validation unavailable"))
			})
		}
	}

	opts := &nethttpmiddleware.Options{
		Options:               openapi3filter.Options{MultiError: true},
		DoNotValidateServers:  true,
		SilenceServersWarning: true,
		ErrorHandlerWithOpts: func(ctx context.Context, err error, w http.ResponseWriter, r *http.Request, eopts nethttpmiddleware.ErrorHandlerOpts) {
			status := eopts.StatusCode
			if status == 0 {
				status = http.StatusBadRequest
			}
			// Body schema violations should be 422
			if hint := InferBodyValidationStatus(err); hint == http.StatusUnprocessableEntity {
				status = http.StatusUnprocessableEntity
			}
			errorHandler(ctx, err, w, r, status)
		},
	}

	return nethttpmiddleware.OapiRequestValidatorWithOptions(spec, opts)
}

// problemValidationErrorHandler renders validation failures as RFC7807
// problems with one invalidParams entry per violation.
func problemValidationErrorHandler(_ context.Context, err error, w http.ResponseWriter, _ *http.Request, status int) {
	p := problem.New(
		problem.WithStatus(status),
		problem.WithTitle(http.StatusText(status)),
		problem.WithDetail("validation failed"),
	)
	for _, ve := range ExtractValidationErrors(err) {
		problem.WithInvalidParam(ve.Field, ve.Reason)(p)
	}
	problem.Write(w, p)
}
