package server

import "net/http"

// RegistrableService is a self-contained unit that mounts its own routes on
// the server mux and declares the global middlewares it needs.
type RegistrableService interface {
	Register(mux *http.ServeMux)
	Middlewares() []func(http.Handler) http.Handler
}
