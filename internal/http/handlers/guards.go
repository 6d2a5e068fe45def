package handlers

import "net/http"

// Guards are the middlewares handlers attach to their routes.
type Guards struct {
	RateLimit    func(http.Handler) http.Handler
	Authenticate func(http.Handler) http.Handler
	// OptionalAuth authenticates when a token is sent and passes anonymous requests through.
	OptionalAuth func(http.Handler) http.Handler
	Admin        func(http.Handler) http.Handler
}
