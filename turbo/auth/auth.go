// Package auth defines the pluggable authentication contract used by routes
// registered with the turbo router.
package auth

import "net/http"

// Authenticator wraps a handler with request authentication. Implementations
// reject unauthenticated requests before the wrapped handler runs.
type Authenticator interface {
	Apply(handler http.Handler) http.Handler
}
