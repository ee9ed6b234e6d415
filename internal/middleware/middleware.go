// Package middleware provides the composable request filters served around
// the tunnel: header injection, structured request logging, panic recovery,
// static and embedded file responders, and the default-index rewrite. Every
// filter has the chi middleware shape, so they mount on a chi router as well
// as on a plain handler chain.
package middleware

import "net/http"

// Middleware is a composable request filter.
type Middleware func(http.Handler) http.Handler

// Chain composes filters into one. The first filter listed becomes the
// outermost, so Chain(a, b)(h) serves a(b(h)).
func Chain(filters ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(filters) - 1; i >= 0; i-- {
			next = filters[i](next)
		}
		return next
	}
}
