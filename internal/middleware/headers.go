package middleware

import "net/http"

// SetHeaders sets every given header on the response before the inner
// handler runs. Values already present are overwritten, values the inner
// handler sets afterwards win.
func SetHeaders(headers map[string]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for name, value := range headers {
				w.Header().Set(name, value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
