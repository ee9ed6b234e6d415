package middleware

import "net/http"

// IndexRewrite rewrites the bare root path to /index.html so the file
// responders behind it pick up the default page. The original request is
// left untouched; the rewrite rides on a shallow clone.
func IndexRewrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			r2 := r.Clone(r.Context())
			r2.URL.Path = "/index.html"
			next.ServeHTTP(w, r2)
			return
		}
		next.ServeHTTP(w, r)
	})
}
