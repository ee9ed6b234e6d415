package middleware

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// StaticFiles serves the listed request paths from dir, with content types
// derived from the file extension. Requests outside the list, and methods
// other than GET and HEAD, fall through to the next handler. The fixed list
// doubles as the traversal guard: nothing outside it is ever opened.
func StaticFiles(dir string, paths []string) Middleware {
	listed := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		listed[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := listed[r.URL.Path]; !ok {
				next.ServeHTTP(w, r)
				return
			}
			name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
			serveFile(w, r, name)
		})
	}
}

// serveFile responds with one regular file. http.ServeContent is used
// instead of http.ServeFile because the latter redirects /index.html to /,
// which would loop with the index rewrite.
func serveFile(w http.ResponseWriter, r *http.Request, name string) {
	f, err := os.Open(name)
	if err != nil {
		// Listed but unreadable: that is this responder's path to own.
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
