package middleware

import (
	"bytes"
	"io"
	"io/fs"
	"net/http"
	"path"
)

// EmbeddedFiles serves GET and HEAD requests from a compile-time-embedded
// file set (or any fs.FS). Paths not present in the file set fall through to
// the next handler.
func EmbeddedFiles(fsys fs.FS) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			name := path.Clean("/" + r.URL.Path)[1:]
			if name == "" {
				next.ServeHTTP(w, r)
				return
			}
			f, err := fsys.Open(name)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil || info.IsDir() {
				next.ServeHTTP(w, r)
				return
			}
			rs, ok := f.(io.ReadSeeker)
			if !ok {
				// fs.FS implementations without Seek get buffered; the
				// embedded site is small.
				data, err := io.ReadAll(f)
				if err != nil {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				rs = bytes.NewReader(data)
			}
			http.ServeContent(w, r, name, info.ModTime(), rs)
		})
	}
}
