package server

import (
	"embed"
	"io/fs"
)

//go:embed webroot
var webrootFS embed.FS

// Webroot returns the embedded default site rooted at its index.
func Webroot() fs.FS {
	sub, err := fs.Sub(webrootFS, "webroot")
	if err != nil {
		// The directory name is fixed at compile time.
		panic(err)
	}
	return sub
}
