package server

import (
	"net"
	"net/http"
	"strings"
)

// RedirectHandler sends every request to the TLS listener with a permanent
// redirect, preserving host, path and query. tlsAddr only contributes its
// port; the client keeps the host it asked for.
func RedirectHandler(tlsAddr string) http.Handler {
	_, port, err := net.SplitHostPort(tlsAddr)
	if err != nil {
		port = "443"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(r.Host); err == nil {
			host = h
		}
		var authority string
		if port == "443" {
			authority = host
			if strings.Contains(authority, ":") {
				authority = "[" + authority + "]"
			}
		} else {
			authority = net.JoinHostPort(host, port)
		}
		http.Redirect(w, r, "https://"+authority+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}
