package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"postern/internal/config"
	"postern/internal/middleware"
	"postern/internal/tunnel"
)

// buildHandler stacks the middleware chain: request logging and panic
// recovery on the outside, then response headers, then the CONNECT
// intercept, and finally the router with the WebSocket endpoint and the
// static site.
func buildHandler(cfg *config.Config, relay *tunnel.Relay, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	r.Get("/version", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]string{"version": Version})
	})
	if cfg.Tunnel.WebSocketPath != "" {
		r.Handle(cfg.Tunnel.WebSocketPath, relay.WebSocketHandler())
	}
	r.NotFound(siteHandler(cfg).ServeHTTP)

	chain := middleware.Chain(
		middleware.RequestLogger(logger, cfg.Log.Redact...),
		middleware.Recoverer(logger),
		middleware.SetHeaders(cfg.Headers),
		relay.Middleware,
	)
	return chain(r)
}

// siteHandler serves every path the router does not claim: the embedded
// site, an optional directory of extra files, and a plain 404 at the end.
func siteHandler(cfg *config.Config) http.Handler {
	var filters []middleware.Middleware
	if cfg.Static.IndexRewrite {
		filters = append(filters, middleware.IndexRewrite)
	}
	if cfg.Static.Embedded {
		filters = append(filters, middleware.EmbeddedFiles(Webroot()))
	}
	if cfg.Static.Dir != "" {
		filters = append(filters, middleware.StaticFiles(cfg.Static.Dir, cfg.Static.Paths))
	}
	return middleware.Chain(filters...)(http.NotFoundHandler())
}
