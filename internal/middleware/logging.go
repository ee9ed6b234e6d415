package middleware

import (
	"net/http"
	"net/textproto"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// redactedValue replaces header values hidden from the request log.
const redactedValue = "[redacted]"

// RequestLogger emits one "request started" and one "request completed"
// record per request. The completed record carries status, response size and
// duration. Headers named in redact keep their presence in the started
// record but lose their values; Authorization and Cookie style headers
// belong there.
func RequestLogger(logger logrus.FieldLogger, redact ...string) Middleware {
	hidden := make(map[string]struct{}, len(redact))
	for _, name := range redact {
		hidden[textproto.CanonicalMIMEHeaderKey(name)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"query":  r.URL.RawQuery,
				"remote": r.RemoteAddr,
			})
			entry.WithField("headers", redactHeaders(r.Header, hidden)).Info("request started")

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			entry.WithFields(logrus.Fields{
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start),
			}).Info("request completed")
		})
	}
}

func redactHeaders(header http.Header, hidden map[string]struct{}) map[string]string {
	out := make(map[string]string, len(header))
	for name, values := range header {
		if _, ok := hidden[name]; ok {
			out[name] = redactedValue
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}
