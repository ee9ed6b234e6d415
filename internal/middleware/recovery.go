package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/gofrs/uuid/v5"
	"github.com/sirupsen/logrus"
)

// PanicResponse is the JSON body sent when a panic is recovered before the
// response head went out. The identifier also appears on the log record so a
// client report can be matched to the stack trace.
type PanicResponse struct {
	Error   string `json:"error"`
	ErrorID string `json:"error_id"`
}

// Recoverer catches panics from the inner handler, logs them with a stack
// trace under a random identifier and answers a generic 500. When the
// response head already went out nothing correct can be sent anymore, so the
// panic is re-raised for the server to tear the connection down.
func Recoverer(logger logrus.FieldLogger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					// The server's own abort signal, not an application
					// failure.
					panic(rvr)
				}

				id, _ := uuid.NewV4()
				logger.WithFields(logrus.Fields{
					"error_id": id.String(),
					"method":   r.Method,
					"path":     r.URL.Path,
					"panic":    fmt.Sprint(rvr),
					"stack":    string(debug.Stack()),
				}).Error("request panicked")

				if ww.Status() != 0 {
					panic(rvr)
				}
				render.Status(r, http.StatusInternalServerError)
				render.JSON(ww, r, PanicResponse{
					Error:   "internal server error",
					ErrorID: id.String(),
				})
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
