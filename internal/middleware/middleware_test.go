package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainOrdersOutsideIn(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	handler := Chain(mark("outer"), mark("inner"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestChainEmptyIsIdentity(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	Chain()(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestSetHeaders(t *testing.T) {
	handler := SetHeaders(map[string]string{
		"Server":          "postern",
		"X-Frame-Options": "DENY",
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "postern", rec.Header().Get("Server"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSetHeadersInnerHandlerWins(t *testing.T) {
	handler := SetHeaders(map[string]string{"Server": "postern"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", "inner")
			w.WriteHeader(http.StatusNoContent)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "inner", rec.Header().Get("Server"))
}

func TestIndexRewrite(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Path
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	IndexRewrite(inner).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "/index.html", seen)
	// The caller's request must not be mutated.
	assert.Equal(t, "/", req.URL.Path)

	IndexRewrite(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/about.html", nil))
	assert.Equal(t, "/about.html", seen)
}
