package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fallthroughMarker is a sentinel next handler: tests assert on its status
// to prove a request was not handled by the responder under test.
var fallthroughMarker = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
})

func writeStaticSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>home</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.css"), []byte("body{margin:0}"), 0o644))
	return dir
}

func TestStaticFilesServesListedPaths(t *testing.T) {
	dir := writeStaticSite(t)
	handler := StaticFiles(dir, []string{"/index.html", "/style.css"})(fallthroughMarker)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "<html>home</html>", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/style.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
}

func TestStaticFilesHeadHasNoBody(t *testing.T) {
	dir := writeStaticSite(t)
	handler := StaticFiles(dir, []string{"/index.html"})(fallthroughMarker)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/index.html", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestStaticFilesFallsThrough(t *testing.T) {
	dir := writeStaticSite(t)
	handler := StaticFiles(dir, []string{"/index.html"})(fallthroughMarker)

	// Unlisted path, even though the file exists on disk.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/style.css", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	// Methods a file responder has no business answering.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/index.html", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestStaticFilesListedButMissing(t *testing.T) {
	handler := StaticFiles(t.TempDir(), []string{"/ghost.bin"})(fallthroughMarker)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ghost.bin", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmbeddedFilesServesFileSet(t *testing.T) {
	site := fstest.MapFS{
		"index.html":    &fstest.MapFile{Data: []byte("<html>embedded</html>")},
		"assets/app.js": &fstest.MapFile{Data: []byte("console.log(1)")},
	}
	handler := EmbeddedFiles(site)(fallthroughMarker)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>embedded</html>", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/app.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
}

func TestEmbeddedFilesFallsThrough(t *testing.T) {
	site := fstest.MapFS{"index.html": &fstest.MapFile{Data: []byte("x")}}
	handler := EmbeddedFiles(site)(fallthroughMarker)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/missing.html", nil),
		httptest.NewRequest(http.MethodGet, "/", nil),
		httptest.NewRequest(http.MethodPost, "/index.html", nil),
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTeapot, rec.Code, "expected fall-through for %s %s", req.Method, req.URL.Path)
	}
}

func TestIndexRewriteFeedsEmbeddedFiles(t *testing.T) {
	site := fstest.MapFS{"index.html": &fstest.MapFile{Data: []byte("<html>root</html>")}}
	handler := Chain(IndexRewrite, EmbeddedFiles(site))(fallthroughMarker)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>root</html>", rec.Body.String())
}
