package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecovererRepliesWithErrorID(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body PanicResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
	_, err := uuid.FromString(body.ErrorID)
	assert.NoError(t, err, "error_id should be a UUID")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "request panicked", entry.Message)
	assert.Equal(t, body.ErrorID, entry.Data["error_id"])
	assert.Equal(t, "boom", entry.Data["panic"])
	assert.NotEmpty(t, entry.Data["stack"])
}

func TestRecovererLeavesHealthyRequestsAlone(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, "fine")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "fine", rec.Body.String())
	assert.Empty(t, hook.AllEntries())
}

func TestRecovererRepanicsAfterHeadSent(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "partial")
		panic("late failure")
	}))

	assert.PanicsWithValue(t, "late failure", func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	// The failure is still logged before the re-raise.
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "late failure", hook.LastEntry().Data["panic"])
}

func TestRecovererPassesAbortThrough(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Empty(t, hook.AllEntries())
}
