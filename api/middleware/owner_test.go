package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketloop/cartengine/pkg/logger"
	"github.com/marketloop/cartengine/pkg/types"
)

func newOwnerEcho(t *testing.T) (http.Handler, *types.OwnerRef) {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	var captured types.OwnerRef
	handler := Owner(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, ok := OwnerFromContext(r.Context())
		require.True(t, ok)
		captured = owner
		w.WriteHeader(http.StatusNoContent)
	}))
	return handler, &captured
}

func TestOwnerResolvesUserHeader(t *testing.T) {
	t.Parallel()

	handler, captured := newOwnerEcho(t)
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", userID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, captured.IsUser())
	assert.Equal(t, "user:"+userID.String(), captured.Key())
}

func TestOwnerResolvesSessionHeader(t *testing.T) {
	t.Parallel()

	handler, captured := newOwnerEcho(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Session-Id", "sess-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, captured.IsSession())
	assert.Equal(t, "session:sess-42", captured.Key())
}

func TestOwnerRejectsBothHeaders(t *testing.T) {
	t.Parallel()

	handler, _ := newOwnerEcho(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", uuid.NewString())
	req.Header.Set("X-Session-Id", "sess-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOwnerRejectsMissingHeaders(t *testing.T) {
	t.Parallel()

	handler, _ := newOwnerEcho(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOwnerRejectsMalformedUserID(t *testing.T) {
	t.Parallel()

	handler, _ := newOwnerEcho(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "not-a-uuid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
