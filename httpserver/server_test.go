package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(&HTTPServerConfig{
		ListenAddr:    "127.0.0.1:0",
		Log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		DrainDuration: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLiveness(t *testing.T) {
	srv := newTestServer(t)
	rec := get(t, srv.getRouter(), "/livez")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}

func TestReadinessFollowsBootstrap(t *testing.T) {
	srv := newTestServer(t)
	router := srv.getRouter()

	// Not ready until bootstrap completes.
	rec := get(t, router, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv.SetReady(true)
	rec = get(t, router, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDrainUndrain(t *testing.T) {
	srv := newTestServer(t)
	router := srv.getRouter()
	srv.SetReady(true)

	rec := get(t, router, "/drain")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"draining"}`, rec.Body.String())

	rec = get(t, router, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(t, router, "/drain")
	assert.JSONEq(t, `{"status":"already draining"}`, rec.Body.String())

	rec = get(t, router, "/undrain")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, router, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}
