package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recontor/recontor/pkg/config"
	"github.com/recontor/recontor/pkg/scanexec"
	"github.com/recontor/recontor/pkg/scans"
	"github.com/recontor/recontor/pkg/server/api"
	"github.com/recontor/recontor/pkg/server/httpx"
	"github.com/recontor/recontor/pkg/storage"
)

func newDeps(t *testing.T) *api.Deps {
	t.Helper()

	backend, err := storage.NewLocalBackend(context.Background(), &storage.Config{
		WorkspaceRoot: t.TempDir(),
	})
	require.NoError(t, err)
	require.NoError(t, backend.Initialize(context.Background()))

	runner := scanexec.NewRunner(backend, scanexec.Options{EngineBinary: "reconftw"})
	return &api.Deps{
		Scans:  scans.NewService(backend, runner),
		Config: api.DefaultConfig(),
		Ready:  &atomic.Bool{},
	}
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	deps := newDeps(t)
	router := httpx.NewRouter(config.DefaultServerConfig(), deps)

	rr := get(router, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "OK", rr.Body.String())

	// Not ready until the app flips the flag.
	rr = get(router, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	deps.Ready.Store(true)
	rr = get(router, "/readyz")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestAPIDisabledServesHealthOnly(t *testing.T) {
	deps := newDeps(t)
	cfg := config.DefaultServerConfig()
	cfg.APIEnabled = false
	router := httpx.NewRouter(cfg, deps)

	require.Equal(t, http.StatusOK, get(router, "/healthz").Code)
	require.Equal(t, http.StatusNotFound, get(router, "/api/v1/scans").Code)
}

func TestAPIRoutesMounted(t *testing.T) {
	deps := newDeps(t)
	router := httpx.NewRouter(config.DefaultServerConfig(), deps)

	rr := get(router, "/api/v1/scans")
	require.Equal(t, http.StatusOK, rr.Code)

	// Wrong method on a mounted pattern is rejected by the mux.
	req := httptest.NewRequest(http.MethodPut, "/api/v1/scans", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
