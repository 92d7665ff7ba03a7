// Package httpx assembles the HTTP routing for the Recontor server.
package httpx

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/recontor/recontor/pkg/config"
	"github.com/recontor/recontor/pkg/server/api"
	v1 "github.com/recontor/recontor/pkg/server/api/v1"
)

// NewRouter builds the server mux: health endpoints always, the
// versioned scan API when enabled. Routing stays a thin pass-through to
// the handlers; no business logic lives here.
func NewRouter(cfg config.ServerConfig, deps *api.Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", HealthzHandler)
	mux.HandleFunc("GET /readyz", ReadyzHandler(deps))

	if cfg.APIEnabled && deps.Scans != nil {
		mux.HandleFunc("POST /api/v1/scans", v1.StartScanHandler(deps))
		mux.HandleFunc("GET /api/v1/scans", v1.ListScansHandler(deps))
		mux.HandleFunc("GET /api/v1/scans/{id}", v1.GetScanHandler(deps))
		mux.HandleFunc("GET /api/v1/scans/{id}/results", v1.GetScanResultsHandler(deps))
		mux.HandleFunc("POST /api/v1/scans/{id}/stop", v1.StopScanHandler(deps))
		mux.HandleFunc("POST /api/v1/scans/{id}/restart", v1.RestartScanHandler(deps))
		mux.HandleFunc("DELETE /api/v1/scans/{id}", v1.DeleteScanHandler(deps))
		log.Debug().Str("component", "httpx").Msg("scan API routes mounted")
	} else {
		log.Info().Str("component", "httpx").Msg("scan API disabled, serving health endpoints only")
	}

	return mux
}

// HealthzHandler reports liveness. Always OK while the process serves.
func HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ReadyzHandler reports readiness: storage initialized and dispatcher up.
func ReadyzHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if deps.Ready == nil || !deps.Ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
