package v1

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cast"

	"github.com/recontor/recontor/pkg/server/api"
	"github.com/recontor/recontor/pkg/storage"
)

// DTO Evolution Policy
// The request/response payloads handled in this file are part of the public API
// contract. To evolve them safely without breaking existing clients:
//
// 1) Additive-only changes
//    - You MAY add new optional fields
//    - You MAY NOT remove or rename existing fields
//    - Breaking changes require a new API version (v2)
//
// 2) Zero-value semantics
//    - New fields MUST have safe zero-value behavior
//    - Prefer `omitempty` for optional JSON fields to preserve old behavior
//    - Treat nil slices/maps/pointers as "absent" (distinct from empty) when applicable

// StartScanRequest is the body of POST /api/v1/scans.
type StartScanRequest struct {
	Domain string `json:"domain"`
	Mode   string `json:"mode"`
}

// StartScanResponse carries the identifier of the queued scan.
type StartScanResponse struct {
	ScanID string `json:"scan_id"`
}

// StopScanResponse reports whether a stop request reached a running scan.
type StopScanResponse struct {
	Stopped bool `json:"stopped"`
}

// StartScanHandler handles POST /api/v1/scans
//
// Validates the domain and mode, creates a pending scan record, and
// returns 202 with the new scan ID. The dispatcher picks the scan up
// asynchronously; clients poll GET /api/v1/scans/{id} for progress.
func StartScanHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartScanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "INVALID_BODY", "request body must be JSON with domain and mode")
			return
		}

		rec, err := deps.Scans.Start(r.Context(), req.Domain, storage.ScanMode(req.Mode))
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusAccepted, StartScanResponse{ScanID: rec.ID})
	}
}

// ListScansHandler handles GET /api/v1/scans
//
// Query parameters:
//   - status: Filter by status (pending, running, completed, failed, stopped)
//   - limit: Maximum number of results (default all, capped by config)
//
// Returns full scan records, newest first.
func ListScansHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := storage.ScanFilter{}

		if status := r.URL.Query().Get("status"); status != "" {
			st := storage.ScanStatus(status)
			if !st.IsValid() {
				api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "INVALID_QUERY", "unknown status filter")
				return
			}
			filter.Status = st
		}

		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			limit := cast.ToInt(limitStr)
			if limit <= 0 {
				api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "INVALID_QUERY", "limit must be a positive integer")
				return
			}
			filter.Limit = limit
		}
		if max := deps.Config.MaxListLimit; max > 0 && (filter.Limit == 0 || filter.Limit > max) {
			filter.Limit = max
		}

		records, err := deps.Scans.List(r.Context(), filter)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusOK, map[string]any{
			"scans": records,
			"total": len(records),
		})
	}
}

// GetScanHandler handles GET /api/v1/scans/{id}
//
// Returns the full scan record, including in-progress fields
// (progress_pct, current_module) while the scan is running.
// Returns 404 if the scan does not exist.
func GetScanHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "SCAN_ID_REQUIRED", "scan id is required")
			return
		}

		rec, err := deps.Scans.Get(r.Context(), id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusOK, rec)
	}
}

// GetScanResultsHandler handles GET /api/v1/scans/{id}/results
//
// Returns the completed record with results, findings, score, and grade.
// Responds 409 if the scan has not completed.
func GetScanResultsHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "SCAN_ID_REQUIRED", "scan id is required")
			return
		}

		rec, err := deps.Scans.Results(r.Context(), id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusOK, rec)
	}
}

// StopScanHandler handles POST /api/v1/scans/{id}/stop
//
// Stopping a scan that is not running is a no-op reporting stopped=false;
// the record is left unchanged.
func StopScanHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "SCAN_ID_REQUIRED", "scan id is required")
			return
		}

		stopped, err := deps.Scans.Stop(r.Context(), id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusOK, StopScanResponse{Stopped: stopped})
	}
}

// RestartScanHandler handles POST /api/v1/scans/{id}/restart
//
// Only valid from a terminal state; clears all result fields and returns
// the scan to the pending queue.
func RestartScanHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "SCAN_ID_REQUIRED", "scan id is required")
			return
		}

		rec, err := deps.Scans.Restart(r.Context(), id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusAccepted, StartScanResponse{ScanID: rec.ID})
	}
}

// DeleteScanHandler handles DELETE /api/v1/scans/{id}
//
// Removes the record and its output tree. Running scans must be stopped
// first.
func DeleteScanHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "SCAN_ID_REQUIRED", "scan id is required")
			return
		}

		if err := deps.Scans.Delete(r.Context(), id); err != nil {
			api.WriteError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
