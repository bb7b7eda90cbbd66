// Package handler provides HTTP handlers for the REST API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/effective-security/xlog"

	"github.com/remiblancher/qcrl/internal/api/dto"
	apierrors "github.com/remiblancher/qcrl/internal/api/errors"
	"github.com/remiblancher/qcrl/internal/audit"
)

var logger = xlog.NewPackageLogger("github.com/remiblancher/qcrl", "handler")

// HealthHandler handles health and readiness endpoints.
type HealthHandler struct {
	version      string
	capabilities string
	ready        func() bool
}

// NewHealthHandler creates a new HealthHandler. ready reports whether the
// validation engine is wired; nil means always ready.
func NewHealthHandler(version, capabilities string, ready func() bool) *HealthHandler {
	return &HealthHandler{
		version:      version,
		capabilities: capabilities,
		ready:        ready,
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	auditStatus := "disabled"
	if audit.Enabled() {
		auditStatus = "enabled"
	}
	respondJSON(w, http.StatusOK, dto.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Services: map[string]string{
			"crl":          "ok",
			"capabilities": h.capabilities,
			"audit":        auditStatus,
		},
	})
}

// Ready handles GET /ready.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]bool{
		"server":    true,
		"validator": h.ready == nil || h.ready(),
	}

	allReady := true
	for _, ready := range checks {
		if !ready {
			allReady = false
			break
		}
	}

	status := http.StatusOK
	if !allReady {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, dto.ReadyResponse{Ready: allReady, Checks: checks})
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.KV(xlog.ERROR, "reason", "encode", "err", err.Error())
	}
}

// respondError writes an error response.
func respondError(w http.ResponseWriter, status int, apiErr *dto.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErr)
}

// handleServiceError maps a service error to its HTTP response.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := apierrors.MapError(err)
	level := xlog.WARNING
	if status >= http.StatusInternalServerError {
		level = xlog.ERROR
	}
	logger.ContextKV(r.Context(), level,
		"path", r.URL.Path,
		"status", status,
		"code", apiErr.Code,
		"err", err.Error())
	respondError(w, status, apiErr)
}

// decodeJSON reads the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("Invalid JSON request body"))
		return false
	}
	return true
}
