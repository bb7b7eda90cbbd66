package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/remiblancher/qcrl/internal/api/dto"
	apierrors "github.com/remiblancher/qcrl/internal/api/errors"
	"github.com/remiblancher/qcrl/internal/api/service"
)

// CRLHandler handles CRL-related HTTP requests.
type CRLHandler struct {
	service *service.CRLService
}

// NewCRLHandler creates a new CRLHandler.
func NewCRLHandler(crlService *service.CRLService) *CRLHandler {
	return &CRLHandler{service: crlService}
}

// Validate handles POST /api/v1/crl/validate
func (h *CRLHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req dto.CRLValidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Validate(r.Context(), &req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Lookup handles POST /api/v1/crl/{id}/lookup
func (h *CRLHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	crlID := chi.URLParam(r, "id")
	if crlID == "" {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("CRL ID is required"))
		return
	}

	var req dto.CRLLookupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Lookup(r.Context(), crlID, &req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Inspect handles POST /api/v1/crl/inspect
func (h *CRLHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	var req dto.CRLInspectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Inspect(r.Context(), &req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
