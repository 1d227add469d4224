package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amberhub/amber-core/internal/service"
)

// handleListServices returns the names of all registered services.
func (s *Server) handleListServices(w http.ResponseWriter, _ *http.Request) {
	if s.services == nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	writeJSON(w, http.StatusOK, s.services.List())
}

// serviceCallRequest is the request body for POST /services/{domain}/{service}.
type serviceCallRequest struct {
	Data   map[string]any `json:"data,omitempty"`
	Target []string       `json:"target,omitempty"`
}

// handleCallService invokes a registered service.
func (s *Server) handleCallService(w http.ResponseWriter, r *http.Request) {
	if s.services == nil {
		writeInternalError(w, "service registry not available")
		return
	}

	domain := chi.URLParam(r, "domain")
	svc := chi.URLParam(r, "service")

	// Body is optional for services that take no data
	var req serviceCallRequest
	json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck // empty body is fine

	err := s.services.Call(r.Context(), domain, svc, req.Data, req.Target)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, service.ErrServiceNotFound):
		writeNotFound(w, "service not found")
	case errors.Is(err, service.ErrInvalidCall):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		s.logger.Error("service call failed", "domain", domain, "service", svc, "error", err)
		writeInternalError(w, "service call failed")
	}
}
