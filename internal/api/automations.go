package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amberhub/amber-core/internal/automation"
)

// handleListAutomations returns all automations.
func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	list, err := s.automations.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list automations")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetAutomation returns one automation by ID.
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	a, err := s.automations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, automation.ErrAutomationNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		writeInternalError(w, "failed to read automation")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleCreateAutomation stores a new automation. The engine picks it
// up via the reload event and attaches its triggers if enabled.
func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	var a automation.Automation
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.automations.Create(r.Context(), &a); err != nil {
		switch {
		case errors.Is(err, automation.ErrInvalidAutomation),
			errors.Is(err, automation.ErrNoTriggers),
			errors.Is(err, automation.ErrNoActions):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, automation.ErrAutomationExists):
			writeConflict(w, "automation already exists")
		default:
			writeInternalError(w, "failed to create automation")
		}
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// handleUpdateAutomation replaces an automation's definition.
func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.automations.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, automation.ErrAutomationNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		writeInternalError(w, "failed to read automation")
		return
	}

	updated := existing.DeepCopy()
	if err := json.NewDecoder(r.Body).Decode(updated); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	updated.ID = id // path wins over body

	if err := s.automations.Update(r.Context(), updated); err != nil {
		switch {
		case errors.Is(err, automation.ErrInvalidAutomation),
			errors.Is(err, automation.ErrNoTriggers),
			errors.Is(err, automation.ErrNoActions):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, automation.ErrAutomationNotFound):
			writeNotFound(w, "automation not found")
		default:
			writeInternalError(w, "failed to update automation")
		}
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteAutomation removes an automation. Attached triggers are
// detached via the reload event.
func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	if err := s.automations.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, automation.ErrAutomationNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		writeInternalError(w, "failed to delete automation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// triggerRequest is the optional request body for POST /automations/{id}/trigger.
type triggerRequest struct {
	Variables     map[string]any `json:"variables,omitempty"`
	SkipCondition bool           `json:"skip_condition,omitempty"`
}

// handleTriggerAutomation runs an automation immediately, as if one of
// its triggers had fired.
func (s *Server) handleTriggerAutomation(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeInternalError(w, "automation engine not running")
		return
	}

	// Body is optional; an empty or absent body triggers with no variables
	var req triggerRequest
	json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck // empty body is fine

	err := s.engine.Trigger(r.Context(), chi.URLParam(r, "id"), req.Variables, req.SkipCondition)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "triggered"})
	case errors.Is(err, automation.ErrAutomationNotFound):
		writeNotFound(w, "automation not found")
	case errors.Is(err, automation.ErrAutomationDisabled):
		writeConflict(w, "automation is disabled")
	default:
		writeInternalError(w, "automation run failed")
	}
}

// handleEnableAutomation turns an automation on.
func (s *Server) handleEnableAutomation(w http.ResponseWriter, r *http.Request) {
	s.setAutomationEnabled(w, r, true)
}

// handleDisableAutomation turns an automation off.
func (s *Server) handleDisableAutomation(w http.ResponseWriter, r *http.Request) {
	s.setAutomationEnabled(w, r, false)
}

func (s *Server) setAutomationEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	err := s.automations.SetEnabled(r.Context(), chi.URLParam(r, "id"), enabled)
	if err != nil {
		if errors.Is(err, automation.ErrAutomationNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		writeInternalError(w, "failed to update automation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"enabled": enabled})
}
