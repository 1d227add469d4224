package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/amberhub/amber-core/internal/state"
)

// handleListStates returns all entity states, sorted by entity ID.
// An optional ?domain= query filters to one domain.
func (s *Server) handleListStates(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")

	all := s.states.All()
	out := make([]*state.EntityState, 0, len(all))
	for _, es := range all {
		if domain != "" && state.Domain(es.EntityID) != domain {
			continue
		}
		out = append(out, es)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })

	writeJSON(w, http.StatusOK, out)
}

// handleGetState returns one entity's state.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")

	es, err := s.states.Get(entityID)
	if err != nil {
		if errors.Is(err, state.ErrEntityNotFound) {
			writeNotFound(w, "entity not found")
			return
		}
		writeInternalError(w, "failed to read state")
		return
	}

	writeJSON(w, http.StatusOK, es)
}
