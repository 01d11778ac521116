package handlers

import (
	"net/http"

	"github.com/eliraz-refael/go-imposters/internal/response"
)

// StatsHandler serves the per-imposter statistics.
type StatsHandler struct {
	Deps
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(deps Deps) *StatsHandler {
	return &StatsHandler{Deps: deps}
}

// Get handles GET /imposters/{id}/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := Param(r, "id")
	if _, err := h.Repo.Get(id); err != nil {
		writeMappedError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, h.Stats.Stats(id))
}

// Reset handles DELETE /imposters/{id}/stats.
func (h *StatsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id := Param(r, "id")
	if _, err := h.Repo.Get(id); err != nil {
		writeMappedError(w, err)
		return
	}

	h.Stats.Reset(id)
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{"reset": true})
}
