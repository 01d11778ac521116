package handlers

import (
	"net/http"

	"github.com/eliraz-refael/go-imposters/internal/models"
	"github.com/eliraz-refael/go-imposters/internal/requestlog"
	"github.com/eliraz-refael/go-imposters/internal/response"
)

// RequestsHandler serves the per-imposter request log.
type RequestsHandler struct {
	Deps
}

// NewRequestsHandler creates a requests handler.
func NewRequestsHandler(deps Deps) *RequestsHandler {
	return &RequestsHandler{Deps: deps}
}

// RequestsResponse is the body of GET /imposters/{id}/requests.
type RequestsResponse struct {
	Requests []models.RequestLogEntry `json:"requests"`
	Total    int                      `json:"total"`
}

// List handles GET /imposters/{id}/requests.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	id := Param(r, "id")
	if _, err := h.Repo.Get(id); err != nil {
		writeMappedError(w, err)
		return
	}

	q := r.URL.Query()
	entries := h.Logs.Entries(id, requestlog.Filter{
		Limit:  positiveIntQuery(r, "limit", requestlog.DefaultLimit),
		Method: q.Get("method"),
		Path:   q.Get("path"),
		Status: requestlog.ParseStatusFilter(q.Get("status")),
	})

	response.WriteJSON(w, http.StatusOK, RequestsResponse{
		Requests: entries,
		Total:    h.Logs.Count(id),
	})
}

// Clear handles DELETE /imposters/{id}/requests.
func (h *RequestsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id := Param(r, "id")
	if _, err := h.Repo.Get(id); err != nil {
		writeMappedError(w, err)
		return
	}

	h.Logs.Clear(id)
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
}
