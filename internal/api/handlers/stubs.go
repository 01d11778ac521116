package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/eliraz-refael/go-imposters/internal/metrics"
	"github.com/eliraz-refael/go-imposters/internal/models"
	"github.com/eliraz-refael/go-imposters/internal/response"
)

// StubsHandler handles stub CRUD under one imposter.
type StubsHandler struct {
	Deps
}

// NewStubsHandler creates a stubs handler.
func NewStubsHandler(deps Deps) *StubsHandler {
	return &StubsHandler{Deps: deps}
}

// StubsResponse is the body of GET /imposters/{id}/stubs.
type StubsResponse struct {
	Stubs []models.Stub `json:"stubs"`
}

// List handles GET /imposters/{id}/stubs.
func (h *StubsHandler) List(w http.ResponseWriter, r *http.Request) {
	stubs, err := h.Repo.Stubs(Param(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, StubsResponse{Stubs: stubs})
}

// Add handles POST /imposters/{id}/stubs.
func (h *StubsHandler) Add(w http.ResponseWriter, r *http.Request) {
	id := Param(r, "id")

	var stub models.Stub
	if err := json.NewDecoder(r.Body).Decode(&stub); err != nil {
		response.WriteError(w, http.StatusBadRequest, response.ErrCodeInvalidJSON, "unable to parse body as JSON")
		return
	}
	stub.ID = models.NewStubID()
	if err := stub.Validate(); err != nil {
		response.WriteError(w, http.StatusBadRequest, response.ErrCodeBadData, err.Error())
		return
	}

	rec, err := h.Repo.AddStub(id, stub)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	h.reload(id, len(rec.Stubs))
	response.WriteJSON(w, http.StatusCreated, stub)
}

// Replace handles PUT /imposters/{id}/stubs/{stubId}.
func (h *StubsHandler) Replace(w http.ResponseWriter, r *http.Request) {
	id := Param(r, "id")
	stubID := Param(r, "stubId")

	var incoming models.Stub
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		response.WriteError(w, http.StatusBadRequest, response.ErrCodeInvalidJSON, "unable to parse body as JSON")
		return
	}
	incoming.ID = stubID
	if err := incoming.Validate(); err != nil {
		response.WriteError(w, http.StatusBadRequest, response.ErrCodeBadData, err.Error())
		return
	}

	rec, err := h.Repo.UpdateStub(id, stubID, func(stub *models.Stub) error {
		*stub = incoming
		return nil
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}

	h.reload(id, len(rec.Stubs))
	response.WriteJSON(w, http.StatusOK, incoming)
}

// Delete handles DELETE /imposters/{id}/stubs/{stubId}.
func (h *StubsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := Param(r, "id")
	stubID := Param(r, "stubId")

	rec, err := h.Repo.RemoveStub(id, stubID)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	h.reload(id, len(rec.Stubs))
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": true, "id": stubID})
}

// reload hot-swaps the running imposter's stub snapshot after any mutation.
func (h *StubsHandler) reload(id string, stubCount int) {
	metrics.SetStubsCount(id, stubCount)
	if h.Runtime.IsRunning(id) {
		h.Runtime.UpdateStubs(id)
	}
}
