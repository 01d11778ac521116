package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/eliraz-refael/go-imposters/internal/metrics"
	"github.com/eliraz-refael/go-imposters/internal/models"
	"github.com/eliraz-refael/go-imposters/internal/repository"
	"github.com/eliraz-refael/go-imposters/internal/response"
)

// ImpostersHandler handles imposter collection and item operations.
type ImpostersHandler struct {
	Deps
}

// NewImpostersHandler creates an imposters handler.
func NewImpostersHandler(deps Deps) *ImpostersHandler {
	return &ImpostersHandler{Deps: deps}
}

// ImposterView is the serialized form of an imposter.
type ImposterView struct {
	models.ImposterConfig
	Stubs    []models.Stub `json:"stubs"`
	AdminURL string        `json:"adminUrl"`
}

func viewOf(rec *repository.Record) *ImposterView {
	adminPath := rec.Config.AdminPath
	if adminPath == "" {
		adminPath = models.DefaultAdminPath
	}
	return &ImposterView{
		ImposterConfig: rec.Config,
		Stubs:          rec.Stubs,
		AdminURL:       fmt.Sprintf("http://localhost:%d%s", rec.Config.Port, adminPath),
	}
}

// ListResponse is the body of GET /imposters.
type ListResponse struct {
	Imposters []*ImposterView `json:"imposters"`
	Total     int             `json:"total"`
	Limit     int             `json:"limit"`
	Offset    int             `json:"offset"`
}

// List handles GET /imposters.
func (h *ImpostersHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := positiveIntQuery(r, "limit", 50)
	offset := nonNegativeIntQuery(r, "offset", 0)
	statusFilter := r.URL.Query().Get("status")
	protocolFilter := r.URL.Query().Get("protocol")

	records := h.Repo.All()
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].Config, records[j].Config
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	filtered := records[:0]
	for _, rec := range records {
		if statusFilter != "" && string(rec.Config.Status) != statusFilter {
			continue
		}
		if protocolFilter != "" && rec.Config.Protocol != protocolFilter {
			continue
		}
		filtered = append(filtered, rec)
	}

	total := len(filtered)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	views := make([]*ImposterView, 0, end-offset)
	for _, rec := range filtered[offset:end] {
		views = append(views, viewOf(rec))
	}

	response.WriteJSON(w, http.StatusOK, ListResponse{
		Imposters: views,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

// createRequest is the body of POST /imposters.
type createRequest struct {
	Name      string              `json:"name,omitempty"`
	Port      int                 `json:"port,omitempty"`
	Protocol  string              `json:"protocol,omitempty"`
	AdminPath string              `json:"adminPath,omitempty"`
	Proxy     *models.ProxyConfig `json:"proxy,omitempty"`
}

// Create handles POST /imposters.
func (h *ImpostersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, response.ErrCodeInvalidJSON, "unable to parse body as JSON")
		return
	}

	if h.Repo.Count() >= h.Config.MaxImposters {
		response.WriteError(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable,
			fmt.Sprintf("imposter limit of %d reached", h.Config.MaxImposters))
		return
	}

	if req.Proxy != nil {
		if err := req.Proxy.Validate(); err != nil {
			response.WriteError(w, http.StatusBadRequest, response.ErrCodeBadData, err.Error())
			return
		}
	}

	port, err := h.Ports.Allocate(req.Port)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	id := models.NewImposterID()
	name := req.Name
	if name == "" {
		name = id
	}
	protocol := req.Protocol
	if protocol == "" {
		protocol = "http"
	}
	adminPath := req.AdminPath
	if adminPath == "" {
		adminPath = models.DefaultAdminPath
	}

	rec, err := h.Repo.Create(models.ImposterConfig{
		ID:        id,
		Name:      name,
		Port:      port,
		Protocol:  protocol,
		Status:    models.StatusStopped,
		CreatedAt: time.Now().UTC(),
		AdminPath: adminPath,
		Proxy:     req.Proxy,
	})
	if err != nil {
		h.Ports.Release(port)
		writeMappedError(w, err)
		return
	}

	metrics.SetImpostersCount(h.Repo.Count())
	h.Log.Info("imposter created", zap.String("imposter", id), zap.Int("port", port))

	w.Header().Set("Location", "/imposters/"+id)
	response.WriteJSON(w, http.StatusCreated, viewOf(rec))
}

// Get handles GET /imposters/{id}.
func (h *ImpostersHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Repo.Get(Param(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, viewOf(rec))
}

// updateRequest is the body of PATCH /imposters/{id}. Proxy stays raw so an
// explicit null (remove) can be told apart from an absent field (no change).
type updateRequest struct {
	Name   *string         `json:"name"`
	Status *models.Status  `json:"status"`
	Port   *int            `json:"port"`
	Proxy  json.RawMessage `json:"proxy"`
}

// Update handles PATCH /imposters/{id}.
func (h *ImpostersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := Param(r, "id")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, response.ErrCodeInvalidJSON, "unable to parse body as JSON")
		return
	}

	rec, err := h.Repo.Get(id)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	if req.Status != nil {
		switch *req.Status {
		case models.StatusRunning, models.StatusStopped:
		default:
			response.WriteError(w, http.StatusBadRequest, response.ErrCodeBadData,
				fmt.Sprintf("status must be %q or %q", models.StatusRunning, models.StatusStopped))
			return
		}
	}

	var newProxy *models.ProxyConfig
	proxyChanged := len(req.Proxy) > 0
	if proxyChanged && string(req.Proxy) != "null" {
		newProxy = &models.ProxyConfig{}
		if err := json.Unmarshal(req.Proxy, newProxy); err != nil {
			response.WriteError(w, http.StatusBadRequest, response.ErrCodeInvalidJSON, "unable to parse proxy config")
			return
		}
		if err := newProxy.Validate(); err != nil {
			response.WriteError(w, http.StatusBadRequest, response.ErrCodeBadData, err.Error())
			return
		}
	}

	wasRunning := h.Runtime.IsRunning(id)
	oldPort := rec.Config.Port
	portChanged := req.Port != nil && *req.Port != oldPort

	newPort := oldPort
	if portChanged {
		// The listener must be down before the port moves.
		if wasRunning {
			h.Runtime.Stop(id)
		}
		newPort, err = h.Ports.Allocate(*req.Port)
		if err != nil {
			if wasRunning {
				h.Runtime.Start(id) // best effort: put the old listener back
			}
			writeMappedError(w, err)
			return
		}
	}

	rec, err = h.Repo.Update(id, func(rec *repository.Record) error {
		if req.Name != nil && *req.Name != "" {
			rec.Config.Name = *req.Name
		}
		if portChanged {
			rec.Config.Port = newPort
		}
		if proxyChanged {
			rec.Config.Proxy = newProxy
		}
		return nil
	})
	if err != nil {
		if portChanged {
			h.Ports.Release(newPort)
		}
		writeMappedError(w, err)
		return
	}
	if portChanged {
		h.Ports.Release(oldPort)
	}

	if proxyChanged && h.Runtime.IsRunning(id) {
		h.Runtime.UpdateProxy(id)
	}

	wantsRunning := req.Status != nil && *req.Status == models.StatusRunning
	wantsStopped := req.Status != nil && *req.Status == models.StatusStopped

	switch {
	case portChanged && wasRunning:
		// A port change while running always restarts on the new port,
		// even when the same request also asks for a stop.
		err = h.Runtime.Start(id)
	case wantsRunning && !h.Runtime.IsRunning(id):
		err = h.Runtime.Start(id)
	case wantsStopped && !portChanged && wasRunning:
		h.Runtime.Stop(id)
	}
	if err != nil {
		writeMappedError(w, err)
		return
	}

	rec, err = h.Repo.Get(id)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, viewOf(rec))
}

// Delete handles DELETE /imposters/{id}?force=.
func (h *ImpostersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := Param(r, "id")
	force := r.URL.Query().Get("force") == "true"

	rec, err := h.Repo.Get(id)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	if rec.Config.Status != models.StatusStopped && !force {
		response.WriteError(w, http.StatusConflict, response.ErrCodeResourceConflict,
			fmt.Sprintf("imposter %q is %s; use force=true to delete", id, rec.Config.Status))
		return
	}

	h.Runtime.Stop(id)

	rec, err = h.Repo.Remove(id)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	h.Ports.Release(rec.Config.Port)
	h.Stats.Reset(id)
	h.Logs.RemoveImposter(id)
	metrics.RemoveImposter(id)
	metrics.SetImpostersCount(h.Repo.Count())
	h.Log.Info("imposter deleted", zap.String("imposter", id), zap.Int("port", rec.Config.Port))

	response.WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": true, "id": id})
}

func positiveIntQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func nonNegativeIntQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
