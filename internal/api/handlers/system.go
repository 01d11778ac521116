package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/eliraz-refael/go-imposters/internal/models"
	"github.com/eliraz-refael/go-imposters/internal/response"
	"github.com/eliraz-refael/go-imposters/pkg/version"
)

// SystemHandler serves the health and info endpoints.
type SystemHandler struct {
	Deps
	StartTime time.Time
}

// NewSystemHandler creates a system handler.
func NewSystemHandler(deps Deps, startTime time.Time) *SystemHandler {
	return &SystemHandler{Deps: deps, StartTime: startTime}
}

// Health handles GET /health.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	running := 0
	for _, rec := range h.Repo.All() {
		if rec.Config.Status == models.StatusRunning {
			running++
		}
	}

	rangeMin, rangeMax := h.Ports.Range()
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"version":       version.Version,
		"uptimeSeconds": int64(time.Since(h.StartTime).Seconds()),
		"memory": map[string]interface{}{
			"allocBytes": mem.Alloc,
			"sysBytes":   mem.Sys,
			"goroutines": runtime.NumGoroutine(),
		},
		"imposters": map[string]interface{}{
			"total":   h.Repo.Count(),
			"running": running,
		},
		"ports": map[string]interface{}{
			"rangeMin": rangeMin,
			"rangeMax": rangeMax,
			"used":     h.Ports.Reserved(),
			"free":     rangeMax - rangeMin + 1 - h.Ports.Reserved(),
		},
	})
}

// Info handles GET /info.
func (h *SystemHandler) Info(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"name":          "imposters",
		"version":       version.Version,
		"configuration": h.Config,
		"features": []string{
			"stub-matching",
			"response-templating",
			"proxy-passthrough",
			"proxy-record",
			"request-log",
			"stats",
			"prometheus-metrics",
		},
	})
}
