// Package handlers implements the admin control API: CRUD over imposters,
// stubs, request logs and stats, coordinating the repository, port
// allocator and imposter runtime.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/eliraz-refael/go-imposters/internal/config"
	"github.com/eliraz-refael/go-imposters/internal/imposter"
	"github.com/eliraz-refael/go-imposters/internal/ports"
	"github.com/eliraz-refael/go-imposters/internal/repository"
	"github.com/eliraz-refael/go-imposters/internal/requestlog"
	"github.com/eliraz-refael/go-imposters/internal/response"
	"github.com/eliraz-refael/go-imposters/internal/stats"
)

// Deps is the collaborator set shared by all handlers.
type Deps struct {
	Repo    repository.Repository
	Runtime *imposter.Runtime
	Ports   *ports.Allocator
	Logs    *requestlog.Logger
	Stats   *stats.Aggregator
	Config  config.Config
	Log     *zap.Logger
}

type paramsKey struct{}

// WithParams attaches router path parameters to a request.
func WithParams(r *http.Request, params map[string]string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), paramsKey{}, params))
}

// Param retrieves a path parameter set by the router.
func Param(r *http.Request, name string) string {
	params, _ := r.Context().Value(paramsKey{}).(map[string]string)
	return params[name]
}

// writeMappedError translates core error kinds to their HTTP status.
func writeMappedError(w http.ResponseWriter, err error) {
	var (
		notFound     repository.NotFoundError
		stubNotFound repository.StubNotFoundError
		conflict     ports.ConflictError
		exhausted    ports.ExhaustedError
		serverErr    *imposter.ServerError
	)
	switch {
	case errors.As(err, &notFound):
		response.WriteError(w, http.StatusNotFound, response.ErrCodeNoSuchResource, notFound.Error())
	case errors.As(err, &stubNotFound):
		response.WriteError(w, http.StatusNotFound, response.ErrCodeNoSuchResource, stubNotFound.Error())
	case errors.As(err, &conflict):
		response.WriteError(w, http.StatusConflict, response.ErrCodeResourceConflict, conflict.Error())
	case errors.As(err, &exhausted):
		response.WriteError(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, exhausted.Error())
	case errors.As(err, &serverErr):
		response.WriteError(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, serverErr.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, response.ErrCodeBadData, err.Error())
	}
}
