package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eliraz-refael/go-imposters/internal/api/handlers"
	"github.com/eliraz-refael/go-imposters/internal/config"
	"github.com/eliraz-refael/go-imposters/internal/imposter"
	"github.com/eliraz-refael/go-imposters/internal/metrics"
	"github.com/eliraz-refael/go-imposters/internal/models"
	"github.com/eliraz-refael/go-imposters/internal/ports"
	"github.com/eliraz-refael/go-imposters/internal/repository"
	"github.com/eliraz-refael/go-imposters/internal/requestlog"
	"github.com/eliraz-refael/go-imposters/internal/stats"
)

// Server is the admin API server.
type Server struct {
	httpServer *http.Server
	repo       repository.Repository
	runtime    *imposter.Runtime
	allocator  *ports.Allocator
	log        *zap.Logger
}

// NewServer wires the admin server over the composition root's services.
func NewServer(cfg config.Config, repo repository.Repository, allocator *ports.Allocator,
	logs *requestlog.Logger, agg *stats.Aggregator, rt *imposter.Runtime, log *zap.Logger) *Server {

	deps := handlers.Deps{
		Repo:    repo,
		Runtime: rt,
		Ports:   allocator,
		Logs:    logs,
		Stats:   agg,
		Config:  cfg,
		Log:     log,
	}

	impostersHandler := handlers.NewImpostersHandler(deps)
	stubsHandler := handlers.NewStubsHandler(deps)
	requestsHandler := handlers.NewRequestsHandler(deps)
	statsHandler := handlers.NewStatsHandler(deps)
	systemHandler := handlers.NewSystemHandler(deps, time.Now())

	router := NewRouter()

	router.GET("/health", systemHandler.Health)
	router.GET("/info", systemHandler.Info)

	router.GET("/imposters", impostersHandler.List)
	router.POST("/imposters", impostersHandler.Create)
	router.GET("/imposters/{id}", impostersHandler.Get)
	router.PATCH("/imposters/{id}", impostersHandler.Update)
	router.DELETE("/imposters/{id}", impostersHandler.Delete)

	router.POST("/imposters/{id}/stubs", stubsHandler.Add)
	router.GET("/imposters/{id}/stubs", stubsHandler.List)
	router.PUT("/imposters/{id}/stubs/{stubId}", stubsHandler.Replace)
	router.DELETE("/imposters/{id}/stubs/{stubId}", stubsHandler.Delete)

	router.GET("/imposters/{id}/requests", requestsHandler.List)
	router.DELETE("/imposters/{id}/requests", requestsHandler.Clear)
	router.GET("/imposters/{id}/stats", statsHandler.Get)
	router.DELETE("/imposters/{id}/stats", statsHandler.Reset)

	router.GET("/metrics", promhttp.Handler().ServeHTTP)

	handler := RequestLogger(log)(JSONBody(router))

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.AdminPort),
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		repo:      repo,
		runtime:   rt,
		allocator: allocator,
		log:       log,
	}
}

// Start starts the admin server and blocks until it exits.
func (s *Server) Start() error {
	s.log.Info("admin server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops every imposter and then the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.runtime.StopAll()
	return s.httpServer.Shutdown(ctx)
}

// LoadImposters pre-creates and starts imposters from a config file.
func (s *Server) LoadImposters(imposters []config.FileImposter) error {
	for i := range imposters {
		imp := &imposters[i]

		port, err := s.allocator.Allocate(imp.Port)
		if err != nil {
			return fmt.Errorf("imposter on port %d: %w", imp.Port, err)
		}

		id := models.NewImposterID()
		name := imp.Name
		if name == "" {
			name = id
		}

		rec, err := s.repo.Create(models.ImposterConfig{
			ID:        id,
			Name:      name,
			Port:      port,
			Protocol:  "http",
			Status:    models.StatusStopped,
			CreatedAt: time.Now().UTC(),
			AdminPath: models.DefaultAdminPath,
			Proxy:     imp.Proxy,
		})
		if err != nil {
			s.allocator.Release(port)
			return fmt.Errorf("imposter on port %d: %w", imp.Port, err)
		}

		for _, stub := range imp.Stubs {
			if stub.ID == "" {
				stub.ID = models.NewStubID()
			}
			if _, err := s.repo.AddStub(id, stub); err != nil {
				return fmt.Errorf("imposter on port %d: %w", imp.Port, err)
			}
		}
		metrics.SetStubsCount(id, len(imp.Stubs))

		if err := s.runtime.Start(id); err != nil {
			return fmt.Errorf("imposter on port %d: %w", imp.Port, err)
		}
		s.log.Info("imposter loaded from config",
			zap.String("imposter", rec.Config.ID), zap.Int("port", port))
	}

	metrics.SetImpostersCount(s.repo.Count())
	return nil
}
