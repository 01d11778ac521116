package imposter

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliraz-refael/go-imposters/internal/metrics"
	"github.com/eliraz-refael/go-imposters/internal/models"
	"github.com/eliraz-refael/go-imposters/internal/repository"
	"github.com/eliraz-refael/go-imposters/internal/requestlog"
	"github.com/eliraz-refael/go-imposters/internal/stats"
	"github.com/eliraz-refael/go-imposters/internal/template"
)

// ServerError wraps a listener bind failure or runtime crash.
type ServerError struct {
	Port int
	Err  error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("imposter server on port %d: %v", e.Port, e.Err)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// cell is the live state of one running imposter. Stubs and proxy config are
// published as immutable snapshots: the admin path installs a fresh value,
// request handlers read whichever snapshot was current when they started.
type cell struct {
	stubs atomic.Value // []models.Stub
	proxy atomic.Pointer[models.ProxyConfig]
}

// Runtime binds one listener per imposter and runs the request pipeline.
type Runtime struct {
	repo      repository.Repository
	tasks     *TaskManager
	state     *ResponseState
	logger    *requestlog.Logger
	stats     *stats.Aggregator
	forwarder *Forwarder
	engine    *template.Engine
	log       *zap.Logger

	cells map[string]*cell
	mu    sync.RWMutex
}

// NewRuntime wires a runtime over its collaborators.
func NewRuntime(repo repository.Repository, logger *requestlog.Logger, agg *stats.Aggregator, log *zap.Logger) *Runtime {
	return &Runtime{
		repo:      repo,
		tasks:     NewTaskManager(),
		state:     NewResponseState(),
		logger:    logger,
		stats:     agg,
		forwarder: NewForwarder(),
		engine:    template.NewEngine(),
		log:       log,
		cells:     make(map[string]*cell),
	}
}

// Start binds a listener for the imposter and begins serving. It fails with
// repository.NotFoundError for unknown ids and *ServerError when the port
// cannot be bound. On success the repository status becomes running.
func (r *Runtime) Start(id string) error {
	rec, err := r.repo.Get(id)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", rec.Config.Port))
	if err != nil {
		return &ServerError{Port: rec.Config.Port, Err: err}
	}

	c := &cell{}
	c.stubs.Store(models.CloneStubs(rec.Stubs))
	c.proxy.Store(rec.Config.Proxy.Clone())

	r.mu.Lock()
	r.cells[id] = c
	r.mu.Unlock()

	adminPath := rec.Config.AdminPath
	if adminPath == "" {
		adminPath = models.DefaultAdminPath
	}
	handler := r.requestHandler(id, adminPath, c)

	port := rec.Config.Port
	run := func(ctx context.Context) error {
		defer ln.Close()

		srv := &http.Server{
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 150 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve(ln) }()

		select {
		case <-ctx.Done():
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
			<-errCh
			return nil
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return &ServerError{Port: port, Err: err}
		}
	}

	onExit := func(err error) {
		r.mu.Lock()
		if r.cells[id] == c {
			delete(r.cells, id)
		}
		r.mu.Unlock()
		r.state.Reset(id)
		if err != nil {
			r.log.Error("imposter listener failed",
				zap.String("imposter", id), zap.Int("port", port), zap.Error(err))
		}
		r.repo.Update(id, func(rec *repository.Record) error {
			rec.Config.Status = models.StatusStopped
			return nil
		})
	}

	r.tasks.Start(id, run, onExit)

	if _, err := r.repo.Update(id, func(rec *repository.Record) error {
		rec.Config.Status = models.StatusRunning
		return nil
	}); err != nil {
		r.tasks.Stop(id)
		return err
	}

	r.log.Info("imposter started", zap.String("imposter", id), zap.Int("port", port))
	return nil
}

// Stop tears down the imposter's listener. Idempotent; never fails.
func (r *Runtime) Stop(id string) {
	r.tasks.Stop(id)

	r.mu.Lock()
	delete(r.cells, id)
	r.mu.Unlock()

	r.repo.Update(id, func(rec *repository.Record) error {
		rec.Config.Status = models.StatusStopped
		return nil
	})
	r.logger.RemoveImposter(id)
	r.log.Info("imposter stopped", zap.String("imposter", id))
}

// StopAll stops every running imposter.
func (r *Runtime) StopAll() {
	for _, id := range r.tasks.IDs() {
		r.Stop(id)
	}
}

// IsRunning reports whether the imposter's listener task is alive.
func (r *Runtime) IsRunning(id string) bool {
	return r.tasks.IsRunning(id)
}

// UpdateStubs re-reads the imposter's stubs and atomically replaces the
// running cell's snapshot. No listener restart; requests already in flight
// keep the snapshot they started with.
func (r *Runtime) UpdateStubs(id string) error {
	stubs, err := r.repo.Stubs(id)
	if err != nil {
		return err
	}

	r.mu.RLock()
	c, ok := r.cells[id]
	r.mu.RUnlock()
	if !ok {
		return nil // not running; nothing to reload
	}
	c.stubs.Store(stubs)
	return nil
}

// UpdateProxy replaces the running cell's proxy view from the repository.
func (r *Runtime) UpdateProxy(id string) error {
	rec, err := r.repo.Get(id)
	if err != nil {
		return err
	}

	r.mu.RLock()
	c, ok := r.cells[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	c.proxy.Store(rec.Config.Proxy.Clone())
	return nil
}

// outcome is the response to be written plus what the log entry needs.
type outcome struct {
	status        int
	headers       map[string]string
	body          []byte
	matchedStubID string
	proxied       bool
}

// requestHandler builds the per-imposter pipeline handler.
func (r *Runtime) requestHandler(id, adminPath string, c *cell) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		started := time.Now()
		metrics.RecordRequest(id, strings.ToUpper(req.Method))

		if strings.HasPrefix(req.URL.Path, adminPath) {
			r.serveAdminView(w, id)
			return
		}

		rctx, err := models.NewRequestContext(req)
		if err != nil {
			writeJSONBody(w, http.StatusInternalServerError, map[string]interface{}{
				"error":   "Internal server error",
				"details": err.Error(),
			})
			return
		}

		out := r.dispatch(req, rctx, id, c)
		for k, v := range out.headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(out.status)
		if len(out.body) > 0 {
			w.Write(out.body)
		}

		elapsed := time.Since(started)
		metrics.RecordResponseDuration(id, elapsed.Seconds())
		r.dispatchLog(id, rctx, out, started, elapsed)
	})
}

// dispatch runs steps 3–7 of the pipeline: match, respond, proxy, 404, with
// a recover barrier turning panics into 500s.
func (r *Runtime) dispatch(req *http.Request, rctx *models.RequestContext, id string, c *cell) (out outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("request handler panic", zap.String("imposter", id), zap.Any("panic", rec))
			out = jsonOutcome(http.StatusInternalServerError, map[string]interface{}{
				"error":   "Internal server error",
				"details": fmt.Sprint(rec),
			})
		}
	}()

	stubs, _ := c.stubs.Load().([]models.Stub)
	stub := Match(stubs, rctx)

	if stub != nil {
		idx := r.state.NextIndex(id, stub.ID, len(stub.Responses), stub.Mode())
		respCfg := stub.Responses[idx]

		if respCfg.DelayMs > 0 {
			select {
			case <-time.After(time.Duration(respCfg.DelayMs) * time.Millisecond):
			case <-req.Context().Done():
			}
		}

		built, err := BuildResponse(&respCfg, rctx, r.engine)
		if err != nil {
			return jsonOutcome(http.StatusInternalServerError, map[string]interface{}{
				"error":   "Internal server error",
				"details": err.Error(),
			})
		}
		return outcome{
			status:        built.Status,
			headers:       built.Headers,
			body:          built.Body,
			matchedStubID: stub.ID,
		}
	}

	if proxy := c.proxy.Load(); proxy != nil {
		res, err := r.forwarder.Forward(req.Context(), rctx, proxy, req.URL)
		if err != nil {
			r.log.Warn("proxy failed", zap.String("imposter", id), zap.Error(err))
			return jsonOutcome(http.StatusBadGateway, map[string]interface{}{"error": "Proxy failed"})
		}
		metrics.RecordProxyDuration(id, res.Elapsed.Seconds())

		if proxy.Mode == models.ProxyModeRecord {
			recorded := RecordAsStub(rctx, res)
			if _, err := r.repo.AddStub(id, recorded); err != nil {
				r.log.Warn("recording proxy stub failed", zap.String("imposter", id), zap.Error(err))
			} else {
				r.UpdateStubs(id)
			}
		}
		return outcome{
			status:  res.Status,
			headers: res.Headers,
			body:    res.Body,
			proxied: true,
		}
	}

	metrics.RecordNoMatch(id)
	return jsonOutcome(http.StatusNotFound, map[string]interface{}{
		"error":  "No matching stub found",
		"method": rctx.Method,
		"path":   rctx.Path,
	})
}

// dispatchLog hands the exchange to the log and stats collectors on a
// separate goroutine; failures there never affect the client response.
func (r *Runtime) dispatchLog(id string, rctx *models.RequestContext, out outcome, started time.Time, elapsed time.Duration) {
	body := out.body
	if len(body) > models.MaxLoggedBodyBytes {
		body = body[:models.MaxLoggedBodyBytes]
	}
	entry := models.RequestLogEntry{
		ID:         uuid.NewString(),
		ImposterID: id,
		Timestamp:  started,
		Request: models.LoggedRequest{
			Method:  rctx.Method,
			Path:    rctx.Path,
			Headers: rctx.Headers,
			Query:   rctx.Query,
			Body:    rctx.Body,
		},
		Response: models.LoggedResponse{
			Status:        out.status,
			Headers:       out.headers,
			Body:          string(body),
			MatchedStubID: out.matchedStubID,
			Proxied:       out.proxied,
		},
		DurationMs: float64(elapsed.Microseconds()) / 1000,
	}

	go func() {
		defer func() { recover() }() // log/metrics failures are swallowed
		r.logger.Log(entry)
		r.stats.Record(entry)
	}()
}

// serveAdminView answers the per-imposter reserved path with a JSON summary.
func (r *Runtime) serveAdminView(w http.ResponseWriter, id string) {
	rec, err := r.repo.Get(id)
	if err != nil {
		writeJSONBody(w, http.StatusNotFound, map[string]interface{}{"error": "imposter not found"})
		return
	}
	writeJSONBody(w, http.StatusOK, map[string]interface{}{
		"id":       rec.Config.ID,
		"name":     rec.Config.Name,
		"port":     rec.Config.Port,
		"status":   rec.Config.Status,
		"stubs":    len(rec.Stubs),
		"requests": r.logger.Count(id),
	})
}

func jsonOutcome(status int, v interface{}) outcome {
	body, _ := json.Marshal(v)
	return outcome{
		status:  status,
		headers: map[string]string{"Content-Type": "application/json"},
		body:    body,
	}
}

func writeJSONBody(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
