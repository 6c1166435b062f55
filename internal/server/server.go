// Package server is the development transport: it serves runtime outcomes
// over HTTP, falls back to the public directory, exposes health and metrics
// endpoints and pushes live reload messages over a websocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/conneroisu/pagemill/internal/logging"
	"github.com/conneroisu/pagemill/internal/metrics"
	"github.com/conneroisu/pagemill/internal/runtime"
	"github.com/conneroisu/pagemill/internal/version"
)

const (
	HealthPath  = "/_pagemill/health"
	MetricsPath = "/_pagemill/metrics"
)

// Options configures a Server.
type Options struct {
	Runtime *runtime.Runtime
	Host    string
	Port    int
	// PublicDir holds static assets served when no page matches.
	PublicDir string
	Logger    logging.Logger
	Metrics   metrics.Recorder
	// Registry exposes MetricsPath when set.
	Registry *prom.Registry
}

// Server serves a site in development.
type Server struct {
	opts       Options
	router     chi.Router
	hub        *Hub
	logger     logging.Logger
	metrics    metrics.Recorder
	started    time.Time
	httpServer *http.Server
	serverMu   sync.Mutex
	shutdown   sync.Once
}

// New creates a server and its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	s := &Server{
		opts:    opts,
		hub:     NewHub(logger),
		logger:  logger,
		metrics: metrics.OrNoop(opts.Metrics),
		started: time.Now(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID(s.logger))
	r.Use(accessLog(s.logger, s.metrics))
	r.Use(middleware.Recoverer)

	r.Get(runtime.LiveReloadPath, s.hub.ServeWS(originPatterns(s.opts.Host, s.opts.Port)))
	r.Get(HealthPath, s.handleHealth)
	if s.opts.Registry != nil {
		r.Handle(MetricsPath, metrics.HTTPHandler(s.opts.Registry))
	}
	r.Get("/*", s.handlePage)
	r.Head("/*", s.handlePage)
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, fmt.Sprint(s.opts.Port))
}

// Reload tells every connected browser to reload.
func (s *Server) Reload(target string) {
	s.hub.Broadcast(UpdateMessage{Type: "full_reload", Target: target})
}

// Clients returns the number of live reload connections.
func (s *Server) Clients() int {
	return s.hub.Len()
}

// Start listens until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.serverMu.Lock()
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	server := s.httpServer
	s.serverMu.Unlock()

	s.logger.Info(ctx, "dev server listening", "url", "http://"+s.Addr())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown disconnects live reload clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdown.Do(func() {
		s.logger.Info(ctx, "shutting down dev server")
		s.hub.Close()

		s.serverMu.Lock()
		server := s.httpServer
		s.serverMu.Unlock()
		if server != nil {
			err = server.Shutdown(ctx)
		}
	})
	return err
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := s.opts.Runtime.Load(ctx, r.URL.EscapedPath())

	switch o := out.(type) {
	case *runtime.Success:
		w.Header().Set("Content-Type", o.ContentType)
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(o.Body))
		}
	case *runtime.Redirect:
		http.Redirect(w, r, o.Location, o.Status)
	case *runtime.NotFound:
		if s.servePublic(w, r) {
			return
		}
		s.renderError(w, r, ErrorPage{
			Status: http.StatusNotFound,
			Title:  runtime.StatusText(out),
			Path:   r.URL.Path,
			Detail: o.Reason,
		})
	case *runtime.ServerError:
		s.renderError(w, r, ErrorPage{
			Status: http.StatusInternalServerError,
			Title:  runtime.StatusText(out),
			Path:   r.URL.Path,
			Detail: o.Detail,
			File:   o.File,
		})
	}
}

// servePublic serves a file from the public directory when one exists at
// the request path.
func (s *Server) servePublic(w http.ResponseWriter, r *http.Request) bool {
	if s.opts.PublicDir == "" {
		return false
	}
	file := filepath.Join(s.opts.PublicDir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeFile(w, r, file)
	return true
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, page ErrorPage) {
	page.RequestID = RequestID(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(page.Status)
	if r.Method == http.MethodHead {
		return
	}
	if err := errorPage(page).Render(r.Context(), w); err != nil {
		LoggerFrom(r.Context(), s.logger).Error(r.Context(), err, "failed to render error page")
	}
}

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := s.opts.Runtime.Store().Load()
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"version":   version.Get().Short(),
		"urlmap": map[string]interface{}{
			"version":     snapshot.Version,
			"pages":       snapshot.Len() - len(snapshot.Collections),
			"collections": len(snapshot.Collections),
		},
		"live_reload_clients": s.hub.Len(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "failed to encode health response")
	}
}
