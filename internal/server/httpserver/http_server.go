// Package httpserver wires the compile and monitoring handlers into an
// http.Server with pre-bound listeners and graceful shutdown.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/netutil"

	"github.com/autonomy-edge/compilerd/internal/config"
	derrors "github.com/autonomy-edge/compilerd/internal/errors"
	"github.com/autonomy-edge/compilerd/internal/metrics"
	"github.com/autonomy-edge/compilerd/internal/pipeline"
	"github.com/autonomy-edge/compilerd/internal/server/handlers"
	smw "github.com/autonomy-edge/compilerd/internal/server/middleware"
	"github.com/autonomy-edge/compilerd/internal/toolchain"
	"github.com/autonomy-edge/compilerd/internal/workspace"
)

// Server owns the HTTP surface of the compiler service.
type Server struct {
	cfg     atomic.Pointer[config.Config]
	version string

	workspaces *workspace.Manager
	invoker    *toolchain.Invoker
	pipe       *pipeline.Pipeline
	registry   *prom.Registry

	compileHandlers    *handlers.CompileHandlers
	monitoringHandlers *handlers.MonitoringHandlers

	httpServer *http.Server
	listener   net.Listener
}

// New constructs the server and all its collaborators from the configuration.
func New(cfg *config.Config, version string) *Server {
	s := &Server{version: version}
	s.cfg.Store(cfg)

	s.workspaces = workspace.NewManager(cfg.Workspace.BaseDir)
	s.invoker = &toolchain.Invoker{Timeout: cfg.Toolchain.Timeout.Std()}
	s.registry = prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(s.registry)

	// Tool paths resolve through the live config so watcher reloads apply
	// to the next request without a restart.
	tools := func() pipeline.Tools {
		c := s.cfg.Load()
		return pipeline.Tools{Xml2st: c.Toolchain.Xml2st, Iec2c: c.Toolchain.Iec2c}
	}
	s.pipe = pipeline.New(s.workspaces, s.invoker, tools, recorder)

	stats := &handlers.Stats{}
	s.compileHandlers = handlers.NewCompileHandlers(s.pipe, stats, cfg.Server.MaxBodyBytes)
	s.monitoringHandlers = handlers.NewMonitoringHandlers(s.invoker, tools, stats, version)

	return s
}

// Workspaces exposes the workspace manager for the janitor.
func (s *Server) Workspaces() *workspace.Manager {
	return s.workspaces
}

// ApplyConfig swaps the active configuration. Tool paths take effect on the
// next request; a changed listen address requires a restart and is logged.
func (s *Server) ApplyConfig(cfg *config.Config) {
	old := s.cfg.Swap(cfg)
	if old.Server.Listen != cfg.Server.Listen {
		slog.Warn("Listen address changed in configuration; restart required to apply",
			"old", old.Server.Listen, "new", cfg.Server.Listen)
	}
}

func (s *Server) routes() http.Handler {
	cfg := s.cfg.Load()
	adapter := derrors.NewHTTPErrorAdapter(slog.Default())
	chain := smw.Chain(slog.Default(), adapter, cfg.Server.CORSOrigins)

	mux := http.NewServeMux()
	mux.HandleFunc("/generate-st", s.compileHandlers.HandleGenerateST)
	mux.HandleFunc("/compile-st", s.compileHandlers.HandleCompileST)
	mux.HandleFunc("/generate-debug", s.compileHandlers.HandleGenerateDebug)
	mux.HandleFunc("/generate-gluevars", s.compileHandlers.HandleGenerateGlueVars)
	mux.HandleFunc("/healthz", s.monitoringHandlers.HandleHealthz)
	mux.HandleFunc("/readyz", s.monitoringHandlers.HandleReadyz)
	mux.HandleFunc("/status", s.monitoringHandlers.HandleStatus)
	mux.Handle("/metrics", metrics.HTTPHandler(s.registry))

	return chain(mux)
}

// Start binds the listener and begins serving. Binding happens before the
// serve goroutine starts so a busy port fails fast instead of surfacing as a
// background log line.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Load()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("http startup failed: %w", err)
	}
	if cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConnections)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler: s.routes(),
		// No write timeout: a stage response cannot be produced until the
		// external tool exits, and the baseline contract is unbounded.
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped unexpectedly", "error", err)
		}
	}()

	slog.Info("HTTP server started",
		slog.String("listen", ln.Addr().String()),
		slog.Int("max_connections", cfg.Server.MaxConnections))
	return nil
}

// Addr returns the bound listener address (useful when listening on :0).
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the server, honoring the configured timeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	timeout := s.cfg.Load().Server.ShutdownTimeout.Std()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}
