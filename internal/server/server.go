// Package server wires the module pipeline, the HMR transport and the file
// watcher into the HTTP dev server.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/modserve/internal/config"
	"github.com/conneroisu/modserve/internal/graph"
	"github.com/conneroisu/modserve/internal/hmr"
	"github.com/conneroisu/modserve/internal/logging"
	"github.com/conneroisu/modserve/internal/monitoring"
	"github.com/conneroisu/modserve/internal/optimizer"
	"github.com/conneroisu/modserve/internal/plugins"
	"github.com/conneroisu/modserve/internal/plugins/builtin"
	"github.com/conneroisu/modserve/internal/transform"
	"github.com/conneroisu/modserve/internal/version"
	"github.com/conneroisu/modserve/internal/watcher"
	"github.com/conneroisu/modserve/internal/websocket"
)

// HealthPath serves the health report.
const HealthPath = "/__modserve/health"

const shutdownTimeout = 5 * time.Second

// Server is the development server.
type Server struct {
	config  *config.Config
	logger  logging.Logger
	metrics *monitoring.Metrics
	health  *monitoring.HealthMonitor

	graph       *graph.ModuleGraph
	pipeline    *plugins.Container
	coordinator *transform.Coordinator
	hub         *websocket.Hub
	watcher     *watcher.FileWatcher
	bridge      *hmr.Bridge
	optimizer   *optimizer.Optimizer

	httpServer *http.Server
	listener   net.Listener
	hmrActive  atomic.Bool

	// optimized is closed once the startup pre-bundle finishes.
	optimized    chan struct{}
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New assembles a server for cfg. Nothing is bound until Listen.
func New(cfg *config.Config, logger logging.Logger) (*Server, error) {
	var metrics *monitoring.Metrics
	if cfg.Metrics.Enabled {
		metrics = monitoring.NewMetrics()
	}

	var hubOpts []websocket.HubOption
	if metrics != nil {
		hubOpts = append(hubOpts, websocket.WithObserver(metrics))
	}

	pipeline := plugins.NewContainer(logger, builtin.Defaults(cfg)...)
	moduleGraph := graph.New(pipeline.ResolveURL)
	hub := websocket.NewHub(logger, hubOpts...)

	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, cfg.Watch.Ignore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	s := &Server{
		config:      cfg,
		logger:      logger.WithComponent("server"),
		metrics:     metrics,
		health:      monitoring.NewHealthMonitor(version.GetShortVersion(), logger),
		graph:       moduleGraph,
		pipeline:    pipeline,
		coordinator: transform.New(moduleGraph, pipeline, logger, transform.WithMetrics(metrics)),
		hub:         hub,
		watcher:     fileWatcher,
		bridge:      hmr.NewBridge(cfg.Root, moduleGraph, hub, metrics, logger),
		optimizer:   optimizer.New(cfg, metrics, logger),
		optimized:   make(chan struct{}),
	}
	s.registerHealthChecks()

	return s, nil
}

// Graph returns the module graph.
func (s *Server) Graph() *graph.ModuleGraph { return s.graph }

// Hub returns the HMR transport.
func (s *Server) Hub() *websocket.Hub { return s.hub }

// Optimized is closed when the startup pre-bundle has finished.
func (s *Server) Optimized() <-chan struct{} { return s.optimized }

// Addr returns the bound HTTP address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens and serves until ctx is cancelled, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Listen configures plugins, binds the HTTP listener and starts the HMR
// transport, the watcher and the pre-bundler. Only an HTTP bind failure is
// returned; the HMR transport failing to bind disables hot updates.
func (s *Server) Listen(ctx context.Context) error {
	if err := s.configure(ctx); err != nil {
		return err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}

	s.serverMutex.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serverMutex.Unlock()

	if s.config.Development.HotReload {
		if err := s.hub.Listen(ctx, s.config.HMRAddr()); err != nil {
			s.logger.Warn(ctx, err, "HMR transport unavailable, hot updates disabled")
		} else {
			s.hmrActive.Store(true)
		}
	}

	s.setupFileWatcher(ctx)

	go func() {
		defer close(s.optimized)
		if _, err := s.optimizer.Run(ctx); err != nil {
			s.logger.Error(ctx, err, "dependency pre-bundling failed")
		}
	}()

	url := fmt.Sprintf("http://%s", ln.Addr().String())
	s.logger.Info(ctx, "dev server ready", "url", url, "root", s.config.Root, "hmr", s.hmrActive.Load())
	if s.config.Server.Open {
		go s.openBrowser(ctx, url)
	}
	return nil
}

// Serve blocks serving HTTP until ctx is cancelled or the server fails.
func (s *Server) Serve(ctx context.Context) error {
	s.serverMutex.RLock()
	server, ln := s.httpServer, s.listener
	s.serverMutex.RUnlock()
	if server == nil {
		return fmt.Errorf("serve called before listen")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the watcher, closes HMR connections and drains HTTP
// requests. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down")

		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn(ctx, err, "failed to stop file watcher")
		}
		if err := s.hub.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, err, "failed to stop HMR transport")
		}

		s.serverMutex.RLock()
		server, ln := s.httpServer, s.listener
		s.serverMutex.RUnlock()
		if server != nil {
			shutdownErr = server.Shutdown(ctx)
			// Shutdown only closes listeners Serve has seen.
			_ = ln.Close()
		}
	})
	return shutdownErr
}

// configure runs every plugin's ConfigureServer hook.
func (s *Server) configure(ctx context.Context) error {
	var transport *websocket.Hub
	if s.config.Development.HotReload {
		transport = s.hub
	}
	return s.pipeline.ConfigureServer(ctx, &plugins.ServerContext{
		Root:      s.config.Root,
		Config:    s.config,
		Graph:     s.graph,
		Transport: transport,
		Watcher:   s.watcher,
		Pipeline:  s.pipeline,
		Logger:    s.logger,
	})
}

func (s *Server) setupFileWatcher(ctx context.Context) {
	s.watcher.AddHandler(s.bridge.HandleEvents)

	if err := s.watcher.AddRecursive(s.config.Root); err != nil {
		s.logger.Warn(ctx, err, "failed to watch project root", "root", s.config.Root)
		return
	}
	if err := s.watcher.Start(ctx); err != nil {
		s.logger.Warn(ctx, err, "failed to start file watcher")
	}
}

func (s *Server) registerHealthChecks() {
	s.health.RegisterCheck("graph", func(ctx context.Context) monitoring.HealthCheck {
		return monitoring.HealthCheck{
			Status:   monitoring.HealthStatusHealthy,
			Metadata: map[string]interface{}{"modules": s.graph.Size()},
		}
	})
	s.health.RegisterCheck("hmr", func(ctx context.Context) monitoring.HealthCheck {
		if !s.config.Development.HotReload {
			return monitoring.HealthCheck{Status: monitoring.HealthStatusHealthy, Message: "hot reload disabled"}
		}
		if !s.hmrActive.Load() {
			return monitoring.HealthCheck{Status: monitoring.HealthStatusDegraded, Message: "transport not bound"}
		}
		return monitoring.HealthCheck{
			Status:   monitoring.HealthStatusHealthy,
			Metadata: map[string]interface{}{"clients": s.hub.ClientCount()},
		}
	})
	s.health.RegisterCheck("watcher", func(ctx context.Context) monitoring.HealthCheck {
		paths := len(s.watcher.WatchedPaths())
		if paths == 0 {
			return monitoring.HealthCheck{Status: monitoring.HealthStatusDegraded, Message: "no directories watched"}
		}
		return monitoring.HealthCheck{
			Status:   monitoring.HealthStatusHealthy,
			Metadata: map[string]interface{}{"directories": paths},
		}
	})
}
