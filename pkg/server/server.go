// Package server assembles the webserver from its configuration: cache,
// handlers, router, reactor and the optional metrics endpoint.
package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashpect/webserv/pkg/cache"
	"github.com/ashpect/webserv/pkg/config"
	"github.com/ashpect/webserv/pkg/errs"
	"github.com/ashpect/webserv/pkg/fsys"
	"github.com/ashpect/webserv/pkg/handler"
	"github.com/ashpect/webserv/pkg/logging"
	"github.com/ashpect/webserv/pkg/metrics"
	"github.com/ashpect/webserv/pkg/reactor"
)

const (
	module           = "server"
	metricsNamespace = "webserv"
	shutdownTimeout  = 5 * time.Second
)

// Option is a functional option for building a Server
type Option func(*Server)

// WithFS replaces the OS filesystem.
func WithFS(f fsys.FS) Option {
	return func(s *Server) {
		s.fs = f
	}
}

// WithMetrics uses reg instead of a fresh registry.
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Server) {
		s.metrics = reg
	}
}

// Server owns every long-lived component.
type Server struct {
	cfg     *config.SystemCfg
	log     logging.Logger
	fs      fsys.FS
	metrics *metrics.Registry

	cache   *cache.LRU[string, []byte]
	router  *handler.Router
	reactor *reactor.Reactor
}

// New builds the server. Nothing is bound until Run.
func New(cfg *config.SystemCfg, log logging.Logger, opts ...Option) (*Server, error) {
	if cfg == nil || log == nil {
		return nil, errs.Configf("server.New", "config and logger are required")
	}
	s := &Server{cfg: cfg, log: log, fs: fsys.OS{}}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil, metricsNamespace)
	}

	c, err := cache.New[string, []byte](cfg.CacheCapacity,
		cache.WithMetrics[string, []byte](s.metrics.Cache),
		cache.WithOnEvict(func(path string, _ []byte) {
			log.Log(logging.LevelDebug, module, "evicted", "path", path)
		}),
	)
	if err != nil {
		return nil, err
	}
	s.cache = c

	static, err := handler.NewStatic(c, s.fs, log, cfg.Root)
	if err != nil {
		return nil, err
	}
	s.router, err = handler.NewRouter(cfg, static, log, handler.WithStatusObserver(s.metrics.Server.Response))
	if err != nil {
		return nil, err
	}

	s.reactor, err = reactor.New(s.router, log,
		reactor.WithIdleTimeout(cfg.IdleTimeout),
		reactor.WithSweepInterval(cfg.SweepInterval),
		reactor.WithObserver(s.metrics.Server),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Cache exposes the content cache for diagnostics.
func (s *Server) Cache() *cache.LRU[string, []byte] { return s.cache }

// Run binds every configured port and serves until ctx is cancelled.
// The reactor is closed before Run returns.
func (s *Server) Run(ctx context.Context) error {
	defer s.reactor.Close()

	ports := s.router.Ports()
	sort.Ints(ports)
	for _, port := range ports {
		if _, err := s.reactor.Listen(s.hostFor(port), port); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.reactor.Run(ctx)
	})
	if s.cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: s.cfg.MetricsAddr, Handler: s.metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			s.log.Log(logging.LevelInfo, module, "metrics listening", "addr", s.cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errs.E(errs.Resource, "server.metrics", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	s.log.Log(logging.LevelInfo, module, "server stopped", "err", err)
	return err
}

func (s *Server) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// hostFor returns the bind address of the first server declared on port.
func (s *Server) hostFor(port int) string {
	for _, sc := range s.cfg.Servers {
		if sc.Listen == port {
			return sc.Host
		}
	}
	return ""
}
