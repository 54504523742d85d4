// Package optimize exposes the scheduler over HTTP.
package optimize

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/optimizer"
	"github.com/kilianp07/railsched/core/realtime"
	"github.com/kilianp07/railsched/core/runlog"
)

// Config defines the HTTP listener.
type Config struct {
	Addr string `json:"addr"`
	// Token, when set, is required as "Bearer <token>" on every route but
	// the status probe.
	Token               string `json:"token"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
	MaxBodyBytes        int64  `json:"max_body_bytes"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeoutSeconds <= 0 {
		c.ReadTimeoutSeconds = 15
	}
	if c.WriteTimeoutSeconds <= 0 {
		c.WriteTimeoutSeconds = 120
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 8 << 20
	}
}

// Server serves the optimization API.
type Server struct {
	cfg     Config
	runner  *optimizer.Runner
	reopt   *realtime.Reoptimizer
	store   runlog.LogStore
	log     logger.Logger
	started time.Time

	mu      sync.RWMutex
	dataset *model.Snapshot
}

// Option customizes a Server.
type Option func(*Server)

// WithStore records every served run in s.
func WithStore(s runlog.LogStore) Option {
	return func(srv *Server) { srv.store = s }
}

// WithDataset sets the snapshot used when a request carries none.
func WithDataset(snap model.Snapshot) Option {
	return func(srv *Server) { srv.SetDataset(snap) }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(srv *Server) { srv.log = l }
}

// NewServer builds a Server on runner.
func NewServer(cfg Config, runner *optimizer.Runner, opts ...Option) *Server {
	cfg.SetDefaults()
	s := &Server{cfg: cfg, runner: runner, started: time.Now()}
	for _, o := range opts {
		o(s)
	}
	s.log = logger.OrNop(s.log)
	s.reopt = realtime.NewReoptimizer(runner, s.log)
	return s
}

// SetDataset replaces the default snapshot.
func (s *Server) SetDataset(snap model.Snapshot) {
	c := snap.Clone()
	s.mu.Lock()
	s.dataset = &c
	s.mu.Unlock()
}

func (s *Server) defaultDataset() (model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dataset == nil {
		return model.Snapshot{}, false
	}
	return s.dataset.Clone(), true
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(s.cfg.MaxBodyBytes))

	r.Get("/api/status", s.handleStatus)
	r.Group(func(r chi.Router) {
		r.Use(s.authorize)
		r.Post("/api/optimize", s.handleOptimize)
		r.Post("/api/disruptions", s.handleDisruption)
		r.Post("/api/priority/rank", s.handleRank)
		r.Get("/api/conflicts", s.handleConflicts)
		r.Post("/api/conflicts", s.handleConflicts)
		r.Get("/api/runs", s.handleRuns)
	})
	return r
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.cfg.Token {
			writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(s.cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.WriteTimeoutSeconds) * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("api listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) record(ctx context.Context, res model.OptimizationResult, trigger string, snap model.Snapshot) {
	if s.store == nil {
		return
	}
	rec := runlog.NewRecord(res, trigger, snap.TrainIDs(), time.Now().UTC())
	if err := s.store.Append(ctx, rec); err != nil {
		s.log.Errorf("run log append %s: %v", res.RunID, err)
	}
}
