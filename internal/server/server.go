package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"scenesub/internal/config"
	"scenesub/internal/jobs"
	"scenesub/internal/logging"
	"scenesub/internal/subtitles"
)

// Pipeline generates subtitles for a saved upload.
type Pipeline interface {
	Generate(ctx context.Context, req subtitles.GenerateRequest) (subtitles.GenerateResult, error)
	Model() string
}

// Server hosts the upload API.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *jobs.Store
	pipeline Pipeline

	lock     *flock.Flock
	listener net.Listener
	server   *http.Server
	started  time.Time
	stopOnce sync.Once

	// baseCtx parents every request context; Stop cancels it when graceful
	// shutdown runs out of time so pipelines abort before the lock is released.
	baseCtx         context.Context
	cancelBase      context.CancelFunc
	inflight        sync.WaitGroup
	shutdownTimeout time.Duration
}

// New wires the HTTP handlers. The store and pipeline are owned by the caller.
func New(cfg *config.Config, store *jobs.Store, pipeline Pipeline, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "server"),
		store:    store,
		pipeline: pipeline,
		lock:     flock.New(cfg.LockPath()),

		shutdownTimeout: 10 * time.Second,
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
		ReadHeaderTimeout: 5 * time.Second,
		// Uploads hold the connection for the whole pipeline run, so there is
		// no read or write deadline beyond the header timeout.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with auth and request-id middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /subtitles/{filename}", s.handleDownload)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJob)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	return s.track(s.withRequestID(authMiddleware(strings.TrimSpace(s.cfg.Server.APIToken), mux.ServeHTTP)))
}

// track counts running handlers so Stop can wait for them.
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.inflight.Add(1)
		defer s.inflight.Done()
		next.ServeHTTP(w, r)
	})
}

// Start acquires the instance lock, marks interrupted jobs failed, and begins
// serving in the background. Cancelling ctx shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another scenesub server is already running (lock %s)", s.cfg.LockPath())
	}

	if n, err := s.store.FailInterrupted(ctx); err != nil {
		_ = s.lock.Unlock()
		return err
	} else if n > 0 {
		logging.WarnWithContext(s.logger, "marked interrupted jobs as failed", "jobs_interrupted",
			logging.Int64("count", n),
			logging.String(logging.FieldImpact, "those uploads produced no subtitles"),
			logging.String(logging.FieldErrorHint, "re-upload the affected videos"),
		)
	}

	listener, err := net.Listen("tcp", s.cfg.Server.Bind)
	if err != nil {
		_ = s.lock.Unlock()
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = listener
	s.started = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("lock", s.cfg.LockPath()),
		logging.Bool("auth", strings.TrimSpace(s.cfg.Server.APIToken) != ""),
	)
	return nil
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Addr reports the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts down the HTTP server and releases the instance lock. Requests
// still running after the shutdown timeout have their contexts cancelled and
// are waited for before the lock is released. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WarnWithContext(s.logger, "http shutdown incomplete; cancelling running jobs", "shutdown_timeout",
				logging.Error(err),
				logging.String(logging.FieldImpact, "in-flight uploads fail without subtitles"),
			)
		}
		s.cancelBase()
		s.inflight.Wait()
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release server lock", logging.Error(err))
		}
		s.logger.Info("server stopped")
	})
}
