package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	contractx "github.com/warrantix/warrantix/agent/contract"
	logx "github.com/warrantix/warrantix/pkg/logger"
)

// Runner executes one query end to end. Implemented by the orchestrator.
type Runner interface {
	Run(ctx context.Context, req contractx.AnalysisRequest) (*contractx.RunReport, error)
}

// Check is a named readiness probe for an upstream dependency.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type Config struct {
	Host        string        `split_words:"true" default:"0.0.0.0"`
	Port        int           `split_words:"true" default:"8005"`
	ReadTimeout time.Duration `split_words:"true" default:"15s"`
	// WriteTimeout must outlast the orchestrator run deadline or long
	// analyses get their response cut off.
	WriteTimeout    time.Duration `split_words:"true" default:"150s"`
	IdleTimeout     time.Duration `split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
}

// Server is the HTTP face of the agent: the query endpoint plus the
// operational endpoints (health, readiness, metrics).
type Server struct {
	runner Runner
	checks []Check

	httpServer *http.Server
	cfg        Config
	log        zerolog.Logger
}

func New(runner Runner, cfg Config, checks ...Check) (*Server, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}

	s := &Server{
		runner: runner,
		checks: checks,
		cfg:    cfg,
		log:    logx.Component("api"),
	}

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(cors)

	r.Post("/agent/query", s.handleQuery)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}
