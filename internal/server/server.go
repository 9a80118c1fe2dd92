// Package server exposes the orchestrator over HTTP: request submission,
// provider health, recent traces and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zulandar/signalbox/internal/assemble"
	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/logging"
	"github.com/zulandar/signalbox/internal/metrics"
	"github.com/zulandar/signalbox/internal/storage"
	"github.com/zulandar/signalbox/internal/trace"
)

// Answerer handles one diagnostic request.
type Answerer interface {
	Handle(ctx context.Context, req intent.Request) (*assemble.Response, *trace.AgentTrace, error)
}

// HealthReporter reports storage provider states.
type HealthReporter interface {
	Status() []storage.ProviderStatus
}

// TraceSource returns recent traces, newest first.
type TraceSource interface {
	Recent(limit int) []trace.AgentTrace
}

// Options holds configuration for the HTTP server.
type Options struct {
	Answerer     Answerer
	Health       HealthReporter
	Traces       TraceSource
	Metrics      *metrics.Metrics
	Port         int
	PollInterval time.Duration // trace stream poll; default 2s
	NewID        func() string // request id generator; defaults to uuid
	Logger       logging.Logger
	Out          io.Writer
}

// Server is the HTTP front door.
type Server struct {
	opts   Options
	router *gin.Engine
}

// New validates opts and builds the route table.
func New(opts Options) (*Server, error) {
	if opts.Answerer == nil {
		return nil, fmt.Errorf("server: answerer is required")
	}
	if opts.Health == nil {
		return nil, fmt.Errorf("server: health reporter is required")
	}
	if opts.Traces == nil {
		return nil, fmt.Errorf("server: trace source is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(opts.Logger))

	s := &Server{opts: opts, router: router}
	s.registerRoutes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if s.opts.Out != nil {
		fmt.Fprintf(s.opts.Out, "API listening on http://localhost:%d\n", s.opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}
