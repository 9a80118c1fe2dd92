package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/signalbox/internal/assemble"
	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/storage"
	"github.com/zulandar/signalbox/internal/trace"
)

const (
	defaultTraceLimit = 50
	maxTraceLimit     = 500
)

// answerResponse is the body returned for a handled request.
type answerResponse struct {
	Response *assemble.Response `json:"response"`
	Trace    *trace.AgentTrace  `json:"trace,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealthz)
	if s.opts.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	}

	api := s.router.Group("/api")
	api.POST("/requests", s.handleRequest)
	api.GET("/providers", s.handleProviders)
	api.GET("/traces", s.handleTraces)
	api.GET("/events", s.handleEvents)
}

func (s *Server) handleRequest(c *gin.Context) {
	var req intent.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.ID == "" {
		req.ID = s.opts.NewID()
	}
	if req.Channel == "" {
		req.Channel = "api"
	}
	if req.Payload.Kind == "" {
		req.Payload.Kind = intent.KindText
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), RequestID: req.ID})
		return
	}

	resp, tr, err := s.opts.Answerer.Handle(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), errorResponse{Error: err.Error(), RequestID: req.ID})
		return
	}
	c.JSON(http.StatusOK, answerResponse{Response: resp, Trace: tr})
}

// statusFor maps orchestration errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, intent.ErrEmptyPayload):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleProviders(c *gin.Context) {
	statuses := s.opts.Health.Status()
	healthy := 0
	for _, st := range statuses {
		if st.Health == storage.Healthy.String() {
			healthy++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"providers": statuses,
		"healthy":   healthy,
	})
}

func (s *Server) handleHealthz(c *gin.Context) {
	for _, st := range s.opts.Health.Status() {
		if st.Health == storage.Healthy.String() {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
}

func (s *Server) handleTraces(c *gin.Context) {
	limit := defaultTraceLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxTraceLimit)
	}

	traces := s.opts.Traces.Recent(limit)
	c.JSON(http.StatusOK, gin.H{
		"traces":  traces,
		"summary": trace.Summarize(traces),
	})
}
